package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"resolvex/backend/internal/models"

	"gopkg.in/yaml.v3"
)

// Default escalation due windows, measured from creation.
const (
	CriticalDueWindow = 24 * time.Hour
	HighDueWindow     = 72 * time.Hour
	MediumDueWindow   = 7 * 24 * time.Hour
	LowDueWindow      = 14 * 24 * time.Hour
)

// CategoryRule is a category the keyword classifier can recognise.
type CategoryRule struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Priority    models.Priority `yaml:"priority"`
	Keywords    []string        `yaml:"keywords"`
}

// Policy is the tunable complaint policy table.
type Policy struct {
	DueWindows map[models.Priority]time.Duration
	// Categories are matched in order, first hit wins.
	Categories []CategoryRule
	// PriorityKeywords decide priority when no category matches.
	// Levels are checked most urgent first.
	PriorityKeywords map[models.Priority][]string
}

// DefaultPolicy returns a fresh copy of the built-in table.
func DefaultPolicy() Policy {
	return Policy{
		DueWindows: map[models.Priority]time.Duration{
			models.PriorityCritical: CriticalDueWindow,
			models.PriorityHigh:     HighDueWindow,
			models.PriorityMedium:   MediumDueWindow,
			models.PriorityLow:      LowDueWindow,
		},
		Categories: []CategoryRule{
			{
				Name:     "fire & emergency",
				Priority: models.PriorityCritical,
				Keywords: []string{"fire", "smoke", "gas leak", "emergency", "sparks", "short circuit"},
			},
			{
				Name:     "maintenance",
				Priority: models.PriorityMedium,
				Keywords: []string{
					"pipe", "leak", "leaking", "leakage", "plumbing", "water", "tap", "flush",
					"toilet", "drain", "overflow", "geyser", "repair", "broken", "damage",
				},
			},
			{
				Name:     "electricity",
				Priority: models.PriorityHigh,
				Keywords: []string{"electric", "electricity", "power", "socket", "switch", "shock", "voltage", "light", "fan"},
			},
			{
				Name:     "security",
				Priority: models.PriorityHigh,
				Keywords: []string{"theft", "stolen", "security", "intruder", "unauthorized", "unsafe", "guard", "fight"},
			},
			{
				Name:     "internet",
				Priority: models.PriorityMedium,
				Keywords: []string{"wifi", "internet", "network", "router", "lan", "connection"},
			},
			{
				Name:     "ventilation",
				Priority: models.PriorityMedium,
				Keywords: []string{"ac", "air conditioner", "cooling", "ventilation", "hot room"},
			},
			{
				Name:     "food",
				Priority: models.PriorityMedium,
				Keywords: []string{"food", "mess", "canteen", "stale", "food poisoning"},
			},
			{
				Name:     "cleaning",
				Priority: models.PriorityLow,
				Keywords: []string{"clean", "cleaning", "dirty", "garbage", "trash", "smell", "odor", "insects", "rats"},
			},
			{
				Name:     "furniture",
				Priority: models.PriorityLow,
				Keywords: []string{"bed", "chair", "table", "cupboard", "mattress", "window", "door", "curtain"},
			},
		},
		PriorityKeywords: map[models.Priority][]string{
			models.PriorityHigh:   {"electric", "electricity", "fire", "shock", "security", "theft", "safety", "emergency"},
			models.PriorityMedium: {"water", "leak", "cleaning", "maintenance", "repair", "broken", "damage"},
		},
	}
}

// CategoryModels converts the rules into storable models.
func (p Policy) CategoryModels() []models.Category {
	out := make([]models.Category, 0, len(p.Categories))
	for _, r := range p.Categories {
		out = append(out, models.Category{
			Name:            r.Name,
			Description:     r.Description,
			Keywords:        append([]string(nil), r.Keywords...),
			DefaultPriority: r.Priority,
		})
	}
	return out
}

type policyFile struct {
	DueWindows       map[string]string   `yaml:"due_windows"`
	Categories       []CategoryRule      `yaml:"categories"`
	PriorityKeywords map[string][]string `yaml:"priority_keywords"`
}

// LoadPolicy returns the default policy, overridden by the YAML file at path
// when path is non-empty. Windows and priority keyword levels present in the
// file replace the defaults one by one; a non-empty category list replaces
// the whole default list.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	return p.merge(raw)
}

func (p Policy) merge(raw []byte) (Policy, error) {
	var f policyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}

	for k, v := range f.DueWindows {
		pr, err := models.ParsePriority(k)
		if err != nil {
			return Policy{}, fmt.Errorf("due_windows: %w", err)
		}
		d, err := ParseWindow(v)
		if err != nil {
			return Policy{}, fmt.Errorf("due_windows.%s: %w", k, err)
		}
		p.DueWindows[pr] = d
	}

	if len(f.Categories) > 0 {
		for i, c := range f.Categories {
			if strings.TrimSpace(c.Name) == "" {
				return Policy{}, fmt.Errorf("categories[%d]: name is required", i)
			}
			if c.Priority == "" {
				f.Categories[i].Priority = models.PriorityMedium
			} else if !c.Priority.Valid() {
				return Policy{}, fmt.Errorf("categories[%d]: unknown priority %q", i, c.Priority)
			}
		}
		p.Categories = f.Categories
	}

	for k, words := range f.PriorityKeywords {
		pr, err := models.ParsePriority(k)
		if err != nil {
			return Policy{}, fmt.Errorf("priority_keywords: %w", err)
		}
		p.PriorityKeywords[pr] = words
	}
	return p, nil
}

// ParseWindow accepts Go durations plus a whole-day suffix, e.g. "36h" or "7d".
func ParseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid window %q", s)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, fmt.Errorf("invalid window %q", s)
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("window %q must be positive", s)
	}
	return d, nil
}
