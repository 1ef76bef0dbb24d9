// Package classifier maps complaint free text to a category and priority.
package classifier

import (
	"context"
	"regexp"
	"strings"

	"resolvex/backend/internal/models"
)

// Result is the outcome of classification. Category is nil when no
// category matched.
type Result struct {
	Category *string
	Priority models.Priority
}

// Classifier is deterministic and side-effect free for a given table.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

type rule struct {
	name     string
	priority models.Priority
	patterns []*regexp.Regexp
}

// Keyword matches whole words and phrases against an ordered category list.
// The first category with a matching keyword wins and lends its default
// priority. Without a category match, the fallback keyword levels decide
// the priority, and medium is used when nothing matches at all.
type Keyword struct {
	rules    []rule
	fallback []rule
}

var spaces = regexp.MustCompile(`\s+`)

// NewKeyword builds a classifier from categories in match order and the
// fallback keyword table.
func NewKeyword(categories []models.Category, fallback map[models.Priority][]string) *Keyword {
	k := &Keyword{}
	for _, c := range categories {
		p := c.DefaultPriority
		if !p.Valid() {
			p = models.PriorityMedium
		}
		if r, ok := compile(c.Name, p, c.Keywords); ok {
			k.rules = append(k.rules, r)
		}
	}
	for _, p := range models.Priorities {
		if r, ok := compile("", p, fallback[p]); ok {
			k.fallback = append(k.fallback, r)
		}
	}
	return k
}

func compile(name string, p models.Priority, keywords []string) (rule, bool) {
	r := rule{name: name, priority: p}
	for _, kw := range keywords {
		kw = normalize(kw)
		if kw == "" {
			continue
		}
		r.patterns = append(r.patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)+`\b`))
	}
	return r, len(r.patterns) > 0
}

func normalize(s string) string {
	return spaces.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// Classify never fails; the error return satisfies Classifier.
func (k *Keyword) Classify(_ context.Context, text string) (Result, error) {
	t := normalize(text)
	for _, r := range k.rules {
		if r.matches(t) {
			name := r.name
			return Result{Category: &name, Priority: r.priority}, nil
		}
	}
	for _, r := range k.fallback {
		if r.matches(t) {
			return Result{Priority: r.priority}, nil
		}
	}
	return Result{Priority: models.PriorityMedium}, nil
}

func (r rule) matches(text string) bool {
	for _, p := range r.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
