// Package analysis derives the reporting summary from a set of complaints.
// It is a pure projection: callers load the role-permitted complaints and
// staff list, and the summary is recomputed on every request.
package analysis

import (
	"math"
	"sort"

	"resolvex/backend/internal/models"
)

// UncategorizedLabel groups complaints that have no category yet.
const UncategorizedLabel = "Uncategorized"

type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type MonthCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type StaffPerformance struct {
	StaffID       uint   `json:"staff_id"`
	StaffName     string `json:"staff_name"`
	ResolvedCount int    `json:"resolved_count"`
}

// Summary is the read-only structure served to the reporting surface.
type Summary struct {
	TotalComplaints     int      `json:"total_complaints"`
	OpenComplaints      int      `json:"open_complaints"`
	ResolvedComplaints  int      `json:"resolved_complaints"`
	EscalatedComplaints int      `json:"escalated_complaints"`
	AvgResolutionHours  *float64 `json:"avg_resolution_hours"`

	ByCategory       []NameCount        `json:"complaints_by_category"`
	ByPriority       []NameCount        `json:"complaints_by_priority"`
	ByMonth          []MonthCount       `json:"complaints_by_month"`
	StaffPerformance []StaffPerformance `json:"staff_performance"`
}

// Summarize aggregates complaints. Staff lists the users to report
// performance for; assignees missing from it are still reported, unnamed.
// Empty input yields zero counts and empty, non-nil groupings.
func Summarize(complaints []models.Complaint, staff []models.User) Summary {
	s := Summary{
		ByCategory:       []NameCount{},
		ByPriority:       []NameCount{},
		ByMonth:          []MonthCount{},
		StaffPerformance: []StaffPerformance{},
	}

	byCategory := map[string]int{}
	byPriority := map[models.Priority]int{}
	byMonth := map[string]int{}
	resolvedBy := map[uint]int{}
	var totalHours float64
	var resolvedWithTime int

	for i := range complaints {
		c := &complaints[i]
		s.TotalComplaints++

		switch c.Status {
		case models.StatusResolved, models.StatusClosed:
			s.ResolvedComplaints++
			if c.AssignedStaffID != nil {
				resolvedBy[*c.AssignedStaffID]++
			}
		default:
			s.OpenComplaints++
		}
		if c.Escalated {
			s.EscalatedComplaints++
		}
		if c.ResolvedAt != nil {
			totalHours += c.ResolvedAt.Sub(c.CreatedAt).Hours()
			resolvedWithTime++
		}

		cat := UncategorizedLabel
		if c.Category != nil && *c.Category != "" {
			cat = *c.Category
		}
		byCategory[cat]++
		byPriority[c.Priority]++
		byMonth[c.CreatedAt.UTC().Format("2006-01")]++
	}

	if resolvedWithTime > 0 {
		avg := math.Round(totalHours/float64(resolvedWithTime)*100) / 100
		s.AvgResolutionHours = &avg
	}

	for name, n := range byCategory {
		s.ByCategory = append(s.ByCategory, NameCount{Name: name, Count: n})
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		if s.ByCategory[i].Count != s.ByCategory[j].Count {
			return s.ByCategory[i].Count > s.ByCategory[j].Count
		}
		return s.ByCategory[i].Name < s.ByCategory[j].Name
	})

	for _, p := range models.Priorities {
		if n := byPriority[p]; n > 0 {
			s.ByPriority = append(s.ByPriority, NameCount{Name: string(p), Count: n})
		}
	}

	for m, n := range byMonth {
		s.ByMonth = append(s.ByMonth, MonthCount{Month: m, Count: n})
	}
	sort.Slice(s.ByMonth, func(i, j int) bool { return s.ByMonth[i].Month < s.ByMonth[j].Month })

	seen := map[uint]bool{}
	for _, u := range staff {
		seen[u.ID] = true
		s.StaffPerformance = append(s.StaffPerformance, StaffPerformance{
			StaffID: u.ID, StaffName: u.FullName, ResolvedCount: resolvedBy[u.ID],
		})
	}
	for id, n := range resolvedBy {
		if !seen[id] {
			s.StaffPerformance = append(s.StaffPerformance, StaffPerformance{StaffID: id, ResolvedCount: n})
		}
	}
	sort.Slice(s.StaffPerformance, func(i, j int) bool {
		a, b := s.StaffPerformance[i], s.StaffPerformance[j]
		if a.ResolvedCount != b.ResolvedCount {
			return a.ResolvedCount > b.ResolvedCount
		}
		return a.StaffID < b.StaffID
	})
	return s
}
