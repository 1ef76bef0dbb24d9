package analysis_test

import (
	"encoding/json"
	"testing"
	"time"

	"resolvex/backend/internal/analysis"
	"resolvex/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_Empty(t *testing.T) {
	s := analysis.Summarize(nil, nil)

	assert.Zero(t, s.TotalComplaints)
	assert.Zero(t, s.OpenComplaints)
	assert.Zero(t, s.ResolvedComplaints)
	assert.Zero(t, s.EscalatedComplaints)
	assert.Nil(t, s.AvgResolutionHours)
	assert.NotNil(t, s.ByCategory)
	assert.Empty(t, s.ByCategory)
	assert.Empty(t, s.ByPriority)
	assert.Empty(t, s.ByMonth)
	assert.Empty(t, s.StaffPerformance)

	// Empty groupings serialise as [] rather than null.
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"complaints_by_category":[]`)
	assert.Contains(t, string(raw), `"avg_resolution_hours":null`)
}

func ptr[T any](v T) *T { return &v }

func TestSummarize(t *testing.T) {
	jan := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 3, 8, 0, 0, 0, time.UTC)

	complaints := []models.Complaint{
		{ID: 1, Status: models.StatusResolved, Priority: models.PriorityHigh, Category: ptr("electricity"),
			AssignedStaffID: ptr(uint(7)), CreatedAt: jan, ResolvedAt: ptr(jan.Add(10 * time.Hour))},
		{ID: 2, Status: models.StatusClosed, Priority: models.PriorityLow, Category: ptr("cleaning"),
			AssignedStaffID: ptr(uint(7)), CreatedAt: jan, ResolvedAt: ptr(jan.Add(20 * time.Hour)), Escalated: true},
		{ID: 3, Status: models.StatusInProgress, Priority: models.PriorityCritical, Category: ptr("electricity"),
			AssignedStaffID: ptr(uint(8)), CreatedAt: feb, Escalated: true},
		{ID: 4, Status: models.StatusSubmitted, Priority: models.PriorityMedium, CreatedAt: feb},
		{ID: 5, Status: models.StatusResolved, Priority: models.PriorityHigh, Category: ptr("cleaning"),
			AssignedStaffID: ptr(uint(99)), CreatedAt: feb, ResolvedAt: ptr(feb.Add(3 * time.Hour))},
	}
	staff := []models.User{
		{ID: 7, FullName: "Asha", Role: models.RoleStaff},
		{ID: 8, FullName: "Ben", Role: models.RoleStaff},
		{ID: 9, FullName: "Chen", Role: models.RoleAdmin},
	}

	s := analysis.Summarize(complaints, staff)

	assert.Equal(t, 5, s.TotalComplaints)
	assert.Equal(t, 2, s.OpenComplaints)
	assert.Equal(t, 3, s.ResolvedComplaints, "closed counts as resolved")
	assert.Equal(t, 2, s.EscalatedComplaints, "escalated regardless of status")
	require.NotNil(t, s.AvgResolutionHours)
	assert.InDelta(t, 11.0, *s.AvgResolutionHours, 0.001)

	assert.Equal(t, []analysis.NameCount{
		{Name: "cleaning", Count: 2},
		{Name: "electricity", Count: 2},
		{Name: analysis.UncategorizedLabel, Count: 1},
	}, s.ByCategory)

	assert.Equal(t, []analysis.NameCount{
		{Name: "critical", Count: 1},
		{Name: "high", Count: 2},
		{Name: "medium", Count: 1},
		{Name: "low", Count: 1},
	}, s.ByPriority)

	assert.Equal(t, []analysis.MonthCount{
		{Month: "2026-01", Count: 2},
		{Month: "2026-02", Count: 3},
	}, s.ByMonth)

	assert.Equal(t, []analysis.StaffPerformance{
		{StaffID: 7, StaffName: "Asha", ResolvedCount: 2},
		{StaffID: 99, ResolvedCount: 1},
		{StaffID: 8, StaffName: "Ben", ResolvedCount: 0},
		{StaffID: 9, StaffName: "Chen", ResolvedCount: 0},
	}, s.StaffPerformance)
}
