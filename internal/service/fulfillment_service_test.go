package service

import (
	"testing"

	"fulfillment-hub/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		allowed  bool
	}{
		{models.AssignmentStatusAssigned, models.AssignmentStatusAccepted, true},
		{models.AssignmentStatusAssigned, models.AssignmentStatusCancelled, true},
		{models.AssignmentStatusAssigned, models.AssignmentStatusInProgress, false},
		{models.AssignmentStatusAssigned, models.AssignmentStatusShipped, false},
		{models.AssignmentStatusAccepted, models.AssignmentStatusInProgress, true},
		{models.AssignmentStatusAccepted, models.AssignmentStatusCancelled, true},
		{models.AssignmentStatusAccepted, models.AssignmentStatusCompleted, false},
		{models.AssignmentStatusInProgress, models.AssignmentStatusShipped, true},
		{models.AssignmentStatusInProgress, models.AssignmentStatusCompleted, true},
		{models.AssignmentStatusInProgress, models.AssignmentStatusAssigned, true},
		{models.AssignmentStatusInProgress, models.AssignmentStatusCancelled, false},
		{models.AssignmentStatusShipped, models.AssignmentStatusCompleted, true},
		{models.AssignmentStatusShipped, models.AssignmentStatusCancelled, false},
		{models.AssignmentStatusCompleted, models.AssignmentStatusAssigned, false},
		{models.AssignmentStatusCancelled, models.AssignmentStatusAssigned, false},
		{"bogus", models.AssignmentStatusAssigned, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestAggregateOrderStatus(t *testing.T) {
	mk := func(statuses ...string) []models.VendorAssignment {
		out := make([]models.VendorAssignment, len(statuses))
		for i, s := range statuses {
			out[i] = models.VendorAssignment{ID: int64(i + 1), Status: s}
		}
		return out
	}

	t.Run("no assignments means no change", func(t *testing.T) {
		_, changed := AggregateOrderStatus(nil)
		assert.False(t, changed)
	})

	t.Run("mid-flight mix means no change", func(t *testing.T) {
		_, changed := AggregateOrderStatus(mk(
			models.AssignmentStatusShipped,
			models.AssignmentStatusInProgress,
		))
		assert.False(t, changed)
	})

	t.Run("all shipped", func(t *testing.T) {
		status, changed := AggregateOrderStatus(mk(
			models.AssignmentStatusShipped,
			models.AssignmentStatusShipped,
		))
		assert.True(t, changed)
		assert.Equal(t, models.OrderStatusShipped, status)
	})

	t.Run("shipped and completed mix is shipped", func(t *testing.T) {
		status, changed := AggregateOrderStatus(mk(
			models.AssignmentStatusShipped,
			models.AssignmentStatusCompleted,
		))
		assert.True(t, changed)
		assert.Equal(t, models.OrderStatusShipped, status)
	})

	t.Run("all completed", func(t *testing.T) {
		status, changed := AggregateOrderStatus(mk(
			models.AssignmentStatusCompleted,
			models.AssignmentStatusCompleted,
		))
		assert.True(t, changed)
		assert.Equal(t, models.OrderStatusCompleted, status)
	})

	t.Run("cancelled assignments are excluded", func(t *testing.T) {
		status, changed := AggregateOrderStatus(mk(
			models.AssignmentStatusCancelled,
			models.AssignmentStatusCompleted,
		))
		assert.True(t, changed)
		assert.Equal(t, models.OrderStatusCompleted, status)
	})

	t.Run("all cancelled reverts to processing", func(t *testing.T) {
		status, changed := AggregateOrderStatus(mk(
			models.AssignmentStatusCancelled,
			models.AssignmentStatusCancelled,
		))
		assert.True(t, changed)
		assert.Equal(t, models.OrderStatusProcessing, status)
	})
}

func TestActorIsOperator(t *testing.T) {
	assert.True(t, Actor{UserID: 1, Role: RoleAdmin}.IsOperator())
	assert.True(t, Actor{UserID: 2, Role: RoleManager}.IsOperator())
	assert.False(t, Actor{UserID: 3, Role: RoleVendor}.IsOperator())
}
