package coremodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverity_DefaultPriority(t *testing.T) {
	tests := []struct {
		severity Severity
		want     Priority
	}{
		{SeverityCritical, PriorityUrgent},
		{SeverityHigh, PriorityHigh},
		{SeverityMedium, PriorityNormal},
		{SeverityLow, PriorityLow},
		{Severity("Bogus"), PriorityNormal},
	}
	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.severity.DefaultPriority())
		})
	}
}

func TestAlertStatus_Transitions(t *testing.T) {
	assert.True(t, StatusPending.CanAcknowledge())
	assert.True(t, StatusResponding.CanAcknowledge())
	assert.False(t, StatusAcknowledged.CanAcknowledge(), "已确认不可重复确认")
	assert.False(t, StatusResolved.CanAcknowledge(), "终态不可回退")

	assert.True(t, StatusPending.CanResolve(), "允许未确认直接解决")
	assert.True(t, StatusAcknowledged.CanResolve())
	assert.False(t, StatusResolved.CanResolve())
}

func TestVector3_Magnitude(t *testing.T) {
	assert.InDelta(t, 5.0, Vector3{X: 3, Y: 4}.Magnitude(), 1e-9)
	assert.InDelta(t, 0.0, Vector3{}.Magnitude(), 1e-9)
}

func TestWorker_DisplayName(t *testing.T) {
	var w *Worker
	assert.Equal(t, UnknownWorkerName, w.DisplayName())
	assert.Equal(t, UnknownWorkerName, (&Worker{ID: 1}).DisplayName())
	assert.Equal(t, "Li Lei", (&Worker{ID: 1, Name: "Li Lei"}).DisplayName())
}
