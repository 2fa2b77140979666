package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
	"github.com/taoyao-code/worker-safety/internal/storage"
)

func newAlert(t *testing.T, s *Store, sev coremodel.Severity, created time.Time) *coremodel.Alert {
	t.Helper()
	a := &coremodel.Alert{
		Type:      coremodel.AlertTypeHighTemperature,
		Severity:  sev,
		DeviceID:  "D1",
		Status:    coremodel.StatusPending,
		Priority:  sev.DefaultPriority(),
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, s.CreateAlert(context.Background(), a))
	return a
}

func TestStore_TouchDeviceKeepsBattery(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	b := 80.0

	d, err := s.TouchDevice(ctx, "D1", now, &b)
	require.NoError(t, err)
	require.NotNil(t, d.Battery)

	later := now.Add(time.Minute)
	d, err = s.TouchDevice(ctx, "D1", later, nil)
	require.NoError(t, err)
	assert.Equal(t, 80.0, *d.Battery, "未上报电量时保持原值")
	assert.True(t, d.LastCommunicationAt.Equal(later))
}

func TestStore_WorkerNameResolution(t *testing.T) {
	s := New()
	s.PutWorker(coremodel.Worker{ID: 3, Name: "Wang Fang"})

	wid := int64(3)
	a := &coremodel.Alert{WorkerID: &wid, Status: coremodel.StatusPending}
	require.NoError(t, s.CreateAlert(context.Background(), a))
	assert.Equal(t, "Wang Fang", a.WorkerName)

	b := newAlert(t, s, coremodel.SeverityLow, time.Now())
	assert.Equal(t, coremodel.UnknownWorkerName, b.WorkerName)
}

func TestStore_AcknowledgeOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	created := time.Now().Add(-90 * time.Second)
	a := newAlert(t, s, coremodel.SeverityHigh, created)

	at := created.Add(90 * time.Second)
	got, err := s.AcknowledgeAlert(ctx, a.ID, "op1", at, nil)
	require.NoError(t, err)
	assert.Equal(t, coremodel.StatusAcknowledged, got.Status)
	require.NotNil(t, got.ResponseTimeMs)
	assert.Equal(t, int64(90000), *got.ResponseTimeMs)

	_, err = s.AcknowledgeAlert(ctx, a.ID, "op2", at.Add(time.Minute), nil)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	again, err := s.GetAlert(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), *again.ResponseTimeMs)
	assert.Equal(t, "op1", *again.AcknowledgedBy)

	_, err = s.AcknowledgeAlert(ctx, 999, "op", at, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_MarkEscalatedConditional(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newAlert(t, s, coremodel.SeverityCritical, time.Now().Add(-time.Hour))

	ok, err := s.MarkEscalated(ctx, a.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.MarkEscalated(ctx, a.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "只置位一次")

	b := newAlert(t, s, coremodel.SeverityCritical, time.Now().Add(-time.Hour))
	_, err = s.AcknowledgeAlert(ctx, b.ID, "op", time.Now(), nil)
	require.NoError(t, err)
	ok, err = s.MarkEscalated(ctx, b.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "已确认的告警不可升级")
}

func TestStore_ConcurrentAcknowledgeAndEscalate(t *testing.T) {
	s := New()
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		a := newAlert(t, s, coremodel.SeverityCritical, time.Now().Add(-time.Hour))

		var wg sync.WaitGroup
		var acked, escalated bool
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.AcknowledgeAlert(ctx, a.ID, "op", time.Now(), nil)
			acked = err == nil
		}()
		go func() {
			defer wg.Done()
			escalated, _ = s.MarkEscalated(ctx, a.ID, time.Now())
		}()
		wg.Wait()

		require.True(t, acked)
		got, err := s.GetAlert(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, escalated, got.Escalated)
		assert.Equal(t, coremodel.StatusAcknowledged, got.Status)
	}
}

func TestStore_ListFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	a := newAlert(t, s, coremodel.SeverityCritical, base)
	b := newAlert(t, s, coremodel.SeverityLow, base.Add(time.Minute))
	c := newAlert(t, s, coremodel.SeverityLow, base.Add(2*time.Minute))
	_, err := s.ArchiveAlert(ctx, b.ID, time.Now())
	require.NoError(t, err)

	all, err := s.ListAlerts(ctx, coremodel.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, c.ID, all[0].ID, "按创建时间倒序")
	assert.Equal(t, a.ID, all[1].ID)

	withArchived, err := s.ListAlerts(ctx, coremodel.AlertFilter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, withArchived, 3)

	low, err := s.ListAlerts(ctx, coremodel.AlertFilter{Severity: coremodel.SeverityLow, IncludeArchived: true, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, b.ID, low[0].ID)

	empty, err := s.ListAlerts(ctx, coremodel.AlertFilter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_Resolve(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := newAlert(t, s, coremodel.SeverityMedium, time.Now())

	notes := "fixed"
	got, err := s.ResolveAlert(ctx, a.ID, time.Now(), &notes)
	require.NoError(t, err)
	assert.Equal(t, coremodel.StatusResolved, got.Status)
	assert.Equal(t, "fixed", got.Notes)

	_, err = s.ResolveAlert(ctx, a.ID, time.Now(), nil)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
}
