package alerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
	"github.com/taoyao-code/worker-safety/internal/events"
	"github.com/taoyao-code/worker-safety/internal/storage"
	"github.com/taoyao-code/worker-safety/internal/storage/memory"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []coremodel.Alert
	accept bool
}

func (n *recordingNotifier) Enqueue(a coremodel.Alert) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return n.accept
}

type fixture struct {
	svc      *Service
	store    *memory.Store
	rec      *events.Recorder
	clk      *clockwork.FakeClock
	notifier *recordingNotifier
}

var t0 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	store := memory.New()
	rec := &events.Recorder{}
	clk := clockwork.NewFakeClockAt(t0)
	n := &recordingNotifier{accept: true}
	svc := NewService(store, rec, nil, WithClock(clk), WithNotifier(n))
	return &fixture{svc: svc, store: store, rec: rec, clk: clk, notifier: n}
}

func (f *fixture) create(t *testing.T, sev coremodel.Severity) *coremodel.Alert {
	t.Helper()
	a, err := f.svc.Create(context.Background(), coremodel.AlertRequest{
		Type:         coremodel.AlertTypeHighTemperature,
		Severity:     sev,
		DeviceID:     "D1",
		TriggerValue: "45°C",
		Threshold:    "40",
	})
	require.NoError(t, err)
	return a
}

func TestCreate_DefaultsAndEvents(t *testing.T) {
	f := newFixture()
	a := f.create(t, coremodel.SeverityHigh)

	assert.Equal(t, coremodel.StatusPending, a.Status)
	assert.False(t, a.Escalated)
	assert.Equal(t, coremodel.PriorityHigh, a.Priority)
	assert.Equal(t, t0, a.CreatedAt)
	assert.Equal(t, coremodel.UnknownWorkerName, a.WorkerName)

	assert.Equal(t, 1, f.rec.Count(events.AlertCreated))
	assert.Equal(t, 0, f.rec.Count(events.EmergencyAlert))
	assert.Empty(t, f.notifier.alerts)
}

func TestCreate_PriorityBySeverity(t *testing.T) {
	cases := map[coremodel.Severity]coremodel.Priority{
		coremodel.SeverityCritical: coremodel.PriorityUrgent,
		coremodel.SeverityHigh:     coremodel.PriorityHigh,
		coremodel.SeverityMedium:   coremodel.PriorityNormal,
		coremodel.SeverityLow:      coremodel.PriorityLow,
	}
	for sev, want := range cases {
		f := newFixture()
		assert.Equal(t, want, f.create(t, sev).Priority, sev)
	}
}

func TestCreate_CriticalEmitsEmergencyAndNotifies(t *testing.T) {
	f := newFixture()
	f.store.PutWorker(coremodel.Worker{ID: 7, Name: "Alice"})
	wid := int64(7)
	lat, lon := 31.2, 121.5

	a, err := f.svc.Create(context.Background(), coremodel.AlertRequest{
		Type:         coremodel.AlertTypeEmergencyButton,
		Severity:     coremodel.SeverityCritical,
		DeviceID:     "D9",
		WorkerID:     &wid,
		TriggerValue: "Button Pressed",
	}, WithOrigin(&coremodel.Sample{DeviceID: "D9", Latitude: &lat, Longitude: &lon}, &coremodel.Worker{ID: 7, Name: "Alice"}))
	require.NoError(t, err)
	assert.Equal(t, "Alice", a.WorkerName)

	evs := f.rec.Events()
	require.Len(t, evs, 2)
	assert.Equal(t, events.AlertCreated, evs[0].Name)
	assert.Equal(t, events.EmergencyAlert, evs[1].Name)

	p, ok := evs[1].Data.(events.EmergencyPayload)
	require.True(t, ok)
	assert.Equal(t, &lat, p.Latitude)
	assert.Equal(t, "Alice", p.Worker.Name)
	assert.Contains(t, p.Message, "Alice")

	require.Len(t, f.notifier.alerts, 1)
	assert.Equal(t, a.ID, f.notifier.alerts[0].ID)
}

func TestCreate_RejectedNotificationDoesNotFail(t *testing.T) {
	f := newFixture()
	f.notifier.accept = false
	a := f.create(t, coremodel.SeverityCritical)
	assert.NotZero(t, a.ID)
}

func TestAcknowledge_ResponseTimeOnce(t *testing.T) {
	f := newFixture()
	a := f.create(t, coremodel.SeverityCritical)
	f.rec.Reset()

	f.clk.Advance(90 * time.Second)
	notes := "on my way"
	got, err := f.svc.Acknowledge(context.Background(), a.ID, "sup-1", &notes)
	require.NoError(t, err)
	assert.Equal(t, coremodel.StatusAcknowledged, got.Status)
	require.NotNil(t, got.ResponseTimeMs)
	assert.EqualValues(t, 90000, *got.ResponseTimeMs)
	assert.Equal(t, "on my way", got.Notes)
	assert.Equal(t, 1, f.rec.Count(events.AlertUpdated))
	assert.Equal(t, 1, f.rec.Count(events.EmergencyStatusUpdated))

	f.clk.Advance(time.Minute)
	_, err = f.svc.Acknowledge(context.Background(), a.ID, "sup-2", nil)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	stored, err := f.svc.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 90000, *stored.ResponseTimeMs)
	assert.Equal(t, "sup-1", *stored.AcknowledgedBy)
}

func TestAcknowledge_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.Acknowledge(context.Background(), 404, "x", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, f.rec.Events())
}

func TestAcknowledge_NonCriticalNoEmergencyEvent(t *testing.T) {
	f := newFixture()
	a := f.create(t, coremodel.SeverityLow)
	f.rec.Reset()
	_, err := f.svc.Acknowledge(context.Background(), a.ID, "x", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, f.rec.Count(events.EmergencyStatusUpdated))
}

func TestBatchAcknowledge_SharedTimestampAndSkips(t *testing.T) {
	f := newFixture()
	first := f.create(t, coremodel.SeverityHigh)
	f.clk.Advance(30 * time.Second)
	second := f.create(t, coremodel.SeverityMedium)
	third := f.create(t, coremodel.SeverityLow)
	_, err := f.svc.Resolve(context.Background(), third.ID, nil)
	require.NoError(t, err)

	f.clk.Advance(30 * time.Second)
	acked, err := f.svc.BatchAcknowledge(context.Background(), []int64{first.ID, second.ID, third.ID, 999}, "sup", nil)
	require.NoError(t, err)
	require.Len(t, acked, 2)

	assert.Equal(t, *acked[0].AcknowledgedAt, *acked[1].AcknowledgedAt)
	assert.EqualValues(t, 60000, *acked[0].ResponseTimeMs)
	assert.EqualValues(t, 30000, *acked[1].ResponseTimeMs)
}

func TestAssign_KeepsStatus(t *testing.T) {
	f := newFixture()
	a := f.create(t, coremodel.SeverityCritical)
	f.rec.Reset()

	got, err := f.svc.Assign(context.Background(), a.ID, "team-b")
	require.NoError(t, err)
	assert.Equal(t, coremodel.StatusPending, got.Status)
	assert.Equal(t, "team-b", *got.AssignedTo)
	assert.Equal(t, 1, f.rec.Count(events.EmergencyStatusUpdated))
}

func TestResolve_FromPendingAndTerminal(t *testing.T) {
	f := newFixture()
	a := f.create(t, coremodel.SeverityMedium)
	f.rec.Reset()

	got, err := f.svc.Resolve(context.Background(), a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, coremodel.StatusResolved, got.Status)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, 1, f.rec.Count(events.EmergencyResolved))
	assert.Equal(t, 1, f.rec.Count(events.AlertUpdated))

	_, err = f.svc.Resolve(context.Background(), a.ID, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
	_, err = f.svc.Acknowledge(context.Background(), a.ID, "late", nil)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
}

func TestArchive_HidesFromDefaultList(t *testing.T) {
	f := newFixture()
	a := f.create(t, coremodel.SeverityLow)
	f.create(t, coremodel.SeverityLow)

	got, err := f.svc.Archive(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived)
	assert.Equal(t, coremodel.StatusPending, got.Status)

	list, err := f.svc.List(context.Background(), coremodel.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = f.svc.List(context.Background(), coremodel.AlertFilter{IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestUpdateNotes(t *testing.T) {
	f := newFixture()
	a := f.create(t, coremodel.SeverityLow)
	got, err := f.svc.UpdateNotes(context.Background(), a.ID, "checked sensor")
	require.NoError(t, err)
	assert.Equal(t, "checked sensor", got.Notes)

	_, err = f.svc.UpdateNotes(context.Background(), 999, "x")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
