package escalation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/worker-safety/internal/config"
	"github.com/taoyao-code/worker-safety/internal/coremodel"
	"github.com/taoyao-code/worker-safety/internal/events"
	"github.com/taoyao-code/worker-safety/internal/storage/memory"
)

var t0 = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *memory.Store, sev coremodel.Severity, at time.Time) int64 {
	t.Helper()
	a := &coremodel.Alert{
		Type:      coremodel.AlertTypeHighTemperature,
		Severity:  sev,
		DeviceID:  "D1",
		Status:    coremodel.StatusPending,
		CreatedAt: at,
		UpdatedAt: at,
	}
	require.NoError(t, store.CreateAlert(context.Background(), a))
	return a.ID
}

func TestDeadlines(t *testing.T) {
	d := DefaultDeadlines()
	assert.Equal(t, 2*time.Minute, d.For(coremodel.SeverityCritical))
	assert.Equal(t, 5*time.Minute, d.For(coremodel.SeverityHigh))
	assert.Equal(t, 10*time.Minute, d.For(coremodel.SeverityMedium))
	assert.Equal(t, 15*time.Minute, d.For(coremodel.SeverityLow))
	assert.Equal(t, 10*time.Minute, d.For("Catastrophic"), "未知级别按 Medium")

	c := DeadlinesFromConfig(cfgpkg.DeadlinesConfig{Critical: time.Minute})
	assert.Equal(t, time.Minute, c.Critical)
	assert.Equal(t, 5*time.Minute, c.High)
}

func TestRunOnce_EscalatesOnlyPastDeadline(t *testing.T) {
	store := memory.New()
	rec := &events.Recorder{}
	clk := clockwork.NewFakeClockAt(t0)
	m := NewMonitor(store, rec, 0, DefaultDeadlines(), nil, WithClock(clk))

	critical := seed(t, store, coremodel.SeverityCritical, t0)
	high := seed(t, store, coremodel.SeverityHigh, t0)

	// 2 分钟 59 秒：仅 Critical 到期
	clk.Advance(2*time.Minute + 59*time.Second)
	res, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 1, res.Escalated)

	a, err := store.GetAlert(context.Background(), critical)
	require.NoError(t, err)
	assert.True(t, a.Escalated)
	assert.Equal(t, clk.Now(), *a.EscalatedAt)
	assert.Equal(t, coremodel.StatusPending, a.Status)

	b, err := store.GetAlert(context.Background(), high)
	require.NoError(t, err)
	assert.False(t, b.Escalated)

	evs := rec.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.EmergencyEscalated, evs[0].Name)
	p := evs[0].Data.(events.EscalationPayload)
	assert.EqualValues(t, (2*time.Minute + 59*time.Second).Milliseconds(), p.AgeMs)
	assert.Equal(t, coremodel.UnknownWorkerName, p.WorkerName)

	// 再次巡检不重复升级
	res, err = m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Escalated)
	assert.Len(t, rec.Events(), 1)
}

func TestRunOnce_ExactDeadlineEscalates(t *testing.T) {
	store := memory.New()
	clk := clockwork.NewFakeClockAt(t0)
	m := NewMonitor(store, nil, 0, DefaultDeadlines(), nil, WithClock(clk))
	seed(t, store, coremodel.SeverityLow, t0)

	clk.Advance(15 * time.Minute)
	res, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Escalated)
}

func TestRunOnce_SkipsAcknowledgedAndIncludesArchived(t *testing.T) {
	store := memory.New()
	clk := clockwork.NewFakeClockAt(t0)
	m := NewMonitor(store, nil, 0, DefaultDeadlines(), nil, WithClock(clk))

	acked := seed(t, store, coremodel.SeverityCritical, t0)
	archived := seed(t, store, coremodel.SeverityCritical, t0)
	_, err := store.AcknowledgeAlert(context.Background(), acked, "sup", t0.Add(time.Minute), nil)
	require.NoError(t, err)
	_, err = store.ArchiveAlert(context.Background(), archived, t0)
	require.NoError(t, err)

	clk.Advance(time.Hour)
	res, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Escalated)

	a, _ := store.GetAlert(context.Background(), archived)
	assert.True(t, a.Escalated)
	b, _ := store.GetAlert(context.Background(), acked)
	assert.False(t, b.Escalated)
}

// blockingRepo 让 ListEscalationCandidates 阻塞，用于验证巡检不重叠
type blockingRepo struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *blockingRepo) ListEscalationCandidates(ctx context.Context) ([]coremodel.Alert, error) {
	r.once.Do(func() { close(r.entered) })
	<-r.release
	return r.Store.ListEscalationCandidates(ctx)
}

func TestRunOnce_NoOverlap(t *testing.T) {
	repo := &blockingRepo{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	m := NewMonitor(repo, nil, 0, DefaultDeadlines(), nil)

	done := make(chan Result)
	go func() {
		res, _ := m.RunOnce(context.Background())
		done <- res
	}()
	<-repo.entered

	res, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.EqualValues(t, 1, m.statsSkipped.Load())

	close(repo.release)
	first := <-done
	assert.False(t, first.Skipped)
}

type failingRepo struct{ *memory.Store }

func (failingRepo) ListEscalationCandidates(context.Context) ([]coremodel.Alert, error) {
	return nil, errors.New("connection reset")
}

func TestStart_ContinuesAfterError(t *testing.T) {
	store := memory.New()
	clk := clockwork.NewFakeClockAt(t0)
	m := NewMonitor(failingRepo{store}, nil, 30*time.Second, DefaultDeadlines(), nil, WithClock(clk))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		m.Start(ctx)
		close(stopped)
	}()
	require.NoError(t, clk.BlockUntilContext(ctx, 1))

	clk.Advance(30 * time.Second)
	require.Eventually(t, func() bool { return m.statsSweeps.Load() == 1 }, time.Second, time.Millisecond)
	clk.Advance(30 * time.Second)
	require.Eventually(t, func() bool { return m.statsSweeps.Load() == 2 }, time.Second, time.Millisecond)

	cancel()
	<-stopped
}

func TestStart_TickDrivenEscalation(t *testing.T) {
	store := memory.New()
	rec := &events.Recorder{}
	clk := clockwork.NewFakeClockAt(t0)
	m := NewMonitor(store, rec, 30*time.Second, DefaultDeadlines(), nil, WithClock(clk))
	seed(t, store, coremodel.SeverityCritical, t0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)
	require.NoError(t, clk.BlockUntilContext(ctx, 1))

	for i := 0; i < 4; i++ {
		clk.Advance(30 * time.Second)
		want := int64(i + 1)
		require.Eventually(t, func() bool { return m.statsSweeps.Load() == want }, time.Second, time.Millisecond)
	}
	require.Eventually(t, func() bool { return rec.Count(events.EmergencyEscalated) == 1 }, time.Second, time.Millisecond)
}
