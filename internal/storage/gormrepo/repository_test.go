package gormrepo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
	"github.com/taoyao-code/worker-safety/internal/migrate"
	"github.com/taoyao-code/worker-safety/internal/storage"
	"github.com/taoyao-code/worker-safety/internal/storage/pg"
)

var testPool *pgxpool.Pool

// TestMain 测试数据库不可用时整体跳过
func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		os.Exit(0)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		os.Exit(0)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		os.Exit(0)
	}
	if err := (migrate.Runner{FS: migrate.Embedded()}).Up(ctx, pool); err != nil {
		pool.Close()
		os.Exit(1)
	}
	testPool = pool

	code := m.Run()
	pool.Close()
	os.Exit(code)
}

func setupRepo(t *testing.T) *Repository {
	t.Helper()
	if testPool == nil {
		t.Skip("测试数据库不可用，跳过测试")
	}
	db, err := pg.OpenGorm(testPool)
	require.NoError(t, err)
	return New(db)
}

func cleanup(t *testing.T, deviceID string) {
	ctx := context.Background()
	if _, err := testPool.Exec(ctx, "DELETE FROM alerts WHERE device_id = $1", deviceID); err != nil {
		t.Logf("清理测试数据失败: %v", err)
	}
	_, _ = testPool.Exec(ctx, "DELETE FROM sensor_records WHERE device_id = $1", deviceID)
	_, _ = testPool.Exec(ctx, "DELETE FROM devices WHERE device_id = $1", deviceID)
}

func TestRepository_TouchDevice(t *testing.T) {
	repo := setupRepo(t)
	const dev = "TEST_GORM_DEV_1"
	defer cleanup(t, dev)
	ctx := context.Background()

	b := 42.0
	d, err := repo.TouchDevice(ctx, dev, time.Now(), &b)
	require.NoError(t, err)
	require.NotNil(t, d.Battery)
	assert.Equal(t, 42.0, *d.Battery)

	d, err = repo.TouchDevice(ctx, dev, time.Now(), nil)
	require.NoError(t, err)
	require.NotNil(t, d.Battery)
	assert.Equal(t, 42.0, *d.Battery)

	_, err = repo.GetDevice(ctx, "TEST_GORM_NOPE")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRepository_AlertLifecycle(t *testing.T) {
	repo := setupRepo(t)
	const dev = "TEST_GORM_DEV_2"
	defer cleanup(t, dev)
	ctx := context.Background()

	created := time.Now().UTC().Add(-3 * time.Minute).Truncate(time.Millisecond)
	a := &coremodel.Alert{
		Type:         coremodel.AlertTypeGasLeak,
		Severity:     coremodel.SeverityCritical,
		DeviceID:     dev,
		TriggerValue: "120 ppm",
		Threshold:    "100 ppm",
		Status:       coremodel.StatusPending,
		Priority:     coremodel.PriorityUrgent,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	require.NoError(t, repo.CreateAlert(ctx, a))
	require.NotZero(t, a.ID)
	assert.Equal(t, coremodel.UnknownWorkerName, a.WorkerName)

	cands, err := repo.ListEscalationCandidates(ctx)
	require.NoError(t, err)
	found := false
	for _, c := range cands {
		if c.ID == a.ID {
			found = true
		}
	}
	assert.True(t, found)

	ackAt := created.Add(time.Minute)
	got, err := repo.AcknowledgeAlert(ctx, a.ID, "op", ackAt, nil)
	require.NoError(t, err)
	require.NotNil(t, got.ResponseTimeMs)
	assert.Equal(t, int64(60000), *got.ResponseTimeMs)

	_, err = repo.AcknowledgeAlert(ctx, a.ID, "op2", ackAt, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	ok, err := repo.MarkEscalated(ctx, a.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "已确认的告警不再升级")

	_, err = repo.ArchiveAlert(ctx, a.ID, time.Now())
	require.NoError(t, err)
	list, err := repo.ListAlerts(ctx, coremodel.AlertFilter{DeviceID: dev})
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = repo.ListAlerts(ctx, coremodel.AlertFilter{DeviceID: dev, IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	res, err := repo.ResolveAlert(ctx, a.ID, time.Now(), nil)
	require.NoError(t, err)
	assert.Equal(t, coremodel.StatusResolved, res.Status)
	_, err = repo.ResolveAlert(ctx, a.ID, time.Now(), nil)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	_, err = repo.AssignAlert(ctx, 0, "nobody", time.Now())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRepository_AppendSample(t *testing.T) {
	repo := setupRepo(t)
	const dev = "TEST_GORM_DEV_3"
	defer cleanup(t, dev)

	temp := 30.5
	id, err := repo.AppendSample(context.Background(), coremodel.Sample{
		DeviceID:    dev,
		Timestamp:   time.Now(),
		Temperature: &temp,
		Accel:       &coremodel.Vector3{X: 1, Y: 2, Z: 3},
		Raw:         map[string]any{"device_id": dev, "temperature": 30.5},
	})
	require.NoError(t, err)
	assert.NotZero(t, id)
}
