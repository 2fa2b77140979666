package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/worker-safety/internal/alerts"
	"github.com/taoyao-code/worker-safety/internal/coremodel"
	"github.com/taoyao-code/worker-safety/internal/events"
	"github.com/taoyao-code/worker-safety/internal/storage/memory"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	gw    *Gateway
	store *memory.Store
	rec   *events.Recorder
}

func newHarness() *harness {
	store := memory.New()
	rec := &events.Recorder{}
	clk := clockwork.NewFakeClockAt(now)
	svc := alerts.NewService(store, rec, nil, alerts.WithClock(clk))
	gw := New(Deps{Store: store, Alerts: svc, Publisher: rec, Clock: clk})
	return &harness{gw: gw, store: store, rec: rec}
}

func TestNormalize_DeviceID(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want coremodel.DeviceID
		ok   bool
	}{
		{"string", " D1 ", "D1", true},
		{"number", float64(42), "42", true},
		{"json number", json.Number("17"), "17", true},
		{"missing", nil, "", false},
		{"blank", "   ", "", false},
		{"object", map[string]any{"x": 1}, "", false},
		{"bool", true, "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s, err := Normalize(map[string]any{"device_id": c.in}, now)
			if !c.ok {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "device_id", verr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, s.DeviceID)
		})
	}
}

func TestNormalize_Fields(t *testing.T) {
	s, err := Normalize(map[string]any{
		"device_id":        "D1",
		"temperature":      "45.5",
		"gas_level":        json.Number("120"),
		"accel_x":          3.0,
		"accel_z":          4,
		"battery":          15.0,
		"emergency_button": "true",
		"voice_alert":      1.0,
		"voice_command":    " help ",
		"humidity":         "n/a",
		"timestamp":        "2026-06-01T11:59:00Z",
	}, now)
	require.NoError(t, err)

	assert.Equal(t, 45.5, *s.Temperature)
	assert.Equal(t, 120.0, *s.GasLevel)
	require.NotNil(t, s.Accel)
	assert.Equal(t, 5.0, s.Accel.Magnitude())
	assert.Nil(t, s.Gyro)
	assert.Nil(t, s.Humidity, "unparseable optional field is ignored")
	assert.True(t, s.EmergencyButton)
	assert.True(t, s.VoiceAlert)
	assert.Equal(t, "help", s.VoiceCommand)
	assert.Equal(t, now.Add(-time.Minute), s.Timestamp)
}

func TestNormalize_Timestamp(t *testing.T) {
	s, _ := Normalize(map[string]any{"device_id": "D1"}, now)
	assert.Equal(t, now, s.Timestamp)

	s, _ = Normalize(map[string]any{"device_id": "D1", "timestamp": float64(1780000000)}, now)
	assert.Equal(t, time.Unix(1780000000, 0).UTC(), s.Timestamp)

	s, _ = Normalize(map[string]any{"device_id": "D1", "timestamp": float64(1780000000123)}, now)
	assert.Equal(t, time.UnixMilli(1780000000123).UTC(), s.Timestamp)
}

func TestIngest_TemperatureAndBattery(t *testing.T) {
	h := newHarness()
	wid := int64(7)
	h.store.PutWorker(coremodel.Worker{ID: wid, Name: "Bob"})
	h.store.AssignDevice("D1", &wid)

	res, err := h.gw.Ingest(context.Background(), map[string]any{
		"device_id":   "D1",
		"temperature": 55.0,
		"battery":     15.0,
	}, TransportHTTP)
	require.NoError(t, err)
	assert.Equal(t, 2, res.AlertsTriggered)
	assert.NotZero(t, res.RecordID)

	list, err := h.store.ListAlerts(context.Background(), coremodel.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, a := range list {
		assert.Equal(t, "Bob", a.WorkerName)
		assert.Equal(t, coremodel.StatusPending, a.Status)
	}

	d, err := h.store.GetDevice(context.Background(), "D1")
	require.NoError(t, err)
	assert.Equal(t, 15.0, *d.Battery)
	assert.Equal(t, now, *d.LastCommunicationAt)

	assert.Equal(t, 1, h.rec.Count(events.SensorUpdate))
	assert.Equal(t, 2, h.rec.Count(events.AlertCreated))
	assert.Equal(t, 1, h.rec.Count(events.EmergencyAlert))
}

func TestIngest_NoAlertsStillBroadcasts(t *testing.T) {
	h := newHarness()
	res, err := h.gw.Ingest(context.Background(), map[string]any{"device_id": "D2", "temperature": 22.0}, TransportMQTT)
	require.NoError(t, err)
	assert.Equal(t, 0, res.AlertsTriggered)
	assert.Equal(t, 1, h.rec.Count(events.SensorUpdate))

	ev := h.rec.Events()[0]
	p, ok := ev.Data.(events.SensorPayload)
	require.True(t, ok)
	assert.Equal(t, coremodel.UnknownWorkerName, p.WorkerName)
}

func TestIngest_BatteryKeptWhenAbsent(t *testing.T) {
	h := newHarness()
	_, err := h.gw.Ingest(context.Background(), map[string]any{"device_id": "D3", "battery": 80.0}, TransportHTTP)
	require.NoError(t, err)
	_, err = h.gw.Ingest(context.Background(), map[string]any{"device_id": "D3"}, TransportHTTP)
	require.NoError(t, err)

	d, err := h.store.GetDevice(context.Background(), "D3")
	require.NoError(t, err)
	assert.Equal(t, 80.0, *d.Battery)
	assert.Len(t, h.store.Samples(), 2)
}

func TestIngest_InvalidPayload(t *testing.T) {
	h := newHarness()
	_, err := h.gw.Ingest(context.Background(), map[string]any{"temperature": 99.0}, TransportHTTP)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, h.store.Samples())
	assert.Empty(t, h.rec.Events())
}

type failingAlerts struct{}

func (failingAlerts) Create(context.Context, coremodel.AlertRequest, ...alerts.CreateOption) (*coremodel.Alert, error) {
	return nil, errors.New("db down")
}

func TestIngest_AlertFailureStillBroadcasts(t *testing.T) {
	store := memory.New()
	rec := &events.Recorder{}
	gw := New(Deps{Store: store, Alerts: failingAlerts{}, Publisher: rec})

	res, err := gw.Ingest(context.Background(), map[string]any{"device_id": "D4", "emergency_button": true}, TransportHTTP)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, 0, res.AlertsTriggered)
	assert.Equal(t, 1, rec.Count(events.SensorUpdate))
}
