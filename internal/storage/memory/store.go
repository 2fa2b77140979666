// Package memory 提供进程内的 storage.Repository 实现，用于开发环境与单元测试。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
	"github.com/taoyao-code/worker-safety/internal/storage"
)

// Store 以单把互斥锁保护全部表，条件更新在锁内完成
type Store struct {
	mu sync.Mutex

	samples  []coremodel.Sample
	devices  map[coremodel.DeviceID]*coremodel.Device
	workers  map[int64]*coremodel.Worker
	alerts   map[int64]*coremodel.Alert
	contacts []coremodel.EmergencyContact
	subs     []coremodel.PushSubscription

	nextAlertID int64
}

var _ storage.Repository = (*Store)(nil)

// New 创建空存储
func New() *Store {
	return &Store{
		devices: make(map[coremodel.DeviceID]*coremodel.Device),
		workers: make(map[int64]*coremodel.Worker),
		alerts:  make(map[int64]*coremodel.Alert),
	}
}

// PutWorker 写入工人（模拟外部人员管理）
func (s *Store) PutWorker(w coremodel.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[w.ID] = &w
}

// AssignDevice 绑定设备与工人（模拟外部设备管理）
func (s *Store) AssignDevice(id coremodel.DeviceID, workerID *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.deviceLocked(id)
	d.WorkerID = workerID
}

// AddContact 添加紧急联系人
func (s *Store) AddContact(c coremodel.EmergencyContact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = append(s.contacts, c)
}

// AddPushSubscription 添加推送订阅
func (s *Store) AddPushSubscription(p coremodel.PushSubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, p)
}

// Samples 返回已写入样本的副本
func (s *Store) Samples() []coremodel.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]coremodel.Sample(nil), s.samples...)
}

// SetAlertCreatedAt 调整创建时间（测试用）
func (s *Store) SetAlertCreatedAt(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.alerts[id]; ok {
		a.CreatedAt = at
	}
}

func (s *Store) AppendSample(ctx context.Context, sample coremodel.Sample) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sample)
	return int64(len(s.samples)), nil
}

func (s *Store) deviceLocked(id coremodel.DeviceID) *coremodel.Device {
	d, ok := s.devices[id]
	if !ok {
		d = &coremodel.Device{DeviceID: id, Status: "active"}
		s.devices[id] = d
	}
	return d
}

func (s *Store) TouchDevice(ctx context.Context, id coremodel.DeviceID, at time.Time, battery *float64) (*coremodel.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.deviceLocked(id)
	ts := at
	d.LastCommunicationAt = &ts
	if battery != nil {
		b := *battery
		d.Battery = &b
	}
	cp := *d
	return &cp, nil
}

func (s *Store) GetDevice(ctx context.Context, id coremodel.DeviceID) (*coremodel.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *Store) GetWorker(ctx context.Context, id int64) (*coremodel.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

// snapshotLocked 复制告警并解析工人姓名
func (s *Store) snapshotLocked(a *coremodel.Alert) *coremodel.Alert {
	cp := *a
	cp.WorkerName = coremodel.UnknownWorkerName
	if a.WorkerID != nil {
		if w, ok := s.workers[*a.WorkerID]; ok {
			cp.WorkerName = w.DisplayName()
		}
	}
	return &cp
}

func (s *Store) CreateAlert(ctx context.Context, a *coremodel.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAlertID++
	stored := *a
	stored.ID = s.nextAlertID
	s.alerts[stored.ID] = &stored
	*a = *s.snapshotLocked(&stored)
	return nil
}

func (s *Store) GetAlert(ctx context.Context, id int64) (*coremodel.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.snapshotLocked(a), nil
}

func (s *Store) ListAlerts(ctx context.Context, f coremodel.AlertFilter) ([]coremodel.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []coremodel.Alert
	for _, a := range s.alerts {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		if f.DeviceID != "" && a.DeviceID != f.DeviceID {
			continue
		}
		if a.Archived && !f.IncludeArchived {
			continue
		}
		out = append(out, *s.snapshotLocked(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []coremodel.Alert{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) ListEscalationCandidates(ctx context.Context) ([]coremodel.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []coremodel.Alert
	for _, a := range s.alerts {
		if a.Status == coremodel.StatusPending && !a.Escalated {
			out = append(out, *s.snapshotLocked(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MarkEscalated(ctx context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.Status != coremodel.StatusPending || a.Escalated {
		return false, nil
	}
	ts := at
	a.Escalated = true
	a.EscalatedAt = &ts
	a.UpdatedAt = at
	return true, nil
}

func (s *Store) AcknowledgeAlert(ctx context.Context, id int64, by string, at time.Time, notes *string) (*coremodel.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if !a.Status.CanAcknowledge() {
		return nil, storage.ErrInvalidTransition
	}
	ts := at
	actor := by
	rt := at.Sub(a.CreatedAt).Milliseconds()
	a.Status = coremodel.StatusAcknowledged
	a.AcknowledgedBy = &actor
	a.AcknowledgedAt = &ts
	a.ResponseTimeMs = &rt
	if notes != nil {
		a.Notes = *notes
	}
	a.UpdatedAt = at
	return s.snapshotLocked(a), nil
}

func (s *Store) AssignAlert(ctx context.Context, id int64, assignee string, at time.Time) (*coremodel.Alert, error) {
	return s.mutate(id, func(a *coremodel.Alert) error {
		who := assignee
		a.AssignedTo = &who
		a.UpdatedAt = at
		return nil
	})
}

func (s *Store) UpdateNotes(ctx context.Context, id int64, notes string, at time.Time) (*coremodel.Alert, error) {
	return s.mutate(id, func(a *coremodel.Alert) error {
		a.Notes = notes
		a.UpdatedAt = at
		return nil
	})
}

func (s *Store) ResolveAlert(ctx context.Context, id int64, at time.Time, notes *string) (*coremodel.Alert, error) {
	return s.mutate(id, func(a *coremodel.Alert) error {
		if !a.Status.CanResolve() {
			return storage.ErrInvalidTransition
		}
		ts := at
		a.Status = coremodel.StatusResolved
		a.ResolvedAt = &ts
		if notes != nil {
			a.Notes = *notes
		}
		a.UpdatedAt = at
		return nil
	})
}

func (s *Store) ArchiveAlert(ctx context.Context, id int64, at time.Time) (*coremodel.Alert, error) {
	return s.mutate(id, func(a *coremodel.Alert) error {
		a.Archived = true
		a.UpdatedAt = at
		return nil
	})
}

func (s *Store) mutate(id int64, fn func(*coremodel.Alert) error) (*coremodel.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if err := fn(a); err != nil {
		return nil, err
	}
	return s.snapshotLocked(a), nil
}

func (s *Store) ListEmergencyContacts(ctx context.Context) ([]coremodel.EmergencyContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]coremodel.EmergencyContact(nil), s.contacts...), nil
}

func (s *Store) ListPushSubscriptions(ctx context.Context) ([]coremodel.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]coremodel.PushSubscription(nil), s.subs...), nil
}
