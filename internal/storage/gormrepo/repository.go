package gormrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taoyao-code/worker-safety/internal/coremodel"
	"github.com/taoyao-code/worker-safety/internal/storage"
	"github.com/taoyao-code/worker-safety/internal/storage/models"
)

// Repository 基于 GORM 的 storage.Repository 实现。
// 使用 isTx 标记区分事务上下文，避免嵌套事务重复 Begin/Commit。
type Repository struct {
	db   *gorm.DB
	isTx bool
}

var _ storage.Repository = (*Repository)(nil)

// New 返回一个使用给定 *gorm.DB 的仓储实例。
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// withTx 复用现有事务或开启新事务执行 fn。
func (r *Repository) withTx(ctx context.Context, fn func(*Repository) error) error {
	if r.isTx {
		return fn(r)
	}

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	child := &Repository{db: tx, isTx: true}
	if err := fn(child); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

// ---------- 样本 ----------

// AppendSample 追加一条遥测记录。
func (r *Repository) AppendSample(ctx context.Context, s coremodel.Sample) (int64, error) {
	rec, err := toSensorRecord(s)
	if err != nil {
		return 0, err
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// ---------- 设备 ----------

// TouchDevice 刷新心跳（不存在则插入）。battery 为空时保留原值。
func (r *Repository) TouchDevice(ctx context.Context, id coremodel.DeviceID, at time.Time, battery *float64) (*coremodel.Device, error) {
	ts := at
	record := &models.Device{
		DeviceID:            string(id),
		Battery:             battery,
		LastCommunicationAt: &ts,
		Status:              "active",
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "device_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"last_communication_at": gorm.Expr("excluded.last_communication_at"),
				"battery":               gorm.Expr("COALESCE(excluded.battery, devices.battery)"),
				"updated_at":            gorm.Expr("NOW()"),
			}),
		}).
		Create(record).Error
	if err != nil {
		return nil, err
	}
	return r.GetDevice(ctx, id)
}

// GetDevice 通过设备标识查询。
func (r *Repository) GetDevice(ctx context.Context, id coremodel.DeviceID) (*coremodel.Device, error) {
	var device models.Device
	err := r.db.WithContext(ctx).Where("device_id = ?", string(id)).First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDevice(&device), nil
}

// GetWorker 查询工人。
func (r *Repository) GetWorker(ctx context.Context, id int64) (*coremodel.Worker, error) {
	var w models.Worker
	err := r.db.WithContext(ctx).First(&w, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coremodel.Worker{ID: w.ID, Name: w.Name}, nil
}

// ---------- 告警 ----------

// alertQuery 带工人姓名的告警查询
func (r *Repository) alertQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Select("alerts.*, workers.name AS worker_name").
		Joins("LEFT JOIN workers ON workers.id = alerts.worker_id")
}

// CreateAlert 插入告警并回填 ID 与工人姓名。
func (r *Repository) CreateAlert(ctx context.Context, a *coremodel.Alert) error {
	m := fromAlert(a)
	m.ID = 0
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	created, err := r.GetAlert(ctx, m.ID)
	if err != nil {
		return err
	}
	*a = *created
	return nil
}

// GetAlert 按 ID 查询。
func (r *Repository) GetAlert(ctx context.Context, id int64) (*coremodel.Alert, error) {
	var m models.Alert
	err := r.alertQuery(ctx).Where("alerts.id = ?", id).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toAlert(&m), nil
}

// ListAlerts 过滤分页，按创建时间倒序；默认排除已归档。
func (r *Repository) ListAlerts(ctx context.Context, f coremodel.AlertFilter) ([]coremodel.Alert, error) {
	q := r.alertQuery(ctx).Order("alerts.created_at DESC, alerts.id DESC")
	if f.Status != "" {
		q = q.Where("alerts.status = ?", string(f.Status))
	}
	if f.Severity != "" {
		q = q.Where("alerts.severity = ?", string(f.Severity))
	}
	if f.DeviceID != "" {
		q = q.Where("alerts.device_id = ?", string(f.DeviceID))
	}
	if !f.IncludeArchived {
		q = q.Where("alerts.archived = ?", false)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var rows []models.Alert
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]coremodel.Alert, 0, len(rows))
	for i := range rows {
		out = append(out, *toAlert(&rows[i]))
	}
	return out, nil
}

// ListEscalationCandidates 待升级候选（含已归档）。
func (r *Repository) ListEscalationCandidates(ctx context.Context) ([]coremodel.Alert, error) {
	var rows []models.Alert
	err := r.alertQuery(ctx).
		Where("alerts.status = ? AND alerts.escalated = ?", string(coremodel.StatusPending), false).
		Order("alerts.created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]coremodel.Alert, 0, len(rows))
	for i := range rows {
		out = append(out, *toAlert(&rows[i]))
	}
	return out, nil
}

// MarkEscalated 原子条件更新，避免与确认操作竞争。
func (r *Repository) MarkEscalated(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ? AND status = ? AND escalated = ?", id, string(coremodel.StatusPending), false).
		Updates(map[string]interface{}{
			"escalated":    true,
			"escalated_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AcknowledgeAlert 仅 Pending/Responding 可确认，响应时长只计算一次。
func (r *Repository) AcknowledgeAlert(ctx context.Context, id int64, by string, at time.Time, notes *string) (*coremodel.Alert, error) {
	var out *coremodel.Alert
	err := r.withTx(ctx, func(tx *Repository) error {
		var cur models.Alert
		err := tx.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "status", "created_at").
			Where("id = ?", id).
			Take(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		if !coremodel.AlertStatus(cur.Status).CanAcknowledge() {
			return storage.ErrInvalidTransition
		}

		updates := map[string]interface{}{
			"status":           string(coremodel.StatusAcknowledged),
			"acknowledged_by":  by,
			"acknowledged_at":  at,
			"response_time_ms": at.Sub(cur.CreatedAt).Milliseconds(),
			"updated_at":       at,
		}
		if notes != nil {
			updates["notes"] = *notes
		}
		res := tx.db.WithContext(ctx).
			Model(&models.Alert{}).
			Where("id = ? AND status IN ?", id, []string{string(coremodel.StatusPending), string(coremodel.StatusResponding)}).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrInvalidTransition
		}
		out, err = tx.GetAlert(ctx, id)
		return err
	})
	return out, err
}

// AssignAlert 只改 assigned_to，不改状态。
func (r *Repository) AssignAlert(ctx context.Context, id int64, assignee string, at time.Time) (*coremodel.Alert, error) {
	return r.update(ctx, id, map[string]interface{}{"assigned_to": assignee, "updated_at": at})
}

// UpdateNotes 替换备注。
func (r *Repository) UpdateNotes(ctx context.Context, id int64, notes string, at time.Time) (*coremodel.Alert, error) {
	return r.update(ctx, id, map[string]interface{}{"notes": notes, "updated_at": at})
}

// ArchiveAlert 软删除，不触碰状态与升级字段。
func (r *Repository) ArchiveAlert(ctx context.Context, id int64, at time.Time) (*coremodel.Alert, error) {
	return r.update(ctx, id, map[string]interface{}{"archived": true, "updated_at": at})
}

// ResolveAlert Resolved 为终态，重复解决返回 ErrInvalidTransition。
func (r *Repository) ResolveAlert(ctx context.Context, id int64, at time.Time, notes *string) (*coremodel.Alert, error) {
	var out *coremodel.Alert
	err := r.withTx(ctx, func(tx *Repository) error {
		updates := map[string]interface{}{
			"status":      string(coremodel.StatusResolved),
			"resolved_at": at,
			"updated_at":  at,
		}
		if notes != nil {
			updates["notes"] = *notes
		}
		res := tx.db.WithContext(ctx).
			Model(&models.Alert{}).
			Where("id = ? AND status <> ?", id, string(coremodel.StatusResolved)).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		cur, err := tx.GetAlert(ctx, id)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return storage.ErrInvalidTransition
		}
		out = cur
		return nil
	})
	return out, err
}

// update 无条件更新后读回；0 行命中视为不存在。
func (r *Repository) update(ctx context.Context, id int64, updates map[string]interface{}) (*coremodel.Alert, error) {
	res := r.db.WithContext(ctx).Model(&models.Alert{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, storage.ErrNotFound
	}
	return r.GetAlert(ctx, id)
}

// ---------- 通知对象 ----------

// ListEmergencyContacts 启用中的紧急联系人。
func (r *Repository) ListEmergencyContacts(ctx context.Context) ([]coremodel.EmergencyContact, error) {
	var rows []models.EmergencyContact
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]coremodel.EmergencyContact, 0, len(rows))
	for _, c := range rows {
		out = append(out, coremodel.EmergencyContact{ID: c.ID, Name: c.Name, Email: c.Email})
	}
	return out, nil
}

// ListPushSubscriptions 全部 Web Push 订阅。
func (r *Repository) ListPushSubscriptions(ctx context.Context) ([]coremodel.PushSubscription, error) {
	var rows []models.PushSubscription
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]coremodel.PushSubscription, 0, len(rows))
	for _, s := range rows {
		out = append(out, coremodel.PushSubscription{ID: s.ID, Endpoint: s.Endpoint, P256dh: s.P256dh, Auth: s.Auth})
	}
	return out, nil
}
