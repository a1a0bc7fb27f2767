package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"grantku_backend/internals/features/payment/model"
)

/* ====================== GATEWAY EVENT LOG ====================== */

type GatewayEventRepository struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewGatewayEventRepository(db *gorm.DB) *GatewayEventRepository {
	return &GatewayEventRepository{DB: db, now: time.Now}
}

// Log menyimpan notifikasi terverifikasi dengan status received.
func (r *GatewayEventRepository) Log(ctx context.Context, ev *model.PaymentGatewayEvent) error {
	if ev.GatewayEventID == uuid.Nil {
		ev.GatewayEventID = uuid.New()
	}
	if ev.GatewayEventStatus == "" {
		ev.GatewayEventStatus = model.GatewayEventReceived
	}
	if ev.GatewayEventReceivedAt.IsZero() {
		ev.GatewayEventReceivedAt = r.now().UTC()
	}
	return r.DB.WithContext(ctx).Create(ev).Error
}

func (r *GatewayEventRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	now := r.now().UTC()
	return r.DB.WithContext(ctx).
		Model(&model.PaymentGatewayEvent{}).
		Where("gateway_event_id = ?", id).
		Updates(map[string]interface{}{
			"gateway_event_status":       model.GatewayEventProcessed,
			"gateway_event_error":        nil,
			"gateway_event_processed_at": now,
			"gateway_event_try_count":    gorm.Expr("gateway_event_try_count + 1"),
		}).Error
}

func (r *GatewayEventRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.DB.WithContext(ctx).
		Model(&model.PaymentGatewayEvent{}).
		Where("gateway_event_id = ? AND gateway_event_status <> ?", id, model.GatewayEventProcessed).
		Updates(map[string]interface{}{
			"gateway_event_status":    model.GatewayEventFailed,
			"gateway_event_error":     errMsg,
			"gateway_event_try_count": gorm.Expr("gateway_event_try_count + 1"),
		}).Error
}

// MarkUnmatched hanya menyentuh event yang masih received: insert aplikasi
// yang berjalan bersamaan boleh sudah menandainya processed.
func (r *GatewayEventRepository) MarkUnmatched(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).
		Model(&model.PaymentGatewayEvent{}).
		Where("gateway_event_id = ? AND gateway_event_status = ?", id, model.GatewayEventReceived).
		Updates(map[string]interface{}{
			"gateway_event_status":    model.GatewayEventUnmatched,
			"gateway_event_try_count": gorm.Expr("gateway_event_try_count + 1"),
		}).Error
}

// Unapplied: event untuk reference yang belum pernah sampai ke record, urut waktu terima.
func (r *GatewayEventRepository) Unapplied(ctx context.Context, reference string) ([]model.PaymentGatewayEvent, error) {
	var out []model.PaymentGatewayEvent
	err := r.DB.WithContext(ctx).
		Where("gateway_event_reference = ? AND gateway_event_status IN ?", reference,
			[]string{model.GatewayEventReceived, model.GatewayEventUnmatched, model.GatewayEventFailed}).
		Order("gateway_event_received_at ASC").
		Find(&out).Error
	return out, err
}
