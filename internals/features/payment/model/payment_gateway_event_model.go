// file: internals/features/payment/model/payment_gateway_event_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

/*
  payment_gateway_events = LOG WEBHOOK GATEWAY
  - Satu row per notifikasi terverifikasi (bisa banyak per reference)
  - Webhook yang datang sebelum aplikasi ter-insert tetap tersimpan
    (status unmatched) dan diterapkan saat insert.
*/

const (
	GatewayEventReceived  = "received"
	GatewayEventProcessed = "processed"
	GatewayEventUnmatched = "unmatched"
	GatewayEventFailed    = "failed"
)

type PaymentGatewayEvent struct {
	GatewayEventID uuid.UUID `gorm:"column:gateway_event_id;type:uuid;primaryKey" json:"gateway_event_id"`

	// Provider & identitas event
	GatewayEventProvider      string  `gorm:"column:gateway_event_provider;size:20;not null" json:"gateway_event_provider"`
	GatewayEventType          *string `gorm:"column:gateway_event_type" json:"gateway_event_type"`
	GatewayEventReference     string  `gorm:"column:gateway_event_reference;not null;index" json:"gateway_event_reference"`
	GatewayEventGatewayStatus string  `gorm:"column:gateway_event_gateway_status" json:"gateway_event_gateway_status"`
	GatewayEventExternalRef   *string `gorm:"column:gateway_event_external_ref" json:"gateway_event_external_ref"`

	// Raw data (debug / replay). Payload = widget.Response hasil normalisasi.
	GatewayEventHeaders   datatypes.JSON `gorm:"column:gateway_event_headers;type:jsonb" json:"gateway_event_headers"`
	GatewayEventPayload   datatypes.JSON `gorm:"column:gateway_event_payload;type:jsonb" json:"gateway_event_payload"`
	GatewayEventSignature *string        `gorm:"column:gateway_event_signature" json:"-"`

	// Status processing internal
	GatewayEventStatus   string  `gorm:"column:gateway_event_status;size:20;not null;default:'received';index" json:"gateway_event_status"`
	GatewayEventError    *string `gorm:"column:gateway_event_error" json:"gateway_event_error"`
	GatewayEventTryCount int     `gorm:"column:gateway_event_try_count;not null;default:0" json:"gateway_event_try_count"`

	GatewayEventReceivedAt  time.Time  `gorm:"column:gateway_event_received_at;not null" json:"gateway_event_received_at"`
	GatewayEventProcessedAt *time.Time `gorm:"column:gateway_event_processed_at" json:"gateway_event_processed_at"`

	GatewayEventCreatedAt time.Time `gorm:"column:gateway_event_created_at;autoCreateTime" json:"gateway_event_created_at"`
	GatewayEventUpdatedAt time.Time `gorm:"column:gateway_event_updated_at;autoUpdateTime" json:"gateway_event_updated_at"`
}

func (PaymentGatewayEvent) TableName() string {
	return "payment_gateway_events"
}
