package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	StatusPending = "pending"

	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusCancelled = "cancelled"
	PaymentStatusFailed    = "failed"
)

// GrantApplication: satu record per run yang berhasil. Semua nilai diisi
// di Go (tidak ada default DB) supaya insert tidak butuh RETURNING.
type GrantApplication struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	FullName      string          `gorm:"type:varchar(150);not null" json:"full_name"`
	PhoneNumber   string          `gorm:"type:varchar(30);not null" json:"phone_number"`
	Email         string          `gorm:"type:varchar(150);not null" json:"email"`
	NIN           string          `gorm:"column:nin;type:varchar(20);not null;index" json:"nin"`
	BVN           *string         `gorm:"column:bvn;type:varchar(20)" json:"bvn,omitempty"`
	SchoolName    string          `gorm:"type:varchar(200);not null" json:"school_name"`
	StudyLevel    string          `gorm:"type:varchar(30);not null" json:"study_level"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Reason        string          `gorm:"type:text;not null" json:"reason"`
	AccountNumber string          `gorm:"type:varchar(20);not null" json:"account_number"`
	AccountName   string          `gorm:"type:varchar(150);not null" json:"account_name"`
	Bank          string          `gorm:"type:varchar(80);not null" json:"bank"`
	PassportURL   *string         `gorm:"type:text" json:"passport_url,omitempty"`

	Status      string    `gorm:"type:varchar(20);not null;index" json:"status"`
	SubmittedAt time.Time `gorm:"not null" json:"submitted_at"`

	// payment (hanya bila pembayaran diwajibkan)
	PaymentStatus        *string             `gorm:"type:varchar(20)" json:"payment_status,omitempty"`
	PaymentReference     *string             `gorm:"type:varchar(80);uniqueIndex" json:"payment_reference,omitempty"`
	PaymentAmount        decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"payment_amount"`
	PaymentDate          *time.Time          `json:"payment_date,omitempty"`
	PaymentGateway       *string             `gorm:"type:varchar(20)" json:"payment_gateway,omitempty"`
	PaymentGatewayStatus *string             `gorm:"type:varchar(30)" json:"payment_gateway_status,omitempty"`
	PaymentMethod        *string             `gorm:"type:varchar(40)" json:"payment_method,omitempty"`
	PaymentConfirmedAt   *time.Time          `json:"payment_confirmed_at,omitempty"`
	PaymentMetadata      datatypes.JSONMap   `gorm:"type:jsonb" json:"payment_metadata,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GrantApplication) TableName() string { return "grant_applications" }
