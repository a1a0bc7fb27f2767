package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"grantku_backend/internals/features/grants/applications/model"
)

var ErrDuplicateReference = errors.New("payment reference already used by another application")

type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{DB: db} }

func (s *GormStore) Insert(ctx context.Context, rec *model.GrantApplication) error {
	err := s.DB.WithContext(ctx).Create(rec).Error
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateReference
	}
	return err
}

// AttachPaymentConfirmation: update di bawah row lock; false = record tidak ada.
func (s *GormStore) AttachPaymentConfirmation(ctx context.Context, reference string, patch ConfirmationPatch) (bool, error) {
	found := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec model.GrantApplication
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("payment_reference = ?", reference).
			First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		updates := map[string]interface{}{
			"payment_gateway_status": patch.GatewayStatus,
			"payment_status":         patch.PaymentStatus,
		}
		if patch.Method != "" {
			updates["payment_method"] = patch.Method
		}
		if patch.ConfirmedAt != nil {
			updates["payment_confirmed_at"] = *patch.ConfirmedAt
		}
		if len(patch.Metadata) > 0 {
			updates["payment_metadata"] = datatypes.JSONMap(patch.Metadata)
		}
		return tx.Model(&rec).Updates(updates).Error
	})
	return found, err
}
