package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	authModel "grantku_backend/internals/features/users/auth/model"
)

/* ====================== BLACKLIST TOKEN ====================== */

type BlacklistRepository struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewBlacklistRepository(db *gorm.DB) *BlacklistRepository {
	return &BlacklistRepository{DB: db, now: time.Now}
}

// Add idempotent: token yang sama di-blacklist dua kali tidak error.
func (r *BlacklistRepository) Add(ctx context.Context, fingerprint string, expiresAt time.Time) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token_hash"}}, DoNothing: true}).
		Create(&authModel.TokenBlacklist{
			TokenHash: fingerprint,
			ExpiredAt: expiresAt.UTC(),
		}).Error
}

func (r *BlacklistRepository) IsBlacklisted(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := r.DB.WithContext(ctx).
		Raw(`SELECT EXISTS(SELECT 1 FROM token_blacklist WHERE token_hash = ? AND expired_at > ?)`, fingerprint, r.now().UTC()).
		Scan(&exists).Error
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *BlacklistRepository) CleanupExpired(ctx context.Context) (int64, error) {
	res := r.DB.WithContext(ctx).Exec(`DELETE FROM token_blacklist WHERE expired_at <= ?`, r.now().UTC())
	return res.RowsAffected, res.Error
}
