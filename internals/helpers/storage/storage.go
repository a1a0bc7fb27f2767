// Package storage menyatukan driver object storage (Supabase Storage / Aliyun OSS)
// di belakang satu interface kecil yang dipakai submission service.
package storage

import (
	"context"
	"fmt"
	"strings"

	"grantku_backend/internals/configs"
	"grantku_backend/internals/helpers/supabase"
)

// ObjectStorage: upload(bucket, key, blob) -> path, publicUrl(bucket, path).
type ObjectStorage interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error)
	PublicURL(bucket, path string) string
}

const (
	DriverSupabase = "supabase"
	DriverOSS      = "oss"
)

// NewFromConfig memilih driver berdasarkan STORAGE_DRIVER (default supabase).
func NewFromConfig(cfg configs.AppConfig, sb *supabase.Client) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case "", DriverSupabase:
		if sb == nil {
			return nil, fmt.Errorf("supabase client belum diinisialisasi")
		}
		return sb.Storage, nil
	case DriverOSS:
		return NewOSSStorage(OSSConfig{
			Endpoint:      cfg.OSSEndpoint,
			AccessKey:     cfg.OSSAccessKey,
			SecretKey:     cfg.OSSSecretKey,
			SecurityToken: cfg.OSSSecurityToken,
			Bucket:        cfg.OSSBucket,
			PublicBase:    cfg.OSSPublicBase,
		})
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER tidak dikenal: %q", cfg.StorageDriver)
	}
}
