package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	log "github.com/sirupsen/logrus"
)

type OSSConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	SecurityToken string
	Bucket        string
	PublicBase    string // opsional: CDN / custom domain
}

// objectPutter adalah subset *oss.Bucket yang dipakai driver ini.
type objectPutter interface {
	PutObject(objectKey string, reader io.Reader, options ...oss.Option) error
}

// OSSStorage memetakan "bucket" logis (mis. "passports") menjadi prefix key
// di dalam satu bucket OSS fisik.
type OSSStorage struct {
	bucket     objectPutter
	endpoint   string
	bucketName string
	publicBase string
}

func NewOSSStorage(cfg OSSConfig) (*OSSStorage, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("missing env: OSS_ENDPOINT/ACCESS_KEY_ID/ACCESS_KEY_SECRET/BUCKET")
	}

	var (
		client *oss.Client
		err    error
	)
	if cfg.SecurityToken != "" {
		client, err = oss.New(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, oss.SecurityToken(cfg.SecurityToken))
	} else {
		client, err = oss.New(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey)
	}
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}

	bkt, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("client.Bucket: %w", err)
	}

	if loc, err := client.GetBucketLocation(cfg.Bucket); err != nil {
		if se, ok := err.(oss.ServiceError); ok && se.StatusCode == 403 && se.Code == "AccessDenied" {
			log.Printf("[OSS] warn: skip location check due to AccessDenied (bucket=%s). Continuing.", cfg.Bucket)
		} else {
			return nil, fmt.Errorf("verify bucket: %w", err)
		}
	} else {
		log.Printf("[OSS] bucket %s location: %s", cfg.Bucket, loc)
	}

	return newOSSStorage(bkt, cfg), nil
}

func newOSSStorage(b objectPutter, cfg OSSConfig) *OSSStorage {
	return &OSSStorage{
		bucket:     b,
		endpoint:   cfg.Endpoint,
		bucketName: cfg.Bucket,
		publicBase: strings.TrimRight(cfg.PublicBase, "/"),
	}
}

func (s *OSSStorage) Upload(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	opts := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(contentType),
		oss.ContentDisposition("inline"),
		oss.CacheControl("public, max-age=31536000, immutable"),
		oss.ForbidOverWrite(true),
	}
	if err := s.bucket.PutObject(s.objectKey(bucket, key), bytes.NewReader(data), opts...); err != nil {
		return "", err
	}
	return key, nil
}

func (s *OSSStorage) PublicURL(bucket, path string) string {
	if path == "" {
		return ""
	}
	objectKey := s.objectKey(bucket, path)
	if s.publicBase != "" {
		return s.publicBase + "/" + objectKey
	}
	end := strings.TrimPrefix(strings.TrimPrefix(s.endpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", s.bucketName, end, objectKey)
}

func (s *OSSStorage) objectKey(bucket, key string) string {
	bucket = strings.Trim(bucket, "/")
	key = strings.TrimLeft(key, "/")
	if bucket == "" {
		return key
	}
	return bucket + "/" + key
}
