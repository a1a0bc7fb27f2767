package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type StorageClient struct {
	c *Client
}

func (s *StorageClient) objectURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.c.baseURL, bucket, escapePath(path))
}

// Upload menyimpan objek (tanpa upsert) memakai service role key dan
// mengembalikan path objek di dalam bucket.
func (s *StorageClient) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	if s.c.serviceKey == "" {
		return "", fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY belum diset")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	body, status, err := s.c.do(ctx, http.MethodPost, s.objectURL(bucket, path), data, s.c.serviceKey, map[string]string{
		"Content-Type": contentType,
		"x-upsert":     "false",
	})
	if err != nil {
		return "", err
	}
	if status >= 300 {
		return "", parseError(body, status)
	}
	return path, nil
}

func (s *StorageClient) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.c.baseURL, bucket, escapePath(path))
}

func (s *StorageClient) Remove(ctx context.Context, bucket, path string) error {
	body, status, err := s.c.do(ctx, http.MethodDelete, s.objectURL(bucket, path), nil, s.c.serviceKey, nil)
	if err != nil {
		return err
	}
	if status >= 300 && status != http.StatusNotFound {
		return parseError(body, status)
	}
	return nil
}

// escapePath meng-escape tiap segmen tapi mempertahankan "/".
func escapePath(p string) string {
	parts := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, seg := range parts {
		parts[i] = url.PathEscape(seg)
	}
	return strings.Join(parts, "/")
}
