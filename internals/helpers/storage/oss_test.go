package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	key  string
	body []byte
	err  error
}

func (f *fakePutter) PutObject(objectKey string, reader io.Reader, options ...oss.Option) error {
	if f.err != nil {
		return f.err
	}
	f.key = objectKey
	f.body, _ = io.ReadAll(reader)
	return nil
}

func TestOSSUploadPrefixesLogicalBucket(t *testing.T) {
	fp := &fakePutter{}
	s := newOSSStorage(fp, OSSConfig{Endpoint: "https://oss-ap-southeast-1.aliyuncs.com", Bucket: "grantku"})

	path, err := s.Upload(context.Background(), "passports", "A123-1700000000000.webp", []byte("img"), "image/webp")
	require.NoError(t, err)
	assert.Equal(t, "A123-1700000000000.webp", path)
	assert.Equal(t, "passports/A123-1700000000000.webp", fp.key)
	assert.Equal(t, []byte("img"), fp.body)
	assert.Equal(t,
		"https://grantku.oss-ap-southeast-1.aliyuncs.com/passports/A123-1700000000000.webp",
		s.PublicURL("passports", path))
}

func TestOSSPublicURLPrefersPublicBase(t *testing.T) {
	s := newOSSStorage(&fakePutter{}, OSSConfig{Endpoint: "oss.example.com", Bucket: "b", PublicBase: "https://cdn.example.com/"})
	assert.Equal(t, "https://cdn.example.com/passports/x.webp", s.PublicURL("passports", "x.webp"))
	assert.Empty(t, s.PublicURL("passports", ""))
}

func TestOSSUploadError(t *testing.T) {
	s := newOSSStorage(&fakePutter{err: errors.New("denied")}, OSSConfig{Bucket: "b"})
	_, err := s.Upload(context.Background(), "passports", "x.webp", nil, "")
	assert.EqualError(t, err, "denied")
}
