// Package photo menormalkan pas foto sebelum di-upload: deteksi MIME,
// resize keep-aspect ke kotak maksimum, lalu re-encode ke WebP.
package photo

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	xwebp "golang.org/x/image/webp"
)

const (
	DefaultMaxSide = 1200
	DefaultQuality = 80
)

type Options struct {
	MaxW    int
	MaxH    int
	Quality float32
}

// Result: Data siap upload, ContentType + Ext (dengan titik) untuk object key.
type Result struct {
	Data        []byte
	ContentType string
	Ext         string
	Converted   bool
}

// Normalize tidak pernah gagal untuk input non-kosong: file yang tidak bisa
// di-decode dikembalikan apa adanya dengan MIME hasil sniff.
func Normalize(data []byte, opt Options) (Result, error) {
	if len(data) == 0 {
		return Result{}, fmt.Errorf("empty file")
	}
	if opt.MaxW <= 0 {
		opt.MaxW = DefaultMaxSide
	}
	if opt.MaxH <= 0 {
		opt.MaxH = DefaultMaxSide
	}
	if opt.Quality <= 0 {
		opt.Quality = DefaultQuality
	}

	mt := mimetype.Detect(data)
	asIs := Result{Data: data, ContentType: baseMIME(mt.String()), Ext: mt.Extension()}

	img, err := decode(data, mt)
	if err != nil {
		return asIs, nil
	}

	b := img.Bounds()
	if b.Dx() > opt.MaxW || b.Dy() > opt.MaxH {
		img = imaging.Fit(img, opt.MaxW, opt.MaxH, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, img, &webp.Options{Quality: opt.Quality}); err != nil {
		return asIs, nil
	}
	return Result{Data: buf.Bytes(), ContentType: "image/webp", Ext: ".webp", Converted: true}, nil
}

func decode(data []byte, mt *mimetype.MIME) (image.Image, error) {
	switch {
	case mt.Is("image/webp"):
		return xwebp.Decode(bytes.NewReader(data))
	case mt.Is("image/jpeg"), mt.Is("image/png"):
		img, _, err := image.Decode(bytes.NewReader(data))
		return img, err
	default:
		return nil, fmt.Errorf("format tidak didukung: %s", mt.String())
	}
}

func baseMIME(s string) string {
	if i := strings.Index(s, ";"); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}
