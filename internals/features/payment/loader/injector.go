package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"grantku_backend/internals/features/payment/widget"
)

// Script yang harus dimuat: src, nama global yang diharapkan, dan
// kapabilitas yang tersedia begitu global itu ada.
type Script struct {
	Src    string
	Global string
	Widget widget.Widget
}

// Injector memuat script sekali. nil error = event "load"; global belum
// tentu terdefinisi.
type Injector interface {
	Inject(ctx context.Context, s Script) error
}

// HTTPInjector mengambil script vendor dan mendefinisikan global bila body
// script memang meng-export simbol yang diharapkan.
type HTTPInjector struct {
	HTTP    *http.Client
	Globals *Globals
	// batas baca body; script vendor normalnya < 1 MB
	MaxBytes int64
}

func (h *HTTPInjector) Inject(ctx context.Context, s Script) error {
	client := h.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	max := h.MaxBytes
	if max <= 0 {
		max = 4 << 20
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Src, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/javascript, text/javascript, */*")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", s.Src, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, max))
	if err != nil {
		return fmt.Errorf("read %s: %w", s.Src, err)
	}
	if s.Global != "" && bytes.Contains(body, []byte(s.Global)) {
		h.Globals.Define(s.Global, s.Widget)
	}
	return nil
}
