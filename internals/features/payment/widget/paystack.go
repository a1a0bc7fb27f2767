package widget

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
)

const (
	PaystackName      = "paystack"
	PaystackScriptSrc = "https://js.paystack.co/v2/inline.js"
	PaystackGlobal    = "PaystackPop"
	paystackBaseURL   = "https://api.paystack.co"
)

type PaystackConfig struct {
	PublicKey string
	SecretKey string
	BaseURL   string // default https://api.paystack.co (override untuk test)
	HTTP      *http.Client
}

// Paystack meng-inisialisasi transaksi lewat REST transaction/initialize;
// browser membuka popup PaystackPop dengan access_code hasilnya.
type Paystack struct {
	cfg PaystackConfig
	hub *Hub
}

func NewPaystack(cfg PaystackConfig, hub *Hub) *Paystack {
	if cfg.BaseURL == "" {
		cfg.BaseURL = paystackBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HTTP == nil {
		cfg.HTTP = &http.Client{Timeout: 20 * time.Second}
	}
	return &Paystack{cfg: cfg, hub: hub}
}

func (p *Paystack) Name() string { return PaystackName }

func (p *Paystack) NewTransaction(ctx context.Context, req TransactionRequest, hooks Hooks) (*Handoff, error) {
	if p.cfg.SecretKey == "" {
		return nil, fmt.Errorf("paystack secret key is not configured")
	}
	if req.Reference == "" || req.Email == "" || req.AmountMinor <= 0 {
		return nil, fmt.Errorf("incomplete transaction request")
	}

	meta := map[string]interface{}{}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta["first_name"] = req.FirstName
	meta["last_name"] = req.LastName

	payload, err := sonic.Marshal(map[string]interface{}{
		"email":     req.Email,
		"amount":    req.AmountMinor,
		"currency":  req.Currency,
		"reference": req.Reference,
		"metadata":  meta,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal paystack request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/transaction/initialize", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.cfg.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("paystack initialize: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read paystack response: %w", err)
	}

	res := gjson.ParseBytes(body)
	if resp.StatusCode >= 300 || !res.Get("status").Bool() {
		msg := res.Get("message").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("paystack initialize failed (%d): %s", resp.StatusCode, msg)
	}

	if err := p.hub.Register(req.Reference, req.OwnerID, PaystackName, hooks); err != nil {
		return nil, err
	}

	return &Handoff{
		Gateway:     PaystackName,
		Reference:   firstNonEmpty(res.Get("data.reference").String(), req.Reference),
		PublicKey:   p.cfg.PublicKey,
		AccessCode:  res.Get("data.access_code").String(),
		RedirectURL: res.Get("data.authorization_url").String(),
		ScriptSrc:   PaystackScriptSrc,
		Email:       req.Email,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
