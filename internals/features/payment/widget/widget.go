// Package widget adalah kapabilitas "payment widget" vendor: inisialisasi
// transaksi di gateway lalu menunggu hook terminal yang di-relay browser
// (atau webhook gateway) lewat Hub.
package widget

import (
	"context"
	"errors"
)

var (
	ErrUnknownReference = errors.New("unknown payment reference")
	ErrForeignReference = errors.New("payment reference belongs to another user")
	ErrDuplicateRef     = errors.New("payment reference already pending")
)

// TransactionRequest: amount dalam minor unit (kobo / sen).
type TransactionRequest struct {
	Email       string
	AmountMinor int64
	Currency    string
	Reference   string
	FirstName   string
	LastName    string
	Metadata    map[string]interface{}
	// OwnerID membatasi siapa yang boleh me-relay event untuk reference ini.
	OwnerID string
}

// Response adalah payload yang dibawa hook (apa adanya dari vendor).
type Response struct {
	Reference     string                 `json:"reference"`
	Status        string                 `json:"status,omitempty"`
	TransactionID string                 `json:"transaction,omitempty"`
	Message       string                 `json:"message,omitempty"`
	Channel       string                 `json:"channel,omitempty"`
	Raw           map[string]interface{} `json:"raw,omitempty"`
}

// Hooks: success / cancel / close terminal, Callback opsional (verifikasi, non-terminal).
// OnError dipanggil bila gateway melaporkan transaksi gagal setelah handoff.
type Hooks struct {
	OnSuccess func(Response)
	OnCancel  func()
	OnClose   func()
	Callback  func(Response)
	OnError   func(reason string)
}

// Handoff dikirim ke browser untuk membuka popup / redirect vendor.
type Handoff struct {
	Gateway     string `json:"gateway"`
	Reference   string `json:"reference"`
	PublicKey   string `json:"public_key,omitempty"`
	AccessCode  string `json:"access_code,omitempty"`
	Token       string `json:"token,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
	ScriptSrc   string `json:"script_src,omitempty"`
	Email       string `json:"email"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
}

type Widget interface {
	Name() string
	NewTransaction(ctx context.Context, req TransactionRequest, hooks Hooks) (*Handoff, error)
}
