package widget

import (
	"context"
	"fmt"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

const (
	MidtransName             = "midtrans"
	MidtransGlobal           = "snap"
	midtransSandboxScriptSrc = "https://app.sandbox.midtrans.com/snap/snap.js"
	midtransProdScriptSrc    = "https://app.midtrans.com/snap/snap.js"
)

type snapCreator interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

type MidtransConfig struct {
	ServerKey string
	ClientKey string
	UseProd   bool
}

// Midtrans membuat Snap token; browser memanggil window.snap.pay(token).
type Midtrans struct {
	client    snapCreator
	clientKey string
	scriptSrc string
	hub       *Hub
}

func NewMidtrans(cfg MidtransConfig, hub *Hub) *Midtrans {
	env := midtrans.Sandbox
	src := midtransSandboxScriptSrc
	if cfg.UseProd {
		env = midtrans.Production
		src = midtransProdScriptSrc
	}
	var client snap.Client
	client.New(cfg.ServerKey, env)
	return &Midtrans{client: &client, clientKey: cfg.ClientKey, scriptSrc: src, hub: hub}
}

// ScriptSrc: snap.js sesuai environment (sandbox / production).
func (m *Midtrans) ScriptSrc() string { return m.scriptSrc }

func (m *Midtrans) Name() string { return MidtransName }

func (m *Midtrans) NewTransaction(ctx context.Context, req TransactionRequest, hooks Hooks) (*Handoff, error) {
	if req.Reference == "" || req.AmountMinor <= 0 {
		return nil, fmt.Errorf("incomplete transaction request")
	}

	// Snap memakai nominal utuh, bukan minor unit
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.Reference,
			GrossAmt: req.AmountMinor / 100,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.FirstName,
			LName: req.LastName,
			Email: req.Email,
		},
	}
	if v, ok := req.Metadata["application_id"].(string); ok {
		snapReq.CustomField1 = v
	}
	if v, ok := req.Metadata["user_id"].(string); ok {
		snapReq.CustomField2 = v
	}
	if v, ok := req.Metadata["school"].(string); ok {
		snapReq.CustomField3 = v
	}

	resp, mErr := m.client.CreateTransaction(snapReq)
	if mErr != nil {
		return nil, fmt.Errorf("midtrans snap: %s", mErr.Error())
	}

	if err := m.hub.Register(req.Reference, req.OwnerID, MidtransName, hooks); err != nil {
		return nil, err
	}

	return &Handoff{
		Gateway:     MidtransName,
		Reference:   req.Reference,
		PublicKey:   m.clientKey,
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
		ScriptSrc:   m.scriptSrc,
		Email:       req.Email,
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
	}, nil
}
