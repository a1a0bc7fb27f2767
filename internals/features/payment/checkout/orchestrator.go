// Package checkout adalah Payment Orchestrator: satu percobaan transaksi
// lewat payment widget, dinormalisasi jadi satu Outcome.
package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"grantku_backend/internals/features/payment/widget"
	"grantku_backend/internals/features/users/session"
	"grantku_backend/internals/helpers/apperr"
	"grantku_backend/internals/helpers/notify"
)

var ErrPaymentInFlight = errors.New("a payment attempt is already in progress")

const (
	DefaultAmountMinor int64 = 200000 // ₦2,000 dalam kobo
	DefaultCurrency          = "NGN"
	DefaultWindow            = 30 * time.Minute
)

type OutcomeStatus string

const (
	Succeeded OutcomeStatus = "succeeded"
	Cancelled OutcomeStatus = "cancelled"
	Failed    OutcomeStatus = "failed"
)

type Outcome struct {
	Status    OutcomeStatus    `json:"status"`
	Reference string           `json:"reference,omitempty"`
	Closed    bool             `json:"closed,omitempty"` // cancelled karena popup ditutup
	Reason    string           `json:"reason,omitempty"`
	Response  *widget.Response `json:"response,omitempty"`
}

// Err: nil untuk Succeeded, selain itu apperr yang sesuai.
func (o Outcome) Err() error {
	switch o.Status {
	case Succeeded:
		return nil
	case Cancelled:
		if o.Closed {
			return apperr.PaymentCancelled("payment window closed")
		}
		return apperr.PaymentCancelled("You cancelled the payment process.")
	default:
		return apperr.PaymentFailed(o.Reason)
	}
}

// Payer adalah bagian draft yang dibutuhkan transaksi.
type Payer struct {
	FullName   string
	Email      string
	SchoolName string
}

// WidgetSource di-implement loader.Loader.
type WidgetSource interface {
	Widget() (widget.Widget, bool)
}

type IdentityResolver interface {
	CurrentIdentity(ctx context.Context, accessToken string) (*session.Identity, bool)
}

type Config struct {
	AmountMinor int64
	Currency    string
	Window      time.Duration
	Now         func() time.Time
	Rand        func(n int) int
	// NewReference mengganti format grant-<ms>-<n> (test / integrasi).
	NewReference func() string
	// Hub dipakai untuk melepas reference yang kedaluwarsa.
	Hub Forgetter
}

type Orchestrator struct {
	widgets  WidgetSource
	identity IdentityResolver
	notifier notify.Notifier
	cfg      Config

	inFlight atomic.Bool
}

func New(widgets WidgetSource, identity IdentityResolver, n notify.Notifier, cfg Config) *Orchestrator {
	if cfg.AmountMinor <= 0 {
		cfg.AmountMinor = DefaultAmountMinor
	}
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = defaultRand
	}
	if n == nil {
		n = notify.Discard{}
	}
	return &Orchestrator{widgets: widgets, identity: identity, notifier: n, cfg: cfg}
}

func (o *Orchestrator) InFlight() bool { return o.inFlight.Load() }

// Attempt adalah satu transaksi yang sudah di-handoff ke widget.
type Attempt struct {
	Reference string
	Handoff   *widget.Handoff

	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func newAttempt(ref string) *Attempt {
	return &Attempt{Reference: ref, done: make(chan struct{})}
}

// resolve menetapkan outcome sekali; before dijalankan sebelum waiter dibangunkan.
func (a *Attempt) resolve(out Outcome, before func()) bool {
	resolved := false
	a.once.Do(func() {
		a.outcome = out
		if before != nil {
			before()
		}
		close(a.done)
		resolved = true
	})
	return resolved
}

func (a *Attempt) Done() <-chan struct{} { return a.done }

// Wait memblok sampai Outcome tersedia atau ctx selesai.
func (a *Attempt) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-a.done:
		return a.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Begin memulai percobaan. Panggilan saat percobaan lain masih berjalan
// ditolak dengan ErrPaymentInFlight dan tidak membuat transaksi baru.
// Kegagalan sebelum/saat handoff mengembalikan Attempt yang sudah resolved.
func (o *Orchestrator) Begin(ctx context.Context, payer Payer, accessToken string) (*Attempt, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return nil, ErrPaymentInFlight
	}

	id, ok := o.identity.CurrentIdentity(ctx, accessToken)
	if !ok || id.Expired(o.cfg.Now()) {
		o.notifier.Notify(notify.Destructive("Authentication Required", "Please login to proceed with payment"))
		return o.failedAttempt("", "authentication required"), nil
	}

	w, ok := o.widgets.Widget()
	if !ok {
		o.notifier.Notify(notify.Destructive("Payment Service Unavailable",
			"The payment service is currently unavailable. Please refresh the page and try again."))
		return o.failedAttempt("", "Payment service is unavailable. Please refresh and try again."), nil
	}

	ref := o.reference()
	first, last := SplitName(payer.FullName)
	email := strings.TrimSpace(payer.Email)
	if email == "" {
		email = id.Email
	}
	req := widget.TransactionRequest{
		Email:       email,
		AmountMinor: o.cfg.AmountMinor,
		Currency:    o.cfg.Currency,
		Reference:   ref,
		FirstName:   first,
		LastName:    last,
		Metadata: map[string]interface{}{
			"application_id": ref,
			"full_name":      payer.FullName,
			"user_id":        id.ID,
			"school":         payer.SchoolName,
		},
		OwnerID: id.ID,
	}

	a := newAttempt(ref)
	entry := log.WithFields(log.Fields{"reference": ref, "user_id": id.ID, "gateway": w.Name()})

	handoff, err := w.NewTransaction(ctx, req, o.hooksFor(a, entry))
	if err != nil {
		entry.WithError(err).Error("[PAYMENT] initialization error")
		msg := err.Error()
		if msg == "" {
			msg = "Failed to initialize payment"
		}
		o.notifier.Notify(notify.Destructive("Payment Error", msg))
		return o.failedAttempt(ref, msg), nil
	}
	a.Handoff = handoff
	entry.Info("[PAYMENT] handed off to widget")

	go o.expireAfter(a)
	return a, nil
}

func (o *Orchestrator) reference() string {
	if o.cfg.NewReference != nil {
		return o.cfg.NewReference()
	}
	return NewReference(o.cfg.Now(), o.cfg.Rand)
}

// InitiatePayment = Begin + Wait.
func (o *Orchestrator) InitiatePayment(ctx context.Context, payer Payer, accessToken string) (Outcome, error) {
	a, err := o.Begin(ctx, payer, accessToken)
	if err != nil {
		return Outcome{}, err
	}
	return a.Wait(ctx)
}

func (o *Orchestrator) hooksFor(a *Attempt, entry *log.Entry) widget.Hooks {
	return widget.Hooks{
		OnSuccess: func(r widget.Response) {
			resp := r
			if o.finish(a, Outcome{Status: Succeeded, Reference: a.Reference, Response: &resp},
				notify.Info("Payment Successful", "Your application fee has been received. Your reference is: "+a.Reference)) {
				entry.Info("[PAYMENT] successful")
			}
		},
		OnCancel: func() {
			if o.finish(a, Outcome{Status: Cancelled, Reference: a.Reference},
				notify.Destructive("Payment Cancelled", "You cancelled the payment process.")) {
				entry.Info("[PAYMENT] canceled")
			}
		},
		OnClose: func() {
			if o.finish(a, Outcome{Status: Cancelled, Reference: a.Reference, Closed: true}) {
				entry.Info("[PAYMENT] modal closed")
			}
		},
		Callback: func(r widget.Response) {
			entry.WithField("status", r.Status).Info("[PAYMENT] callback received")
		},
		OnError: func(reason string) {
			if o.finish(a, Outcome{Status: Failed, Reference: a.Reference, Reason: reason},
				notify.Destructive("Payment Error", reason)) {
				entry.Warnf("[PAYMENT] gateway reported failure: %s", reason)
			}
		},
	}
}

// finish me-resolve attempt sekali: notice dikirim dan guard dibuka sebelum
// waiter jalan, sehingga langkah berikutnya selalu melihat urutan yang benar.
func (o *Orchestrator) finish(a *Attempt, out Outcome, notices ...notify.Notice) bool {
	return a.resolve(out, func() {
		for _, n := range notices {
			o.notifier.Notify(n)
		}
		o.inFlight.Store(false)
	})
}

func (o *Orchestrator) failedAttempt(ref, reason string) *Attempt {
	a := newAttempt(ref)
	o.finish(a, Outcome{Status: Failed, Reference: ref, Reason: reason})
	return a
}

type Forgetter interface {
	Forget(reference string) bool
}

// expireAfter menutup attempt yang tidak pernah menerima hook terminal.
func (o *Orchestrator) expireAfter(a *Attempt) {
	t := time.NewTimer(o.cfg.Window)
	defer t.Stop()
	select {
	case <-a.done:
		return
	case <-t.C:
	}
	if o.cfg.Hub != nil {
		o.cfg.Hub.Forget(a.Reference)
	}
	if o.finish(a, Outcome{Status: Failed, Reference: a.Reference, Reason: "payment window expired"},
		notify.Destructive("Payment Error", "The payment window expired. Please try again.")) {
		log.WithField("reference", a.Reference).Warn("[PAYMENT] window expired")
	}
}
