// Package flow adalah Application Flow Controller:
// validate → (opsional) bayar → submit → hasil.
package flow

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"grantku_backend/internals/features/grants/applications/form"
	"grantku_backend/internals/features/grants/applications/model"
	"grantku_backend/internals/features/grants/applications/service"
	"grantku_backend/internals/features/grants/applications/validation"
	"grantku_backend/internals/features/payment/checkout"
	"grantku_backend/internals/features/payment/loader"
	"grantku_backend/internals/features/payment/widget"
	"grantku_backend/internals/features/users/session"
	"grantku_backend/internals/helpers/apperr"
	"grantku_backend/internals/helpers/notify"
)

type State string

const (
	Editing        State = "EDITING"
	Validating     State = "VALIDATING"
	PendingPayment State = "PENDING_PAYMENT"
	Submitting     State = "SUBMITTING"
	Submitted      State = "SUBMITTED"
)

var ErrBusy = errors.New("an application run is already in progress")

type Payments interface {
	Begin(ctx context.Context, payer checkout.Payer, accessToken string) (*checkout.Attempt, error)
}

type Submitter interface {
	Submit(ctx context.Context, d form.Draft, id *session.Identity, pay *service.PaymentInfo) (*model.GrantApplication, error)
}

type IdentityResolver interface {
	CurrentIdentity(ctx context.Context, accessToken string) (*session.Identity, bool)
}

// WidgetReadiness di-implement *loader.Loader.
type WidgetReadiness interface {
	Load() loader.State
	State() loader.State
	Diagnostic() string
}

type Config struct {
	PaymentRequired bool
	AmountMinor     int64
	Gateway         string
	Now             func() time.Time
}

// Snapshot adalah keadaan controller untuk response HTTP.
type Snapshot struct {
	State     State
	Handoff   *widget.Handoff
	Result    *model.GrantApplication
	LastError error
}

type Controller struct {
	form      *form.Holder
	payments  Payments
	submitter Submitter
	identity  IdentityResolver
	widgets   WidgetReadiness
	notifier  notify.Notifier
	cfg       Config

	mu      sync.Mutex
	state   State
	handoff *widget.Handoff
	result  *model.GrantApplication
	lastErr error
	done    chan struct{}
}

func NewController(h *form.Holder, payments Payments, submitter Submitter, identity IdentityResolver, widgets WidgetReadiness, n notify.Notifier, cfg Config) *Controller {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AmountMinor <= 0 {
		cfg.AmountMinor = checkout.DefaultAmountMinor
	}
	if n == nil {
		n = notify.Discard{}
	}
	closed := make(chan struct{})
	close(closed)
	return &Controller{
		form:      h,
		payments:  payments,
		submitter: submitter,
		identity:  identity,
		widgets:   widgets,
		notifier:  n,
		cfg:       cfg,
		state:     Editing,
		done:      closed,
	}
}

func (c *Controller) Form() *form.Holder { return c.form }

func (c *Controller) PaymentRequired() bool { return c.cfg.PaymentRequired }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{State: c.state, Handoff: c.handoff, Result: c.result, LastError: c.lastErr}
}

// Start menjalankan run sampai handoff ke widget (atau sampai submission
// dimulai bila pembayaran tidak diwajibkan) lalu melanjutkan di background
// pada context yang lepas dari request.
func (c *Controller) Start(ctx context.Context, accessToken string) (Snapshot, error) {
	c.mu.Lock()
	if c.state != Editing {
		c.mu.Unlock()
		return c.Snapshot(), ErrBusy
	}
	c.state = Validating
	c.handoff = nil
	c.result = nil
	c.lastErr = nil
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	draft := c.form.Snapshot()
	if r := validation.Validate(draft); !r.OK {
		c.notifier.Notify(notify.Destructive(r.Title(), r.Message))
		return c.fail(done, r.Err())
	}

	id, ok := c.identity.CurrentIdentity(ctx, accessToken)
	if !ok || id.Expired(c.cfg.Now()) {
		c.notifier.Notify(notify.Destructive("Authentication Required", "Please login to submit your application"))
		return c.fail(done, apperr.AuthRequired())
	}

	bg := context.WithoutCancel(ctx)

	if !c.cfg.PaymentRequired {
		c.setState(Submitting)
		go c.submit(bg, done, draft, id, nil)
		return c.Snapshot(), nil
	}

	if c.widgets == nil || c.widgets.State() != loader.StateReady {
		reason := "Payment service is unavailable. Please refresh and try again."
		if c.widgets != nil {
			if d := c.widgets.Diagnostic(); d != "" {
				reason = d
			}
			c.widgets.Load()
		}
		c.notifier.Notify(notify.Destructive("Payment Service Unavailable", reason))
		return c.fail(done, apperr.ScriptUnavailable(reason))
	}

	c.setState(PendingPayment)
	attempt, err := c.payments.Begin(ctx, checkout.Payer{
		FullName:   draft.FullName,
		Email:      draft.Email,
		SchoolName: draft.SchoolName,
	}, accessToken)
	if err != nil {
		return c.fail(done, apperr.PaymentFailed(err.Error()))
	}

	select {
	case <-attempt.Done():
		// gagal sebelum handoff
		out, _ := attempt.Wait(bg)
		if out.Status != checkout.Succeeded {
			return c.fail(done, out.Err())
		}
	default:
	}

	c.mu.Lock()
	c.handoff = attempt.Handoff
	c.mu.Unlock()

	go c.awaitPayment(bg, done, attempt, draft, id)
	return c.Snapshot(), nil
}

// Run adalah bentuk blocking: Start lalu tunggu sampai run selesai.
func (c *Controller) Run(ctx context.Context, accessToken string) (Snapshot, error) {
	snap, err := c.Start(ctx, accessToken)
	if err != nil {
		return snap, err
	}
	if err := c.Wait(ctx); err != nil {
		return c.Snapshot(), err
	}
	snap = c.Snapshot()
	return snap, snap.LastError
}

// Wait menunggu run yang sedang berjalan selesai (Submitted atau kembali ke Editing).
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset dari Submitted/Editing mengosongkan draft dan kembali ke Editing.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Editing && c.state != Submitted {
		return ErrBusy
	}
	c.form.Reset()
	c.state = Editing
	c.handoff = nil
	c.result = nil
	c.lastErr = nil
	return nil
}

// Idle: tidak ada run yang sedang berjalan.
func (c *Controller) Idle() bool {
	s := c.State()
	return s == Editing || s == Submitted
}

func (c *Controller) awaitPayment(ctx context.Context, done chan struct{}, attempt *checkout.Attempt, draft form.Draft, id *session.Identity) {
	out, err := attempt.Wait(ctx)
	if err != nil {
		c.fail(done, apperr.PaymentFailed(err.Error()))
		return
	}
	if out.Status != checkout.Succeeded {
		log.WithFields(log.Fields{"reference": out.Reference, "status": out.Status}).Info("[FLOW] payment not completed, back to editing")
		c.fail(done, out.Err())
		return
	}

	c.setState(Submitting)
	c.submit(ctx, done, draft, id, &service.PaymentInfo{
		Reference:   out.Reference,
		AmountMinor: c.cfg.AmountMinor,
		Gateway:     c.cfg.Gateway,
		PaidAt:      c.cfg.Now(),
		Response:    out.Response,
	})
}

func (c *Controller) submit(ctx context.Context, done chan struct{}, draft form.Draft, id *session.Identity, pay *service.PaymentInfo) {
	rec, err := c.submitter.Submit(ctx, draft, id, pay)
	if err != nil {
		c.notifier.Notify(notify.Destructive("Submission Failed",
			"There was a problem submitting your application. Please try again."))
		c.fail(done, err)
		return
	}

	c.form.Reset()
	c.notifier.Notify(notify.Info("Application Submitted",
		"Your grant application has been successfully received. Thank you."))

	c.mu.Lock()
	c.state = Submitted
	c.result = rec
	c.handoff = nil
	c.mu.Unlock()
	close(done)
}

func (c *Controller) fail(done chan struct{}, err error) (Snapshot, error) {
	c.mu.Lock()
	c.state = Editing
	c.handoff = nil
	c.lastErr = err
	c.mu.Unlock()
	close(done)
	log.WithField("kind", apperr.KindOf(err)).Debugf("[FLOW] run failed: %v", err)
	return c.Snapshot(), err
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
