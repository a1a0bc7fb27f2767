// Package service adalah Submission Service: upload foto paspor lalu insert
// record yang ditandai dengan identitas applicant.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"grantku_backend/internals/features/grants/applications/form"
	"grantku_backend/internals/features/grants/applications/model"
	"grantku_backend/internals/features/grants/applications/validation"
	paymentModel "grantku_backend/internals/features/payment/model"
	"grantku_backend/internals/features/payment/widget"
	"grantku_backend/internals/features/users/session"
	"grantku_backend/internals/helpers/apperr"
	"grantku_backend/internals/helpers/photo"
	"grantku_backend/internals/helpers/storage"
)

const DefaultBucket = "passports"

// RecordStore di-implement GormStore.
type RecordStore interface {
	Insert(ctx context.Context, rec *model.GrantApplication) error
	AttachPaymentConfirmation(ctx context.Context, reference string, patch ConfirmationPatch) (bool, error)
}

// PaymentInfo: hasil pembayaran yang sukses, nil bila pembayaran tidak diwajibkan.
type PaymentInfo struct {
	Reference   string
	AmountMinor int64
	Gateway     string
	PaidAt      time.Time
	Response    *widget.Response
}

// StoredConfirmations di-implement *repository.GatewayEventRepository.
type StoredConfirmations interface {
	Unapplied(ctx context.Context, reference string) ([]paymentModel.PaymentGatewayEvent, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
}

type Config struct {
	Bucket string
	Photo  photo.Options
	Now    func() time.Time
	NewID  func() uuid.UUID

	// Webhook yang tiba sebelum insert; nil = tidak ada replay.
	Confirmations StoredConfirmations
}

type SubmissionService struct {
	storage storage.ObjectStorage
	store   RecordStore
	events  EventPublisher
	cfg     Config
}

func NewSubmissionService(st storage.ObjectStorage, store RecordStore, events EventPublisher, cfg Config) *SubmissionService {
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.New
	}
	if events == nil {
		events = LogPublisher{}
	}
	return &SubmissionService{storage: st, store: store, events: events, cfg: cfg}
}

// Submit: upload selesai sebelum insert yang mereferensikannya. Upload gagal
// = tidak ada insert. Insert gagal = objek yang sudah ter-upload dibiarkan.
func (s *SubmissionService) Submit(ctx context.Context, d form.Draft, id *session.Identity, pay *PaymentInfo) (*model.GrantApplication, error) {
	if id == nil || strings.TrimSpace(id.ID) == "" {
		return nil, apperr.AuthRequired()
	}
	userID, err := uuid.Parse(id.ID)
	if err != nil {
		log.Printf("[ERROR] user id dari provider bukan uuid: %q", id.ID)
		return nil, apperr.AuthRequired()
	}
	amount, err := validation.ParseAmount(d.Amount)
	if err != nil {
		return nil, apperr.ValidationFailed(form.FieldAmount, validation.MsgAmount)
	}

	now := s.cfg.Now().UTC()
	entry := log.WithFields(log.Fields{"user_id": id.ID, "nin": d.NIN})

	var passportURL *string
	if d.Passport != nil && len(d.Passport.Data) > 0 {
		url, err := s.uploadPassport(ctx, d, now)
		if err != nil {
			entry.WithError(err).Error("[SUBMIT] passport upload failed")
			return nil, apperr.UploadFailed(err)
		}
		passportURL = &url
	}

	rec := &model.GrantApplication{
		ID:            s.cfg.NewID(),
		UserID:        userID,
		FullName:      strings.TrimSpace(d.FullName),
		PhoneNumber:   strings.TrimSpace(d.PhoneNumber),
		Email:         strings.TrimSpace(d.Email),
		NIN:           strings.TrimSpace(d.NIN),
		BVN:           optional(d.BVN),
		SchoolName:    strings.TrimSpace(d.SchoolName),
		StudyLevel:    d.StudyLevel,
		Amount:        amount,
		Reason:        strings.TrimSpace(d.Reason),
		AccountNumber: strings.TrimSpace(d.AccountNumber),
		AccountName:   strings.TrimSpace(d.AccountName),
		Bank:          d.Bank,
		PassportURL:   passportURL,
		Status:        model.StatusPending,
		SubmittedAt:   now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if pay != nil {
		applyPayment(rec, pay)
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		if passportURL != nil {
			// upload tidak di-rollback
			entry.WithField("passport_url", *passportURL).Warn("[SUBMIT] insert failed, uploaded passport left in storage")
		}
		entry.WithError(err).Error("[SUBMIT] insert failed")
		return nil, apperr.InsertFailed(err)
	}
	entry.WithField("application_id", rec.ID).Info("[SUBMIT] application saved")

	s.applyStoredConfirmations(ctx, rec)
	s.publishSubmitted(ctx, rec)
	return rec, nil
}

func (s *SubmissionService) uploadPassport(ctx context.Context, d form.Draft, now time.Time) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("object storage not configured")
	}
	norm, err := photo.Normalize(d.Passport.Data, s.cfg.Photo)
	if err != nil {
		return "", err
	}
	ext := norm.Ext
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(d.Passport.FileName))
	}
	contentType := norm.ContentType
	if !norm.Converted && d.Passport.ContentType != "" && contentType == "application/octet-stream" {
		contentType = d.Passport.ContentType
	}

	key := fmt.Sprintf("%s-%d%s", strings.TrimSpace(d.NIN), now.UnixMilli(), ext)
	path, err := s.storage.Upload(ctx, s.cfg.Bucket, key, norm.Data, contentType)
	if err != nil {
		return "", err
	}
	return s.storage.PublicURL(s.cfg.Bucket, path), nil
}

func applyPayment(rec *model.GrantApplication, pay *PaymentInfo) {
	status := model.PaymentStatusCompleted
	rec.PaymentStatus = &status
	rec.PaymentReference = optional(pay.Reference)
	rec.PaymentAmount = decimal.NewNullDecimal(decimal.New(pay.AmountMinor, -2))
	if !pay.PaidAt.IsZero() {
		paid := pay.PaidAt.UTC()
		rec.PaymentDate = &paid
	}
	rec.PaymentGateway = optional(pay.Gateway)
	if pay.Response != nil {
		rec.PaymentGatewayStatus = optional(pay.Response.Status)
		rec.PaymentMethod = optional(pay.Response.Channel)
		if len(pay.Response.Raw) > 0 {
			rec.PaymentMetadata = datatypes.JSONMap(pay.Response.Raw)
		}
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

/* ===================== Gateway confirmation ===================== */

// ConfirmationPatch: kolom yang diperbarui webhook gateway.
type ConfirmationPatch struct {
	GatewayStatus string
	PaymentStatus string
	Method        string
	ConfirmedAt   *time.Time
	Metadata      map[string]interface{}
}

func confirmationPatch(gatewayStatus string, resp widget.Response, at time.Time) ConfirmationPatch {
	kind := widget.MapGatewayStatus(gatewayStatus)
	patch := ConfirmationPatch{
		GatewayStatus: gatewayStatus,
		PaymentStatus: widget.PaymentStatus(kind),
		Method:        resp.Channel,
		Metadata:      resp.Raw,
	}
	if kind == widget.EventSuccess {
		at = at.UTC()
		patch.ConfirmedAt = &at
	}
	return patch
}

// AttachPaymentConfirmation mencatat status dari gateway ke record dengan
// payment_reference yang sama. false = record belum ada (user belum submit);
// event-nya tersimpan di payment_gateway_events dan diterapkan saat insert.
func (s *SubmissionService) AttachPaymentConfirmation(ctx context.Context, reference, gatewayStatus string, resp widget.Response) (bool, error) {
	found, err := s.store.AttachPaymentConfirmation(ctx, reference, confirmationPatch(gatewayStatus, resp, s.cfg.Now()))
	if err != nil {
		return false, fmt.Errorf("attach confirmation %s: %w", reference, err)
	}
	if !found {
		log.WithField("reference", reference).Info("[PAYMENT] confirmation for reference without application (yet)")
	}
	return found, nil
}

// applyStoredConfirmations menerapkan webhook yang sudah tersimpan untuk
// reference record ini, urut waktu terima. Gagal di sini tidak membatalkan submit.
func (s *SubmissionService) applyStoredConfirmations(ctx context.Context, rec *model.GrantApplication) {
	if s.cfg.Confirmations == nil || rec.PaymentReference == nil {
		return
	}
	ref := *rec.PaymentReference
	entry := log.WithField("reference", ref)

	events, err := s.cfg.Confirmations.Unapplied(ctx, ref)
	if err != nil {
		entry.WithError(err).Warn("[PAYMENT] stored confirmations lookup failed")
		return
	}
	for i := range events {
		ev := &events[i]
		var resp widget.Response
		if len(ev.GatewayEventPayload) > 0 {
			if err := sonic.Unmarshal(ev.GatewayEventPayload, &resp); err != nil {
				entry.WithError(err).WithField("gateway_event_id", ev.GatewayEventID).Warn("[PAYMENT] stored confirmation payload unreadable")
				continue
			}
		}
		found, err := s.store.AttachPaymentConfirmation(ctx, ref, confirmationPatch(ev.GatewayEventGatewayStatus, resp, ev.GatewayEventReceivedAt))
		if err != nil || !found {
			entry.WithError(err).WithField("gateway_event_id", ev.GatewayEventID).Warn("[PAYMENT] stored confirmation not applied")
			continue
		}
		if err := s.cfg.Confirmations.MarkProcessed(ctx, ev.GatewayEventID); err != nil {
			entry.WithError(err).Warn("[PAYMENT] stored confirmation applied but not marked")
		}
		entry.WithField("gateway_status", ev.GatewayEventGatewayStatus).Info("[PAYMENT] stored confirmation applied")
	}
}
