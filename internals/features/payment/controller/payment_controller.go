// file: internals/features/payment/controller/payment_controller.go
package controller

import (
	"context"
	"errors"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"grantku_backend/internals/features/payment/dto"
	"grantku_backend/internals/features/payment/loader"
	"grantku_backend/internals/features/payment/model"
	"grantku_backend/internals/features/payment/widget"
	helper "grantku_backend/internals/helpers"
	authMw "grantku_backend/internals/middlewares/auth"
)

// WidgetStatus di-implement *loader.Loader.
type WidgetStatus interface {
	Load() loader.State
	Status() loader.Status
}

// ConfirmationRecorder mencatat status gateway ke record aplikasi; false =
// record belum ada.
type ConfirmationRecorder interface {
	AttachPaymentConfirmation(ctx context.Context, reference, gatewayStatus string, resp widget.Response) (bool, error)
}

// EventLog di-implement *repository.GatewayEventRepository.
type EventLog interface {
	Log(ctx context.Context, ev *model.PaymentGatewayEvent) error
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	MarkUnmatched(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

type PaymentController struct {
	Loader    WidgetStatus
	Hub       *widget.Hub
	Recorder  ConfirmationRecorder
	Events    EventLog
	Validator *validator.Validate

	PaystackSecret    string
	MidtransServerKey string
}

func NewPaymentController(l WidgetStatus, hub *widget.Hub, rec ConfirmationRecorder, events EventLog, paystackSecret, midtransServerKey string) *PaymentController {
	return &PaymentController{
		Loader:            l,
		Hub:               hub,
		Recorder:          rec,
		Events:            events,
		Validator:         validator.New(),
		PaystackSecret:    paystackSecret,
		MidtransServerKey: midtransServerKey,
	}
}

// =========================================================
// GET /api/public/payments/widget
// Status Script Loader; memicu Load bila belum pernah.
// =========================================================
func (ctrl *PaymentController) WidgetStatus(c *fiber.Ctx) error {
	if ctrl.Loader == nil {
		return helper.JsonError(c, fiber.StatusServiceUnavailable, "payment widget not configured")
	}
	if ctrl.Loader.Status().State == loader.StateNotLoaded {
		ctrl.Loader.Load()
	}
	return helper.JsonOK(c, "payment widget status", ctrl.Loader.Status())
}

// =========================================================
// POST /api/u/grant-application/payment-events
// Relay hook popup dari browser ke Hub (pemilik reference wajib sama).
// =========================================================
func (ctrl *PaymentController) RelayEvent(c *fiber.Ctx) error {
	id, ok := authMw.IdentityFrom(c)
	if !ok {
		return helper.JsonUnauthorized(c, "", "")
	}

	var req dto.PaymentEventRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Reference = strings.TrimSpace(req.Reference)
	req.Event = strings.ToLower(strings.TrimSpace(req.Event))
	if err := ctrl.Validator.Struct(&req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrorsToMap(err))
	}

	kind, _ := widget.ParseEventKind(req.Event)
	err := ctrl.Hub.Deliver(req.Reference, id.ID, widget.Event{Kind: kind, Response: req.Response, Reason: req.Reason})
	switch {
	case errors.Is(err, widget.ErrUnknownReference):
		return helper.JsonError(c, fiber.StatusNotFound, "payment reference not found or already settled")
	case errors.Is(err, widget.ErrForeignReference):
		return helper.JsonError(c, fiber.StatusForbidden, "payment reference belongs to another user")
	case err != nil:
		log.WithError(err).Error("[PAYMENT] relay event failed")
		return helper.JsonError(c, fiber.StatusInternalServerError, "")
	}

	return helper.JsonAccepted(c, "payment event received", dto.PaymentEventResponse{
		Reference: req.Reference,
		Event:     string(kind),
		Terminal:  kind.Terminal(),
	})
}

// =========================================================
// POST /api/public/payments/webhook/:gateway
// Selalu balas 200 supaya gateway tidak retry berlebihan.
// =========================================================
func (ctrl *PaymentController) Webhook(c *fiber.Ctx) error {
	gateway := strings.ToLower(c.Params("gateway"))
	switch gateway {
	case widget.PaystackName:
		return ctrl.paystackWebhook(c)
	case widget.MidtransName:
		return ctrl.midtransWebhook(c)
	default:
		log.Printf("[WARN] webhook untuk gateway tidak dikenal: %q", gateway)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "ignored"})
	}
}

func (ctrl *PaymentController) paystackWebhook(c *fiber.Ctx) error {
	raw := c.Body()
	if !verifyPaystackSignature(raw, ctrl.PaystackSecret, c.Get("x-paystack-signature")) {
		log.Println("[WARN] Paystack webhook: signature tidak valid")
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "invalid signature"})
	}

	res := gjson.ParseBytes(raw)
	event := res.Get("event").String()
	data := res.Get("data")
	ref := data.Get("reference").String()

	var rawData map[string]interface{}
	_ = sonic.UnmarshalString(data.Raw, &rawData)
	resp := widget.Response{
		Reference:     ref,
		Status:        data.Get("status").String(),
		TransactionID: data.Get("id").String(),
		Message:       data.Get("gateway_response").String(),
		Channel:       data.Get("channel").String(),
		Raw:           rawData,
	}

	log.Printf("Paystack webhook → event=%s, reference=%s, status=%s", event, ref, resp.Status)
	return ctrl.settle(c, notification{
		Gateway:   widget.PaystackName,
		Type:      event,
		Kind:      widget.MapPaystackEvent(event),
		Status:    resp.Status,
		Signature: c.Get("x-paystack-signature"),
		Response:  resp,
	})
}

func (ctrl *PaymentController) midtransWebhook(c *fiber.Ctx) error {
	body := parseNotificationBody(c)
	if len(body) == 0 {
		log.Printf("[ERROR] Webhook body empty. CT=%q", string(c.Request().Header.ContentType()))
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "empty body"})
	}

	orderID := getString(body, "order_id")
	txStatus := strings.ToLower(getString(body, "transaction_status"))
	fraud := strings.ToLower(getString(body, "fraud_status"))

	if !verifyMidtransSignature(orderID, getString(body, "status_code"), getString(body, "gross_amount"),
		ctrl.MidtransServerKey, getString(body, "signature_key")) {
		log.Println("[WARN] Midtrans webhook: signature tidak valid")
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "invalid signature"})
	}

	log.Printf("Midtrans webhook → order_id=%s, tx_status=%s, fraud=%s", orderID, txStatus, fraud)
	resp := widget.Response{
		Reference:     orderID,
		Status:        txStatus,
		TransactionID: getString(body, "transaction_id"),
		Message:       getString(body, "status_message"),
		Channel:       getString(body, "payment_type"),
		Raw:           body,
	}
	return ctrl.settle(c, notification{
		Gateway:   widget.MidtransName,
		Type:      txStatus,
		Kind:      widget.MapMidtransStatus(txStatus, fraud),
		Status:    txStatus,
		Signature: getString(body, "signature_key"),
		Response:  resp,
	})
}

// notification: webhook terverifikasi yang sudah dinormalisasi.
type notification struct {
	Gateway   string
	Type      string
	Kind      widget.EventKind
	Status    string // status mentah dari gateway
	Signature string
	Response  widget.Response
}

// settle menyimpan event ke payment_gateway_events, meneruskannya ke Hub
// (owner kosong = terpercaya) lalu mencatat konfirmasi ke record aplikasi.
// Event tanpa record tetap tersimpan (unmatched) dan diterapkan saat insert.
func (ctrl *PaymentController) settle(c *fiber.Ctx, n notification) error {
	ref := n.Response.Reference
	if ref == "" {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "missing reference"})
	}
	ctx := c.UserContext()
	eventID, logged := ctrl.logGatewayEvent(c, n)

	delivered := false
	if n.Kind != "" {
		ev := widget.Event{Kind: n.Kind, Response: n.Response}
		if n.Kind == widget.EventFailed {
			ev.Reason = "payment was not completed (" + n.Status + ")"
		}
		switch err := ctrl.Hub.Deliver(ref, "", ev); {
		case err == nil:
			delivered = true
		case errors.Is(err, widget.ErrUnknownReference):
			// popup sudah menyelesaikan attempt duluan
		default:
			log.WithError(err).WithField("reference", ref).Warn("[PAYMENT] webhook deliver failed")
		}
	}

	if ctrl.Recorder != nil {
		found, err := ctrl.Recorder.AttachPaymentConfirmation(ctx, ref, n.Status, n.Response)
		if err != nil {
			log.WithError(err).WithField("reference", ref).Warn("[PAYMENT] attach confirmation failed")
			if logged {
				ctrl.updateEventStatus(ctx, eventID, model.GatewayEventFailed, err.Error())
			}
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"message": "processed with warning",
				"error":   err.Error(),
			})
		}
		if logged {
			status := model.GatewayEventUnmatched
			if found {
				status = model.GatewayEventProcessed
			}
			ctrl.updateEventStatus(ctx, eventID, status, "")
		}
	}

	return helper.JsonOK(c, n.Gateway+" webhook processed", fiber.Map{
		"reference":  ref,
		"event":      string(n.Kind),
		"delivered":  delivered,
		"app_status": widget.PaymentStatus(n.Kind),
	})
}

func (ctrl *PaymentController) logGatewayEvent(c *fiber.Ctx, n notification) (uuid.UUID, bool) {
	if ctrl.Events == nil {
		return uuid.Nil, false
	}
	headers := map[string]string{}
	for k, v := range c.GetReqHeaders() {
		headers[k] = strings.Join(v, ",")
	}
	headersJSON, _ := sonic.Marshal(headers)
	payloadJSON, _ := sonic.Marshal(n.Response)

	ev := &model.PaymentGatewayEvent{
		GatewayEventID:            uuid.New(),
		GatewayEventProvider:      n.Gateway,
		GatewayEventType:          optional(n.Type),
		GatewayEventReference:     n.Response.Reference,
		GatewayEventGatewayStatus: n.Status,
		GatewayEventExternalRef:   optional(n.Response.TransactionID),
		GatewayEventHeaders:       headersJSON,
		GatewayEventPayload:       payloadJSON,
		GatewayEventSignature:     optional(n.Signature),
		GatewayEventStatus:        model.GatewayEventReceived,
	}
	if err := ctrl.Events.Log(c.UserContext(), ev); err != nil {
		log.WithError(err).WithField("reference", ev.GatewayEventReference).Warn("[PAYMENT] gateway event not stored")
		return uuid.Nil, false
	}
	return ev.GatewayEventID, true
}

func (ctrl *PaymentController) updateEventStatus(ctx context.Context, id uuid.UUID, status, errMsg string) {
	var err error
	switch status {
	case model.GatewayEventProcessed:
		err = ctrl.Events.MarkProcessed(ctx, id)
	case model.GatewayEventUnmatched:
		err = ctrl.Events.MarkUnmatched(ctx, id)
	default:
		err = ctrl.Events.MarkFailed(ctx, id, errMsg)
	}
	if err != nil {
		log.WithError(err).WithField("gateway_event_id", id).Warn("[PAYMENT] gateway event status update failed")
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// parseNotificationBody: JSON dulu, fallback form-urlencoded.
func parseNotificationBody(c *fiber.Ctx) map[string]interface{} {
	var body map[string]interface{}
	ct := strings.ToLower(string(c.Request().Header.ContentType()))
	raw := c.Body()

	if strings.Contains(ct, "application/json") && len(raw) > 0 {
		if err := sonic.Unmarshal(raw, &body); err != nil {
			log.Println("[WARN] JSON parse failed:", err)
		}
	}
	if len(body) == 0 {
		form := map[string]interface{}{}
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			form[string(k)] = string(v)
		})
		if len(form) > 0 {
			body = form
		}
	}
	return body
}

func getString(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, _ := sonic.Marshal(v)
		return strings.Trim(string(b), `"`)
	}
}
