// Package apperr: taksonomi error bersama untuk alur pengajuan grant.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type Kind string

const (
	KindValidationFailed  Kind = "VALIDATION_FAILED"
	KindAuthRequired      Kind = "AUTH_REQUIRED"
	KindScriptUnavailable Kind = "SCRIPT_UNAVAILABLE"
	KindPaymentCancelled  Kind = "PAYMENT_CANCELLED"
	KindPaymentFailed     Kind = "PAYMENT_FAILED"
	KindUploadFailed      Kind = "UPLOAD_FAILED"
	KindInsertFailed      Kind = "INSERT_FAILED"
	KindUnknown           Kind = "UNKNOWN_ERROR"
)

// Sentinels untuk errors.Is; perbandingan cukup berdasarkan Kind.
var (
	ErrValidationFailed  = &Error{Kind: KindValidationFailed}
	ErrAuthRequired      = &Error{Kind: KindAuthRequired}
	ErrScriptUnavailable = &Error{Kind: KindScriptUnavailable}
	ErrPaymentCancelled  = &Error{Kind: KindPaymentCancelled}
	ErrPaymentFailed     = &Error{Kind: KindPaymentFailed}
	ErrUploadFailed      = &Error{Kind: KindUploadFailed}
	ErrInsertFailed      = &Error{Kind: KindInsertFailed}
	ErrUnknown           = &Error{Kind: KindUnknown}
)

type Error struct {
	Kind   Kind
	Field  string // hanya untuk ValidationFailed
	Reason string // pesan untuk user
	Err    error  // penyebab asli (tidak dikirim ke user)
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Field != "" {
		msg += "(" + e.Field + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func ValidationFailed(field, reason string) *Error {
	return &Error{Kind: KindValidationFailed, Field: field, Reason: reason}
}

func AuthRequired() *Error {
	return &Error{Kind: KindAuthRequired, Reason: "authentication required"}
}

func ScriptUnavailable(reason string) *Error {
	return &Error{Kind: KindScriptUnavailable, Reason: reason}
}

func PaymentCancelled(reason string) *Error {
	return &Error{Kind: KindPaymentCancelled, Reason: reason}
}

func PaymentFailed(reason string) *Error {
	return &Error{Kind: KindPaymentFailed, Reason: reason}
}

func UploadFailed(err error) *Error {
	return &Error{Kind: KindUploadFailed, Reason: "failed to upload passport photograph", Err: err}
}

func InsertFailed(err error) *Error {
	return &Error{Kind: KindInsertFailed, Reason: "failed to save application", Err: err}
}

// Wrap membungkus error asing jadi UnknownError; *Error dibiarkan apa adanya.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Kind: KindUnknown, Reason: "there was a problem processing your request", Err: err}
}

// KindOf mengembalikan Kind dari err (UnknownError jika bukan *Error).
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Message adalah teks yang aman ditampilkan ke user.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Reason != "" {
			return ae.Reason
		}
		return string(ae.Kind)
	}
	return "there was a problem processing your request"
}

// HTTPStatus memetakan Kind ke status HTTP.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidationFailed:
		return fiber.StatusUnprocessableEntity
	case KindAuthRequired:
		return fiber.StatusUnauthorized
	case KindScriptUnavailable:
		return fiber.StatusServiceUnavailable
	case KindPaymentCancelled:
		return fiber.StatusConflict
	case KindPaymentFailed:
		return fiber.StatusPaymentRequired
	case KindUploadFailed, KindInsertFailed:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func (k Kind) String() string { return string(k) }

// Errorf helper buat UnknownError dengan format.
func Errorf(format string, args ...any) *Error {
	return &Error{Kind: KindUnknown, Reason: "there was a problem processing your request", Err: fmt.Errorf(format, args...)}
}
