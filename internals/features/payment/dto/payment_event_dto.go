package dto

import "grantku_backend/internals/features/payment/widget"

// PaymentEventRequest dikirim browser saat popup vendor memanggil hook.
type PaymentEventRequest struct {
	Reference string          `json:"reference" validate:"required,max=80"`
	Event     string          `json:"event" validate:"required,oneof=success cancel close callback failed"`
	Reason    string          `json:"reason" validate:"omitempty,max=500"`
	Response  widget.Response `json:"response"`
}

type PaymentEventResponse struct {
	Reference string `json:"reference"`
	Event     string `json:"event"`
	Terminal  bool   `json:"terminal"`
}
