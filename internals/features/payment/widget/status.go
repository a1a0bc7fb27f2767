package widget

import "strings"

// MapMidtransStatus: transaction_status + fraud_status Midtrans → EventKind.
// "" = status antara (pending / challenge), tidak diteruskan ke hook.
func MapMidtransStatus(txStatus, fraudStatus string) EventKind {
	txStatus = strings.ToLower(strings.TrimSpace(txStatus))
	fraudStatus = strings.ToLower(strings.TrimSpace(fraudStatus))
	switch txStatus {
	case "capture", "settlement", "success":
		if txStatus == "capture" && fraudStatus == "challenge" {
			return ""
		}
		return EventSuccess
	case "pending":
		return ""
	case "cancel", "canceled":
		return EventCancel
	case "expire", "expired", "deny", "failure", "failed":
		return EventFailed
	default:
		return ""
	}
}

// MapPaystackEvent: nama event webhook Paystack → EventKind.
func MapPaystackEvent(event string) EventKind {
	switch strings.ToLower(strings.TrimSpace(event)) {
	case "charge.success":
		return EventSuccess
	case "charge.failed":
		return EventFailed
	default:
		return ""
	}
}

// PaymentStatus adalah nilai kolom payment_gateway_status → payment_status.
func PaymentStatus(kind EventKind) string {
	switch kind {
	case EventSuccess:
		return "completed"
	case EventCancel, EventClose:
		return "cancelled"
	case EventFailed:
		return "failed"
	default:
		return "pending"
	}
}

// MapGatewayStatus: status transaksi mentah dari gateway mana pun
// (Paystack "success"/"failed"/"abandoned", Midtrans transaction_status).
func MapGatewayStatus(status string) EventKind {
	if strings.EqualFold(strings.TrimSpace(status), "abandoned") {
		return EventCancel
	}
	return MapMidtransStatus(status, "")
}
