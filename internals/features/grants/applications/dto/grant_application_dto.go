package dto

import (
	"slices"

	"grantku_backend/internals/features/grants/applications/flow"
	"grantku_backend/internals/features/grants/applications/form"
	"grantku_backend/internals/features/grants/applications/model"
	"grantku_backend/internals/features/payment/widget"
	"grantku_backend/internals/helpers/notify"
)

var StudyLevels = []string{
	"ND1", "ND2", "HND1", "HND2",
	"100 Level", "200 Level", "300 Level", "400 Level", "500 Level", "600 Level",
	"Postgraduate",
}

var Banks = []string{
	"Access Bank",
	"Citibank Nigeria",
	"Ecobank Nigeria",
	"Fidelity Bank",
	"First Bank of Nigeria",
	"First City Monument Bank",
	"Globus Bank",
	"Guaranty Trust Bank",
	"Heritage Bank",
	"Jaiz Bank",
	"Keystone Bank",
	"Kuda Bank",
	"Moniepoint MFB",
	"OPay",
	"Optimus Bank",
	"PalmPay",
	"Parallex Bank",
	"Polaris Bank",
	"Providus Bank",
	"Stanbic IBTC Bank",
	"Standard Chartered Bank",
	"Sterling Bank",
	"SunTrust Bank",
	"Titan Trust Bank",
	"Union Bank of Nigeria",
	"United Bank for Africa",
	"Unity Bank",
	"Wema Bank",
	"Zenith Bank",
}

func IsStudyLevel(s string) bool { return slices.Contains(StudyLevels, s) }
func IsBank(s string) bool       { return slices.Contains(Banks, s) }

// UpdateDraftRequest: PATCH parsial, field nil = tidak diubah.
type UpdateDraftRequest struct {
	FullName      *string `json:"full_name" validate:"omitempty,max=150"`
	PhoneNumber   *string `json:"phone_number" validate:"omitempty,max=30"`
	Email         *string `json:"email" validate:"omitempty,email,max=150"`
	NIN           *string `json:"nin" validate:"omitempty,max=20"`
	BVN           *string `json:"bvn" validate:"omitempty,max=20"`
	SchoolName    *string `json:"school_name" validate:"omitempty,max=200"`
	StudyLevel    *string `json:"study_level" validate:"omitempty,study_level"`
	Amount        *string `json:"amount" validate:"omitempty,max=20"`
	Reason        *string `json:"reason" validate:"omitempty,max=5000"`
	AccountNumber *string `json:"account_number" validate:"omitempty,max=20"`
	AccountName   *string `json:"account_name" validate:"omitempty,max=150"`
	Bank          *string `json:"bank" validate:"omitempty,bank"`
}

// Fields mengembalikan pasangan nama-field → nilai yang dikirim, urut sesuai form.
func (r UpdateDraftRequest) Fields() [][2]string {
	var out [][2]string
	add := func(name string, v *string) {
		if v != nil {
			out = append(out, [2]string{name, *v})
		}
	}
	add(form.FieldFullName, r.FullName)
	add(form.FieldPhoneNumber, r.PhoneNumber)
	add(form.FieldEmail, r.Email)
	add(form.FieldNIN, r.NIN)
	add(form.FieldBVN, r.BVN)
	add(form.FieldSchoolName, r.SchoolName)
	add(form.FieldStudyLevel, r.StudyLevel)
	add(form.FieldAmount, r.Amount)
	add(form.FieldReason, r.Reason)
	add(form.FieldAccountNumber, r.AccountNumber)
	add(form.FieldAccountName, r.AccountName)
	add(form.FieldBank, r.Bank)
	return out
}

type PassportInfo struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

type DraftResponse struct {
	FullName      string        `json:"full_name"`
	PhoneNumber   string        `json:"phone_number"`
	Email         string        `json:"email"`
	NIN           string        `json:"nin"`
	BVN           string        `json:"bvn"`
	SchoolName    string        `json:"school_name"`
	StudyLevel    string        `json:"study_level"`
	Amount        string        `json:"amount"`
	Reason        string        `json:"reason"`
	AccountNumber string        `json:"account_number"`
	AccountName   string        `json:"account_name"`
	Bank          string        `json:"bank"`
	Passport      *PassportInfo `json:"passport,omitempty"`
}

func FromDraft(d form.Draft) DraftResponse {
	out := DraftResponse{
		FullName:      d.FullName,
		PhoneNumber:   d.PhoneNumber,
		Email:         d.Email,
		NIN:           d.NIN,
		BVN:           d.BVN,
		SchoolName:    d.SchoolName,
		StudyLevel:    d.StudyLevel,
		Amount:        d.Amount,
		Reason:        d.Reason,
		AccountNumber: d.AccountNumber,
		AccountName:   d.AccountName,
		Bank:          d.Bank,
	}
	if d.Passport != nil {
		out.Passport = &PassportInfo{
			FileName:    d.Passport.FileName,
			ContentType: d.Passport.ContentType,
			Size:        len(d.Passport.Data),
		}
	}
	return out
}

// WorkspaceResponse: GET /api/u/grant-application
type WorkspaceResponse struct {
	State           flow.State              `json:"state"`
	PaymentRequired bool                    `json:"payment_required"`
	Draft           DraftResponse           `json:"draft"`
	Payment         *widget.Handoff         `json:"payment,omitempty"`
	Result          *model.GrantApplication `json:"result,omitempty"`
	LastError       string                  `json:"last_error,omitempty"`
	Notifications   []notify.Notice         `json:"notifications"`
	StudyLevels     []string                `json:"study_levels"`
	Banks           []string                `json:"banks"`
}

// SubmitResponse: POST /submit (202 saat menunggu pembayaran, 201 saat selesai).
type SubmitResponse struct {
	State   flow.State              `json:"state"`
	Payment *widget.Handoff         `json:"payment,omitempty"`
	Result  *model.GrantApplication `json:"result,omitempty"`
}
