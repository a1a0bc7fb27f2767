// Package validation adalah Validator draft: fungsi murni, kegagalan pertama menang.
package validation

import (
	"strings"

	"github.com/shopspring/decimal"

	"grantku_backend/internals/features/grants/applications/form"
	"grantku_backend/internals/helpers/apperr"
)

const (
	RuleRequired = "required"
	RuleAmount   = "amount_range"
	RulePassport = "passport"

	MsgRequired = "Please fill in all required fields."
	MsgAmount   = "Please enter an amount between ₦20,000 and ₦100,000"
	MsgPassport = "Please upload your passport photograph."
)

var (
	MinAmount = decimal.NewFromInt(20000)
	MaxAmount = decimal.NewFromInt(100000)
)

type Result struct {
	OK      bool   `json:"ok"`
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message,omitempty"`
}

// Err: nil bila OK, selain itu apperr ValidationFailed.
func (r Result) Err() error {
	if r.OK {
		return nil
	}
	return apperr.ValidationFailed(r.Field, r.Message)
}

// urutan cek wajib isi (bvn tidak termasuk)
var requiredOrder = []string{
	form.FieldFullName,
	form.FieldPhoneNumber,
	form.FieldEmail,
	form.FieldNIN,
	form.FieldSchoolName,
	form.FieldStudyLevel,
	form.FieldAccountNumber,
	form.FieldAccountName,
	form.FieldBank,
	form.FieldAmount,
	form.FieldReason,
}

func valueOf(d form.Draft, name string) string {
	switch name {
	case form.FieldFullName:
		return d.FullName
	case form.FieldPhoneNumber:
		return d.PhoneNumber
	case form.FieldEmail:
		return d.Email
	case form.FieldNIN:
		return d.NIN
	case form.FieldSchoolName:
		return d.SchoolName
	case form.FieldStudyLevel:
		return d.StudyLevel
	case form.FieldAccountNumber:
		return d.AccountNumber
	case form.FieldAccountName:
		return d.AccountName
	case form.FieldBank:
		return d.Bank
	case form.FieldAmount:
		return d.Amount
	case form.FieldReason:
		return d.Reason
	}
	return ""
}

func Validate(d form.Draft) Result {
	for _, name := range requiredOrder {
		if strings.TrimSpace(valueOf(d, name)) == "" {
			return Result{Field: name, Rule: RuleRequired, Message: MsgRequired}
		}
	}

	amt, err := ParseAmount(d.Amount)
	if err != nil || amt.LessThan(MinAmount) || amt.GreaterThan(MaxAmount) {
		return Result{Field: form.FieldAmount, Rule: RuleAmount, Message: MsgAmount}
	}

	if d.Passport == nil || len(d.Passport.Data) == 0 {
		return Result{Field: form.FieldPassport, Rule: RulePassport, Message: MsgPassport}
	}
	return Result{OK: true}
}

func ParseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

// Title adalah judul notifikasi untuk rule yang gagal.
func (r Result) Title() string {
	switch r.Rule {
	case RuleRequired:
		return "Missing information"
	case RuleAmount:
		return "Invalid amount"
	case RulePassport:
		return "Missing passport"
	}
	return ""
}
