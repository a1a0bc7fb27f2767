// Package form adalah Form State Holder: draft yang bisa diubah + satu lampiran.
package form

import (
	"fmt"
	"strings"
	"sync"
)

const (
	FieldFullName      = "full_name"
	FieldPhoneNumber   = "phone_number"
	FieldEmail         = "email"
	FieldNIN           = "nin"
	FieldBVN           = "bvn"
	FieldSchoolName    = "school_name"
	FieldStudyLevel    = "study_level"
	FieldAmount        = "amount"
	FieldReason        = "reason"
	FieldAccountNumber = "account_number"
	FieldAccountName   = "account_name"
	FieldBank          = "bank"
	FieldPassport      = "passport"
)

// Attachment adalah foto paspor (nama, content type, isi).
type Attachment struct {
	FileName    string
	ContentType string
	Data        []byte
}

type Draft struct {
	FullName      string
	PhoneNumber   string
	Email         string
	NIN           string
	BVN           string // opsional (legacy)
	SchoolName    string
	StudyLevel    string
	Amount        string // input mentah, divalidasi sebagai desimal
	Reason        string
	AccountNumber string
	AccountName   string
	Bank          string
	Passport      *Attachment
}

type UnknownFieldError struct{ Name string }

func (e *UnknownFieldError) Error() string { return fmt.Sprintf("unknown form field %q", e.Name) }

func (d *Draft) field(name string) (*string, bool) {
	switch name {
	case FieldFullName:
		return &d.FullName, true
	case FieldPhoneNumber:
		return &d.PhoneNumber, true
	case FieldEmail:
		return &d.Email, true
	case FieldNIN:
		return &d.NIN, true
	case FieldBVN:
		return &d.BVN, true
	case FieldSchoolName:
		return &d.SchoolName, true
	case FieldStudyLevel:
		return &d.StudyLevel, true
	case FieldAmount:
		return &d.Amount, true
	case FieldReason:
		return &d.Reason, true
	case FieldAccountNumber:
		return &d.AccountNumber, true
	case FieldAccountName:
		return &d.AccountName, true
	case FieldBank:
		return &d.Bank, true
	}
	return nil, false
}

// Holder menyimpan satu draft; aman dipakai bersamaan (last write wins).
type Holder struct {
	mu    sync.RWMutex
	draft Draft
}

func NewHolder() *Holder { return &Holder{} }

func (h *Holder) UpdateField(name, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.draft.field(strings.TrimSpace(name))
	if !ok {
		return &UnknownFieldError{Name: name}
	}
	*p = value
	return nil
}

// UpdateFileField mengganti lampiran; nil = hapus.
func (h *Holder) UpdateFileField(a *Attachment) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if a == nil {
		h.draft.Passport = nil
		return
	}
	cp := *a
	cp.Data = append([]byte(nil), a.Data...)
	h.draft.Passport = &cp
}

func (h *Holder) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.draft = Draft{}
}

// Snapshot mengembalikan salinan; perubahan berikutnya tidak ikut.
func (h *Holder) Snapshot() Draft {
	h.mu.RLock()
	defer h.mu.RUnlock()
	d := h.draft
	if d.Passport != nil {
		cp := *d.Passport
		d.Passport = &cp
	}
	return d
}
