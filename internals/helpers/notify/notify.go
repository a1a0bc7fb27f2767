// Package notify menyimpan notifikasi (toast) dari alur pengajuan sampai
// browser mengambil dan menampilkannya.
package notify

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

type Notice struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     Variant   `json:"variant"`
	At          time.Time `json:"at"`
}

// Notifier menerima notice untuk satu applicant.
type Notifier interface {
	Notify(n Notice)
}

// Inbox adalah Notifier in-memory dengan kapasitas terbatas (FIFO).
type Inbox struct {
	mu      sync.Mutex
	items   []Notice
	limit   int
	subject string // untuk log (user id)
}

func NewInbox(subject string, limit int) *Inbox {
	if limit <= 0 {
		limit = 20
	}
	return &Inbox{subject: subject, limit: limit}
}

func (b *Inbox) Notify(n Notice) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	if n.Variant == "" {
		n.Variant = VariantDefault
	}

	entry := log.WithFields(log.Fields{"user_id": b.subject, "title": n.Title})
	if n.Variant == VariantDestructive {
		entry.Warn(n.Description)
	} else {
		entry.Info(n.Description)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, n)
	if over := len(b.items) - b.limit; over > 0 {
		b.items = append([]Notice(nil), b.items[over:]...)
	}
}

// Drain mengambil semua notice lalu mengosongkan inbox.
func (b *Inbox) Drain() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}

// Peek mengembalikan salinan tanpa mengosongkan.
func (b *Inbox) Peek() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Notice(nil), b.items...)
}

func Info(title, description string) Notice {
	return Notice{Title: title, Description: description, Variant: VariantDefault}
}

func Destructive(title, description string) Notice {
	return Notice{Title: title, Description: description, Variant: VariantDestructive}
}

// Discard dipakai di test / job background yang tidak punya penerima.
type Discard struct{}

func (Discard) Notify(Notice) {}
