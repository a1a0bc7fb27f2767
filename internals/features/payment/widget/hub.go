package widget

import (
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type EventKind string

const (
	EventSuccess  EventKind = "success"
	EventCancel   EventKind = "cancel"
	EventClose    EventKind = "close"
	EventCallback EventKind = "callback"
	EventFailed   EventKind = "failed"
)

func ParseEventKind(s string) (EventKind, bool) {
	switch k := EventKind(strings.ToLower(strings.TrimSpace(s))); k {
	case EventSuccess, EventCancel, EventClose, EventCallback, EventFailed:
		return k, true
	}
	return "", false
}

func (k EventKind) Terminal() bool { return k != EventCallback }

type Event struct {
	Kind     EventKind
	Response Response
	Reason   string
}

type pending struct {
	owner   string
	gateway string
	hooks   Hooks
	created time.Time
}

// Hub memegang transaksi yang sedang menunggu hook terminal, per reference.
type Hub struct {
	mu      sync.Mutex
	pending map[string]*pending
}

func NewHub() *Hub {
	return &Hub{pending: map[string]*pending{}}
}

func (h *Hub) Register(reference, owner, gateway string, hooks Hooks) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.pending[reference]; ok {
		return ErrDuplicateRef
	}
	h.pending[reference] = &pending{owner: owner, gateway: gateway, hooks: hooks, created: time.Now()}
	return nil
}

// Forget membuang reference tanpa memanggil hook (timeout / abort).
func (h *Hub) Forget(reference string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.pending[reference]
	delete(h.pending, reference)
	return ok
}

func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Deliver meneruskan event ke hook pemilik reference. owner kosong = sumber
// terpercaya (webhook gateway yang sudah diverifikasi). Event terminal
// menghapus reference sehingga hook terminal dipanggil paling banyak sekali.
func (h *Hub) Deliver(reference, owner string, ev Event) error {
	h.mu.Lock()
	p, ok := h.pending[reference]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownReference
	}
	if owner != "" && p.owner != owner {
		h.mu.Unlock()
		return ErrForeignReference
	}
	if ev.Kind.Terminal() {
		delete(h.pending, reference)
	}
	h.mu.Unlock()

	if ev.Response.Reference == "" {
		ev.Response.Reference = reference
	}
	log.WithFields(log.Fields{
		"reference": reference,
		"gateway":   p.gateway,
		"event":     ev.Kind,
	}).Info("[PAYMENT] widget event")

	hk := p.hooks
	switch ev.Kind {
	case EventSuccess:
		if hk.OnSuccess != nil {
			hk.OnSuccess(ev.Response)
		}
	case EventCancel:
		if hk.OnCancel != nil {
			hk.OnCancel()
		}
	case EventClose:
		if hk.OnClose != nil {
			hk.OnClose()
		}
	case EventCallback:
		if hk.Callback != nil {
			hk.Callback(ev.Response)
		}
	case EventFailed:
		if hk.OnError != nil {
			reason := ev.Reason
			if reason == "" {
				reason = "payment was not completed"
			}
			hk.OnError(reason)
		}
	}
	return nil
}
