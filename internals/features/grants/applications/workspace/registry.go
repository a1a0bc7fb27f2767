// Package workspace menyimpan satu Form State Holder + Flow Controller per
// applicant yang sedang login (padanan satu tab browser di server).
package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"grantku_backend/internals/features/grants/applications/flow"
	"grantku_backend/internals/features/users/session"
	"grantku_backend/internals/helpers/notify"
)

type Workspace struct {
	UserID string
	Flow   *flow.Controller
	Inbox  *notify.Inbox
}

// Builder membuat workspace baru untuk userID.
type Builder func(userID string) *Workspace

// IdentityNotifier di-implement *session.Store.
type IdentityNotifier interface {
	OnIdentityChange(h session.Handler) (unsubscribe func())
}

type entry struct {
	ws       *Workspace
	lastSeen time.Time
	// signedOut: user sudah sign-out tapi run masih jalan; dibuang begitu run selesai
	signedOut bool
}

type Registry struct {
	mu      sync.Mutex
	items   map[string]*entry
	build   Builder
	idleTTL time.Duration
	now     func() time.Time
}

func NewRegistry(build Builder, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = 12 * time.Hour
	}
	return &Registry{items: map[string]*entry{}, build: build, idleTTL: idleTTL, now: time.Now}
}

// Get mengembalikan workspace user (dibuat bila belum ada).
func (r *Registry) Get(userID string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[userID]
	if !ok {
		e = &entry{ws: r.build(userID)}
		r.items[userID] = e
		log.WithField("user_id", userID).Debug("[WORKSPACE] created")
	}
	e.signedOut = false
	e.lastSeen = r.now()
	return e.ws
}

// Peek tanpa membuat workspace baru.
func (r *Registry) Peek(userID string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[userID]
	if !ok {
		return nil, false
	}
	return e.ws, true
}

// Drop membuang workspace. Run yang sedang jalan tidak dibatalkan.
func (r *Registry) Drop(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[userID]
	delete(r.items, userID)
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Watch membuang workspace saat user sign-out. Workspace dengan run yang
// masih jalan (PendingPayment / Submitting) dipertahankan sampai run selesai
// supaya guard pembayaran dan inbox notifikasinya tetap dipakai bila user
// login lagi. Panggil unsubscribe saat shutdown.
func (r *Registry) Watch(n IdentityNotifier) (unsubscribe func()) {
	return n.OnIdentityChange(func(ev session.Event, id *session.Identity) {
		if ev != session.EventSignedOut || id == nil {
			return
		}
		r.signOut(id.ID)
	})
}

func (r *Registry) signOut(userID string) {
	r.mu.Lock()
	e, ok := r.items[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if e.ws.Flow.Idle() {
		delete(r.items, userID)
		r.mu.Unlock()
		log.WithField("user_id", userID).Info("[WORKSPACE] dropped on sign-out")
		return
	}
	e.signedOut = true
	ws := e.ws
	r.mu.Unlock()

	log.WithFields(log.Fields{"user_id": userID, "state": ws.Flow.State()}).
		Info("[WORKSPACE] sign-out saat run berjalan, drop ditunda")
	go func() {
		_ = ws.Flow.Wait(context.Background())
		r.dropIfSignedOut(userID, ws)
	}()
}

// dropIfSignedOut: hanya bila workspace masih sama, user belum kembali, dan run selesai.
func (r *Registry) dropIfSignedOut(userID string, ws *Workspace) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[userID]
	if !ok || e.ws != ws || !e.signedOut || !ws.Flow.Idle() {
		return false
	}
	delete(r.items, userID)
	log.WithField("user_id", userID).Info("[WORKSPACE] dropped after run finished")
	return true
}

// ReapIdle membuang workspace yang tidak disentuh lebih lama dari idleTTL
// dan tidak sedang menjalankan run.
func (r *Registry) ReapIdle() int {
	cutoff := r.now().Add(-r.idleTTL)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.items {
		if e.lastSeen.Before(cutoff) && e.ws.Flow.Idle() {
			delete(r.items, id)
			n++
		}
	}
	return n
}

// RegisterReaper menjadwalkan ReapIdle di cron yang sama dengan cleanup sesi.
func RegisterReaper(c *cron.Cron, spec string, r *Registry) error {
	if spec == "" {
		spec = "@every 30m"
	}
	_, err := c.AddFunc(spec, func() {
		if n := r.ReapIdle(); n > 0 {
			log.Printf("[WORKSPACE] %d workspace idle dibuang", n)
		}
	})
	return err
}
