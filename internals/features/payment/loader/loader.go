// Package loader adalah Script Loader: memuat script payment widget sekali
// per proses dengan timeout dan retry terbatas.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"grantku_backend/internals/features/payment/widget"
)

type State string

const (
	StateNotLoaded State = "NOT_LOADED"
	StateLoading   State = "LOADING"
	StateReady     State = "READY"
	StateFailed    State = "FAILED"
)

const (
	DefaultTimeout     = 15 * time.Second
	DefaultMaxAttempts = 3
)

type Config struct {
	Script      Script
	Globals     *Globals
	Injector    Injector
	Timeout     time.Duration
	MaxAttempts int
}

type Status struct {
	State      State  `json:"state"`
	Attempts   int    `json:"attempts"`
	ScriptSrc  string `json:"script_src"`
	Global     string `json:"global"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

type Loader struct {
	script      Script
	globals     *Globals
	injector    Injector
	timeout     time.Duration
	maxAttempts int

	mu         sync.Mutex
	state      State
	attempts   int
	diagnostic string
	done       chan struct{}
}

func New(cfg Config) *Loader {
	l := &Loader{
		script:      cfg.Script,
		globals:     cfg.Globals,
		injector:    cfg.Injector,
		timeout:     cfg.Timeout,
		maxAttempts: cfg.MaxAttempts,
		state:       StateNotLoaded,
	}
	if l.globals == nil {
		l.globals = NewGlobals()
	}
	if l.timeout <= 0 {
		l.timeout = DefaultTimeout
	}
	if l.maxAttempts <= 0 {
		l.maxAttempts = DefaultMaxAttempts
	}
	return l
}

/* ===================== Process-wide instance ===================== */

var (
	instance     *Loader
	instanceOnce sync.Once
)

// Init membuat singleton sekali; panggilan berikutnya mengembalikan instance
// yang sama tanpa melihat cfg.
func Init(cfg Config) *Loader {
	instanceOnce.Do(func() { instance = New(cfg) })
	return instance
}

// Default mengembalikan singleton (nil sebelum Init).
func Default() *Loader { return instance }

/* ===================== State machine ===================== */

// Load idempotent: saat Loading/Ready tidak melakukan apa-apa dan langsung
// mengembalikan state. Dari NotLoaded/Failed memulai siklus baru.
func (l *Loader) Load() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateLoading, StateReady:
		return l.state
	}

	l.done = make(chan struct{})
	l.attempts = 0
	l.diagnostic = ""

	if _, ok := l.globals.Lookup(l.script.Global); ok {
		log.Printf("[WIDGET] %s sudah terdefinisi, skip inject", l.script.Global)
		l.state = StateReady
		close(l.done)
		return l.state
	}

	l.state = StateLoading
	go l.run(l.done)
	return l.state
}

func (l *Loader) run(done chan struct{}) {
	var lastReason string
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		l.mu.Lock()
		l.attempts = attempt
		l.mu.Unlock()

		log.Printf("[WIDGET] Loading %s (attempt %d)", l.script.Src, attempt)
		reason := l.attempt()
		if reason == "" {
			log.Printf("[WIDGET] %s is available", l.script.Global)
			l.finish(done, StateReady, "")
			return
		}
		lastReason = reason
		if attempt < l.maxAttempts {
			log.Warnf("[WIDGET] %s, retrying script load (%d/%d)", reason, attempt, l.maxAttempts)
		}
	}

	diag := diagnosticFor(lastReason)
	log.Errorf("[WIDGET] giving up after %d attempts: %s", l.maxAttempts, lastReason)
	l.finish(done, StateFailed, diag)
}

const (
	reasonTimeout   = "timeout"
	reasonNoGlobal  = "no-global"
	reasonLoadError = "load-error"
)

// attempt mengembalikan "" bila global terdefinisi, selain itu alasan gagal.
func (l *Loader) attempt() string {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- l.injector.Inject(ctx, l.script) }()

	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		if _, ok := l.globals.Lookup(l.script.Global); ok {
			return ""
		}
		return reasonTimeout
	case err != nil:
		log.Warnf("[WIDGET] failed to load %s: %v", l.script.Src, err)
		return reasonLoadError
	}
	if _, ok := l.globals.Lookup(l.script.Global); !ok {
		log.Warnf("[WIDGET] script loaded but %s not available", l.script.Global)
		return reasonNoGlobal
	}
	return ""
}

func diagnosticFor(reason string) string {
	switch reason {
	case reasonTimeout:
		return "The payment service is taking too long to load. Please try again later or check your internet connection."
	case reasonNoGlobal:
		return "Failed to initialize payment service. Please try again later."
	default:
		return "Failed to load payment service. Please check your internet connection and try again."
	}
}

func (l *Loader) finish(done chan struct{}, st State, diag string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != done {
		return
	}
	l.state = st
	l.diagnostic = diag
	close(done)
}

func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loader) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		State:      l.state,
		Attempts:   l.attempts,
		ScriptSrc:  l.script.Src,
		Global:     l.script.Global,
		Diagnostic: l.diagnostic,
	}
}

// Wait memblok sampai siklus saat ini selesai (Ready/Failed) atau ctx habis.
func (l *Loader) Wait(ctx context.Context) (State, error) {
	l.mu.Lock()
	done := l.done
	st := l.state
	l.mu.Unlock()

	if done == nil {
		return st, fmt.Errorf("script loader not started")
	}
	select {
	case <-done:
		return l.State(), nil
	case <-ctx.Done():
		return l.State(), ctx.Err()
	}
}

// Widget menyerahkan kapabilitas widget; hanya tersedia saat Ready.
func (l *Loader) Widget() (widget.Widget, bool) {
	if l.State() != StateReady {
		return nil, false
	}
	return l.globals.Lookup(l.script.Global)
}

// Diagnostic: pesan untuk user saat Failed.
func (l *Loader) Diagnostic() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.diagnostic
}
