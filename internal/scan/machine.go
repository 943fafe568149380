// Package scan drives one reader activation at a time through
// idle → scanning → success|error and back to idle.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"medical-record-exchange/internal/codec"
	"medical-record-exchange/internal/domain"
	"medical-record-exchange/internal/domain/entities"
	"medical-record-exchange/internal/reader"
	"medical-record-exchange/internal/reconcile"
)

var (
	ErrScanInProgress = errors.New("scan already in progress")
	ErrClosed         = errors.New("scan machine closed")
)

const (
	DefaultSuccessDisplay = 2 * time.Second
	DefaultErrorDisplay   = 3 * time.Second
)

// Outcome is delivered to the listener after a successful scan.
type Outcome struct {
	Record    entities.Record
	Known     bool
	Channel   entities.Channel
	Simulated bool
}

type Listener interface {
	OnScanComplete(Outcome)
	OnScanError(error)
}

// Reconciler is what the machine needs from reconciliation.
type Reconciler interface {
	Reconcile(ctx context.Context, scanned entities.Record) (reconcile.Result, error)
	Resolve(ctx context.Context, id string) (*entities.Record, error)
}

type Timings struct {
	SuccessDisplay time.Duration
	ErrorDisplay   time.Duration
}

// Machine owns the scan session. Every transition happens under mu and is
// tagged with the activation generation; events and timers of an older
// generation are dropped.
type Machine struct {
	primary    reader.Reader
	fallback   reader.Reader
	reconciler Reconciler
	listener   Listener
	timings    Timings
	now        func() time.Time
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	session     entities.ScanSession
	generation  uint64
	active      reader.Reader
	resetTimer  *time.Timer
	lastOutcome *Outcome
	closed      bool
}

type Option func(*Machine)

func WithListener(l Listener) Option { return func(m *Machine) { m.listener = l } }

func WithClock(now func() time.Time) Option { return func(m *Machine) { m.now = now } }

// New builds a machine over primary, switching to fallback for an activation
// when primary reports the capability unavailable. fallback may be nil.
func New(primary, fallback reader.Reader, rc Reconciler, timings Timings, logger zerolog.Logger, opts ...Option) *Machine {
	if timings.SuccessDisplay <= 0 {
		timings.SuccessDisplay = DefaultSuccessDisplay
	}
	if timings.ErrorDisplay <= 0 {
		timings.ErrorDisplay = DefaultErrorDisplay
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Machine{
		primary:    primary,
		fallback:   fallback,
		reconciler: rc,
		timings:    timings,
		now:        time.Now,
		logger:     logger.With().Str("component", "scan").Logger(),
		ctx:        ctx,
		cancel:     cancel,
		session:    entities.ScanSession{Status: entities.ScanIdle, Channel: primary.Channel()},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start activates the reader. It is not re-entrant: while scanning it
// returns ErrScanInProgress and the running activation is left alone.
func (m *Machine) Start() error {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.session.Status == entities.ScanScanning {
		m.mu.Unlock()
		return ErrScanInProgress
	}
	m.stopResetTimer()
	m.generation++
	gen := m.generation

	rd, simulated := m.primary, false
	events, err := rd.Start(m.ctx)
	if err != nil && errors.Is(err, domain.ErrReaderUnavailable) && m.fallback != nil {
		m.logger.Warn().Err(err).Str("channel", string(rd.Channel())).Msg("reader unavailable, using simulated fallback")
		rd, simulated = m.fallback, true
		events, err = rd.Start(m.ctx)
	}

	m.session = entities.ScanSession{
		Status:    entities.ScanScanning,
		Channel:   rd.Channel(),
		Simulated: simulated,
		StartedAt: m.now(),
	}
	if err != nil {
		notify := m.fail(gen, fmt.Errorf("start reader: %w", err))
		m.mu.Unlock()
		notify()
		return err
	}
	m.active = rd
	m.mu.Unlock()

	m.logger.Info().Str("channel", string(rd.Channel())).Bool("simulated", simulated).Uint64("activation", gen).Msg("scan started")
	go m.consume(gen, simulated, events)
	return nil
}

// Cancel abandons a running scan and returns to idle. Outside scanning it
// does nothing.
func (m *Machine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.session.Status != entities.ScanScanning {
		return
	}
	m.generation++
	m.releaseReader()
	m.session.Status = entities.ScanIdle
	m.session.LastError = ""
	m.logger.Info().Msg("scan cancelled")
}

// Close stops the reader and any pending reset. Later Start calls return
// ErrClosed.
func (m *Machine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.generation++
	m.releaseReader()
	m.stopResetTimer()
	m.cancel()
	m.session.Status = entities.ScanIdle
	m.session.LastError = ""
	return nil
}

func (m *Machine) Session() entities.ScanSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// LastOutcome returns the most recent successful outcome, or nil.
func (m *Machine) LastOutcome() *Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastOutcome == nil {
		return nil
	}
	o := *m.lastOutcome
	return &o
}

func (m *Machine) consume(gen uint64, simulated bool, events <-chan reader.RawEvent) {
	for ev := range events {
		m.handle(gen, simulated, ev)
	}
}

func (m *Machine) handle(gen uint64, simulated bool, ev reader.RawEvent) {
	m.mu.Lock()
	if m.closed || gen != m.generation || m.session.Status != entities.ScanScanning {
		m.mu.Unlock()
		m.logger.Debug().Uint64("activation", gen).Msg("dropping event from superseded activation")
		return
	}
	m.releaseReader()

	var notify func()
	switch {
	case ev.Err != nil:
		notify = m.fail(gen, ev.Err)
	case ev.IdentifierOnly:
		notify = m.resolve(gen, simulated, ev)
	default:
		notify = m.reconcile(gen, simulated, ev)
	}
	m.mu.Unlock()
	notify()
}

func (m *Machine) resolve(gen uint64, simulated bool, ev reader.RawEvent) func() {
	stored, err := m.reconciler.Resolve(m.ctx, ev.Payload)
	if err != nil {
		return m.fail(gen, err)
	}
	if stored == nil {
		if simulated {
			m.logger.Info().
				Str("record_id", ev.Payload).
				Str("channel", string(ev.Channel)).
				Bool("simulated", true).
				Msg("simulated tag names no local record")
		}
		return m.fail(gen, fmt.Errorf("%w: no local record for identifier %s", domain.ErrDecodeIncomplete, ev.Payload))
	}
	return m.succeed(gen, Outcome{Record: *stored, Known: true, Channel: ev.Channel, Simulated: simulated})
}

func (m *Machine) reconcile(gen uint64, simulated bool, ev reader.RawEvent) func() {
	record, err := codec.Decode(ev.Payload)
	if err != nil {
		return m.fail(gen, err)
	}
	res, err := m.reconciler.Reconcile(m.ctx, record)
	if err != nil {
		return m.fail(gen, err)
	}
	return m.succeed(gen, Outcome{Record: res.Record, Known: res.Known, Channel: ev.Channel, Simulated: simulated})
}

// succeed and fail must be called with mu held. The returned func notifies
// the listener and must be called after mu is released.
func (m *Machine) succeed(gen uint64, o Outcome) func() {
	m.session.Status = entities.ScanSuccess
	m.session.LastError = ""
	m.lastOutcome = &o
	m.scheduleReset(gen, m.timings.SuccessDisplay)
	m.logger.Info().Str("record_id", o.Record.ID).Bool("known", o.Known).Msg("scan succeeded")

	l := m.listener
	return func() {
		if l != nil {
			l.OnScanComplete(o)
		}
	}
}

func (m *Machine) fail(gen uint64, err error) func() {
	m.session.Status = entities.ScanError
	m.session.LastError = err.Error()
	m.scheduleReset(gen, m.timings.ErrorDisplay)
	m.logger.Warn().Err(err).Msg("scan failed")

	l := m.listener
	return func() {
		if l != nil {
			l.OnScanError(err)
		}
	}
}

func (m *Machine) scheduleReset(gen uint64, after time.Duration) {
	m.stopResetTimer()
	m.resetTimer = time.AfterFunc(after, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed || gen != m.generation {
			return
		}
		if s := m.session.Status; s == entities.ScanSuccess || s == entities.ScanError {
			m.session.Status = entities.ScanIdle
			m.session.LastError = ""
		}
	})
}

func (m *Machine) stopResetTimer() {
	if m.resetTimer != nil {
		m.resetTimer.Stop()
		m.resetTimer = nil
	}
}

func (m *Machine) releaseReader() {
	if m.active == nil {
		return
	}
	if err := m.active.Stop(); err != nil {
		m.logger.Warn().Err(err).Msg("stop reader")
	}
	m.active = nil
}
