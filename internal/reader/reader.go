// Package reader drives the proximity channels that carry a record payload:
// an optical QR scanner, a radio NFC tag listener and a simulated fallback
// used when neither capability is present.
package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"medical-record-exchange/internal/config"
	"medical-record-exchange/internal/domain/entities"
)

// ErrBusy is returned by Start while a previous activation is still running.
var ErrBusy = errors.New("reader already active")

// RawEvent is what a reader delivers. Err set means the read failed. With
// IdentifierOnly the payload is a bare identifier, not an encoded record.
type RawEvent struct {
	Channel        entities.Channel
	Payload        string
	IdentifierOnly bool
	Err            error
}

// Reader is one proximity capability. Start returns an error wrapping
// domain.ErrReaderUnavailable when the capability is absent; silence on the
// returned channel only means nothing has been read yet. The channel is
// closed when the activation ends. Stop is idempotent.
type Reader interface {
	Channel() entities.Channel
	Start(ctx context.Context) (<-chan RawEvent, error)
	Stop() error
}

// ActivationPolicy says how many successful reads an activation delivers.
type ActivationPolicy int

const (
	// OneShot delivers the first successful read and then stops the reader.
	OneShot ActivationPolicy = iota + 1
	// Continuous keeps delivering distinct reads until stopped.
	Continuous
)

// New builds the physical reader configured for the scan channel.
func New(cfg config.ScanConfig, logger zerolog.Logger) (Reader, error) {
	channel, err := entities.ParseChannel(cfg.Channel)
	if err != nil {
		return nil, err
	}
	switch channel {
	case entities.ChannelRadio:
		return NewRadioReader(NewDeviceTagListener(cfg.RadioDevice), cfg.RadioTimeout, logger), nil
	case entities.ChannelOptical:
		return NewOpticalReader(NewDirFrameSource(cfg.CaptureDir), NewZXingDecoder(), OneShot, logger), nil
	}
	return nil, fmt.Errorf("no reader for channel %q", channel)
}

// runner owns the goroutine of one activation at a time.
type runner struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (r *runner) start(parent context.Context, run func(ctx context.Context, out chan<- RawEvent)) (<-chan RawEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != nil {
		select {
		case <-r.done:
		default:
			return nil, ErrBusy
		}
	}

	ctx, cancel := context.WithCancel(parent)
	out := make(chan RawEvent, 1)
	done := make(chan struct{})
	r.cancel, r.done = cancel, done

	go func() {
		defer close(done)
		defer close(out)
		defer cancel()
		run(ctx, out)
	}()
	return out, nil
}

// stop cancels the running activation and waits for its goroutine.
func (r *runner) stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func emit(ctx context.Context, out chan<- RawEvent, ev RawEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
