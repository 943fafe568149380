package reader

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"medical-record-exchange/internal/domain"
	"medical-record-exchange/internal/domain/entities"
)

const (
	DefaultFallbackDelay       = 2 * time.Second
	DefaultFallbackSuccessRate = 0.8
)

// SimulatedReader stands in for an absent capability: after a fixed delay it
// reports a synthesized identifier, or a failure with probability
// 1 - successRate.
type SimulatedReader struct {
	channel     entities.Channel
	delay       time.Duration
	successRate float64
	float       func() float64
	intn        func(int) int
	logger      zerolog.Logger
	runner      runner
}

type SimulatedOption func(*SimulatedReader)

// WithRand makes the outcome deterministic.
func WithRand(rnd *rand.Rand) SimulatedOption {
	return func(r *SimulatedReader) {
		r.float = rnd.Float64
		r.intn = rnd.Intn
	}
}

func WithOutcome(float func() float64, intn func(int) int) SimulatedOption {
	return func(r *SimulatedReader) {
		r.float = float
		r.intn = intn
	}
}

func NewSimulatedReader(channel entities.Channel, delay time.Duration, successRate float64, logger zerolog.Logger, opts ...SimulatedOption) *SimulatedReader {
	r := &SimulatedReader{
		channel:     channel,
		delay:       delay,
		successRate: successRate,
		float:       rand.Float64,
		intn:        rand.Intn,
		logger:      logger.With().Str("component", "reader").Str("channel", string(channel)).Bool("simulated", true).Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *SimulatedReader) Channel() entities.Channel { return r.channel }

func (r *SimulatedReader) Start(ctx context.Context) (<-chan RawEvent, error) {
	return r.runner.start(ctx, r.run)
}

func (r *SimulatedReader) Stop() error {
	r.runner.stop()
	return nil
}

func (r *SimulatedReader) run(ctx context.Context, out chan<- RawEvent) {
	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	if r.float() < r.successRate {
		id := SynthesizedID(r.intn)
		r.logger.Debug().Str("record_id", id).Msg("simulated read")
		emit(ctx, out, RawEvent{Channel: r.channel, Payload: id, IdentifierOnly: true})
		return
	}
	emit(ctx, out, RawEvent{
		Channel: r.channel,
		Err:     fmt.Errorf("%w: simulated scan failed", domain.ErrReaderFailure),
	})
}
