package reader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/rs/zerolog"

	"medical-record-exchange/internal/domain"
	"medical-record-exchange/internal/domain/entities"
)

// FrameRate is how many frames per second the optical reader samples.
const FrameRate = 10

// ErrNoCode is returned by a FrameDecoder when the frame holds no readable code.
var ErrNoCode = errors.New("no code in frame")

// FrameSource yields camera frames. Open fails with domain.ErrReaderUnavailable
// when there is no camera. Next returns a nil image when no new frame is ready.
type FrameSource interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

type FrameDecoder interface {
	Decode(frame image.Image) (string, error)
}

// OpticalReader samples a FrameSource and decodes every frame until a code is
// found. Per-frame misses are ignored.
type OpticalReader struct {
	source   FrameSource
	decoder  FrameDecoder
	policy   ActivationPolicy
	interval time.Duration
	logger   zerolog.Logger
	runner   runner
}

func NewOpticalReader(source FrameSource, decoder FrameDecoder, policy ActivationPolicy, logger zerolog.Logger) *OpticalReader {
	return &OpticalReader{
		source:   source,
		decoder:  decoder,
		policy:   policy,
		interval: time.Second / FrameRate,
		logger:   logger.With().Str("component", "reader").Str("channel", string(entities.ChannelOptical)).Logger(),
	}
}

func (r *OpticalReader) Channel() entities.Channel { return entities.ChannelOptical }

func (r *OpticalReader) Start(ctx context.Context) (<-chan RawEvent, error) {
	if err := r.source.Open(ctx); err != nil {
		return nil, err
	}
	events, err := r.runner.start(ctx, r.run)
	if err != nil {
		r.source.Close()
		return nil, err
	}
	r.logger.Debug().Msg("camera scanning")
	return events, nil
}

func (r *OpticalReader) Stop() error {
	r.runner.stop()
	return nil
}

func (r *OpticalReader) run(ctx context.Context, out chan<- RawEvent) {
	defer func() {
		if err := r.source.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("release camera")
		}
	}()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := r.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			emit(ctx, out, RawEvent{
				Channel: entities.ChannelOptical,
				Err:     fmt.Errorf("%w: camera: %v", domain.ErrReaderFailure, err),
			})
			return
		}
		if frame == nil {
			continue
		}

		text, err := r.decoder.Decode(frame)
		if err != nil {
			continue
		}
		if r.policy == Continuous && text == last {
			continue
		}
		last = text

		if !emit(ctx, out, RawEvent{Channel: entities.ChannelOptical, Payload: text}) {
			return
		}
		if r.policy != Continuous {
			return
		}
	}
}
