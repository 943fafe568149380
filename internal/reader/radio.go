package reader

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/encoding/htmlindex"

	"medical-record-exchange/internal/domain"
	"medical-record-exchange/internal/domain/entities"
)

// DefaultRadioTimeout bounds how long a radio activation waits for a tag.
const DefaultRadioTimeout = 30 * time.Second

// NDEFRecord is one record of an NDEF message as delivered by the tag stack.
type NDEFRecord struct {
	RecordType string
	Encoding   string
	Data       []byte
}

type NDEFMessage struct {
	Records []NDEFRecord
}

// TagListener delivers inbound NDEF messages. Open fails with
// domain.ErrReaderUnavailable when the radio is absent. Next blocks until a
// message arrives or ctx is done.
type TagListener interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) (NDEFMessage, error)
	Close() error
}

// RadioReader waits for the first tag message of an activation and turns its
// first record into a payload event. A tag without text still identifies a
// patient: a synthesized identifier is emitted instead.
type RadioReader struct {
	listener TagListener
	timeout  time.Duration
	intn     func(int) int
	logger   zerolog.Logger
	runner   runner
}

func NewRadioReader(listener TagListener, timeout time.Duration, logger zerolog.Logger) *RadioReader {
	if timeout <= 0 {
		timeout = DefaultRadioTimeout
	}
	return &RadioReader{
		listener: listener,
		timeout:  timeout,
		intn:     rand.Intn,
		logger:   logger.With().Str("component", "reader").Str("channel", string(entities.ChannelRadio)).Logger(),
	}
}

func (r *RadioReader) Channel() entities.Channel { return entities.ChannelRadio }

func (r *RadioReader) Start(ctx context.Context) (<-chan RawEvent, error) {
	if err := r.listener.Open(ctx); err != nil {
		return nil, err
	}
	events, err := r.runner.start(ctx, r.run)
	if err != nil {
		r.listener.Close()
		return nil, err
	}
	r.logger.Debug().Dur("timeout", r.timeout).Msg("waiting for tag")
	return events, nil
}

func (r *RadioReader) Stop() error {
	r.runner.stop()
	return nil
}

func (r *RadioReader) run(ctx context.Context, out chan<- RawEvent) {
	defer func() {
		if err := r.listener.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("release radio")
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msg, err := r.listener.Next(waitCtx)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(waitCtx.Err(), context.DeadlineExceeded):
			err = fmt.Errorf("%w: no tag within %s", domain.ErrReaderFailure, r.timeout)
		default:
			err = fmt.Errorf("%w: radio: %v", domain.ErrReaderFailure, err)
		}
		emit(ctx, out, RawEvent{Channel: entities.ChannelRadio, Err: err})
		return
	}

	if text := MessageText(msg); text != "" {
		emit(ctx, out, RawEvent{Channel: entities.ChannelRadio, Payload: text})
		return
	}
	id := SynthesizedID(r.intn)
	r.logger.Info().Str("record_id", id).Msg("tag carried no text, using synthesized identifier")
	emit(ctx, out, RawEvent{Channel: entities.ChannelRadio, Payload: id, IdentifierOnly: true})
}

// MessageText decodes the first record of msg. Text records use their
// declared charset (UTF-8 when absent or unknown); other records with data
// are read as UTF-8.
func MessageText(msg NDEFMessage) string {
	if len(msg.Records) == 0 {
		return ""
	}
	rec := msg.Records[0]
	if len(rec.Data) == 0 {
		return ""
	}
	if rec.RecordType == "text" {
		label := strings.TrimSpace(rec.Encoding)
		if label == "" {
			label = "utf-8"
		}
		if enc, err := htmlindex.Get(label); err == nil {
			if b, err := enc.NewDecoder().Bytes(rec.Data); err == nil {
				return string(b)
			}
		}
	}
	if utf8.Valid(rec.Data) {
		return string(rec.Data)
	}
	return strings.ToValidUTF8(string(rec.Data), "\uFFFD")
}

// SynthesizedID builds the fallback identifier patient_<0..999>.
func SynthesizedID(intn func(int) int) string {
	return fmt.Sprintf("patient_%d", intn(1000))
}
