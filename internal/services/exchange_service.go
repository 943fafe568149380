package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medical-record-exchange/internal/adapters"
	"medical-record-exchange/internal/codec"
	"medical-record-exchange/internal/domain"
	"medical-record-exchange/internal/domain/dtos"
	"medical-record-exchange/internal/domain/entities"
	"medical-record-exchange/internal/domain/repositories"
	"medical-record-exchange/internal/fhir/mappers"
	"medical-record-exchange/internal/reader"
	"medical-record-exchange/internal/scan"
)

// ScanEventsQueue carries scan outcomes from the machine to subscribers.
const ScanEventsQueue = "scan_events"

const subscriberBuffer = 16

// PayloadRenderer turns transfer text into a displayable image.
type PayloadRenderer interface {
	Render(text string, size int) ([]byte, error)
}

type ExchangeConfig struct {
	Timings     scan.Timings
	FHIRVersion string
}

// ExchangeServiceImpl implements ExchangeServiceContract. It owns the scan
// machine and is its listener.
type ExchangeServiceImpl struct {
	recordRepo   repositories.RecordRepositoryContract
	reconciler   scan.Reconciler
	machine      *scan.Machine
	renderer     PayloadRenderer
	queueAdapter adapters.QueueAdapter
	fhirVersion  string
	logger       zerolog.Logger

	serviceCtx    context.Context
	serviceCancel context.CancelFunc

	subsMu  sync.Mutex
	subs    map[int]chan dtos.ScanEvent
	nextSub int
}

// NewExchangeService wires the scan machine over primary, with fallback
// serving activations when primary is unavailable.
func NewExchangeService(
	recordRepo repositories.RecordRepositoryContract,
	reconciler scan.Reconciler,
	primary, fallback reader.Reader,
	renderer PayloadRenderer,
	queueAdapter adapters.QueueAdapter,
	cfg ExchangeConfig,
	logger zerolog.Logger,
) ExchangeServiceContract {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.FHIRVersion == "" {
		cfg.FHIRVersion = mappers.VersionSTU3
	}
	s := &ExchangeServiceImpl{
		recordRepo:    recordRepo,
		reconciler:    reconciler,
		renderer:      renderer,
		queueAdapter:  queueAdapter,
		fhirVersion:   cfg.FHIRVersion,
		logger:        logger.With().Str("component", "exchange_service").Logger(),
		serviceCtx:    ctx,
		serviceCancel: cancel,
		subs:          make(map[int]chan dtos.ScanEvent),
	}
	s.machine = scan.New(primary, fallback, reconciler, cfg.Timings, logger, scan.WithListener(s))
	return s
}

func (s *ExchangeServiceImpl) Start(ctx context.Context) error {
	if err := s.queueAdapter.StartConsuming(s.serviceCtx, ScanEventsQueue, s.handleScanEvent); err != nil {
		return fmt.Errorf("start consumer for %s: %w", ScanEventsQueue, err)
	}
	s.logger.Info().Str("queue", ScanEventsQueue).Msg("exchange service started")
	return nil
}

func (s *ExchangeServiceImpl) Stop(ctx context.Context) error {
	if err := s.machine.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("close scan machine")
	}
	if err := s.queueAdapter.StopConsuming(ctx, ScanEventsQueue); err != nil {
		s.logger.Warn().Err(err).Msg("stop consumer")
	}
	s.serviceCancel()

	s.subsMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subsMu.Unlock()

	s.logger.Info().Msg("exchange service stopped")
	return nil
}

func (s *ExchangeServiceImpl) StartScan(ctx context.Context) error {
	return s.machine.Start()
}

func (s *ExchangeServiceImpl) CancelScan(ctx context.Context) {
	s.machine.Cancel()
}

func (s *ExchangeServiceImpl) ScanStatus(ctx context.Context) dtos.ScanStatusResponse {
	return dtos.ScanStatusResponse{
		Session:     s.machine.Session(),
		LastOutcome: s.LastOutcome(ctx),
	}
}

func (s *ExchangeServiceImpl) LastOutcome(ctx context.Context) *dtos.ScanOutcomeDTO {
	o := s.machine.LastOutcome()
	if o == nil {
		return nil
	}
	dto := toOutcomeDTO(*o)
	return &dto
}

func (s *ExchangeServiceImpl) SubmitPayload(ctx context.Context, payload string) (*dtos.ScanOutcomeDTO, error) {
	record, err := codec.Decode(payload)
	if err != nil {
		s.OnScanError(err)
		return nil, err
	}
	res, err := s.reconciler.Reconcile(ctx, record)
	if err != nil {
		return nil, err
	}
	o := scan.Outcome{Record: res.Record, Known: res.Known, Channel: entities.ChannelManual}
	s.OnScanComplete(o)
	dto := toOutcomeDTO(o)
	return &dto, nil
}

func (s *ExchangeServiceImpl) ExportPayload(ctx context.Context, id string) (string, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return "", err
	}
	return codec.Encode(*record)
}

func (s *ExchangeServiceImpl) ExportQR(ctx context.Context, id string, size int) ([]byte, error) {
	text, err := s.ExportPayload(ctx, id)
	if err != nil {
		return nil, err
	}
	img, err := s.renderer.Render(text, size)
	if err != nil {
		return nil, fmt.Errorf("render payload of %s: %w", id, err)
	}
	return img, nil
}

func (s *ExchangeServiceImpl) ExportFHIR(ctx context.Context, id string, fhirVersion string) (json.RawMessage, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if fhirVersion == "" {
		fhirVersion = s.fhirVersion
	}
	raw, err := mappers.MapRecordToFHIR(*record, fhirVersion)
	if err != nil {
		return nil, fmt.Errorf("map record %s to FHIR %s: %w", id, fhirVersion, err)
	}
	return raw, nil
}

func (s *ExchangeServiceImpl) Subscribe() (<-chan dtos.ScanEvent, func()) {
	ch := make(chan dtos.ScanEvent, subscriberBuffer)

	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			if _, ok := s.subs[id]; ok {
				close(ch)
				delete(s.subs, id)
			}
		})
	}
}

// OnScanComplete implements scan.Listener.
func (s *ExchangeServiceImpl) OnScanComplete(o scan.Outcome) {
	dto := toOutcomeDTO(o)
	s.publish(dtos.ScanEvent{Type: dtos.ScanEventComplete, Outcome: &dto})
}

// OnScanError implements scan.Listener.
func (s *ExchangeServiceImpl) OnScanError(err error) {
	s.publish(dtos.ScanEvent{Type: dtos.ScanEventError, Reason: err.Error()})
}

func (s *ExchangeServiceImpl) publish(event dtos.ScanEvent) {
	event.EventID = uuid.NewString()
	event.OccurredAt = time.Now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error().Err(err).Msg("marshal scan event")
		return
	}
	if err := s.queueAdapter.Publish(s.serviceCtx, ScanEventsQueue, data); err != nil {
		s.logger.Warn().Err(err).Str("event_id", event.EventID).Msg("publish scan event failed")
	}
}

// handleScanEvent fans a queued scan event out to subscribers. Slow
// subscribers miss events rather than block the consumer.
func (s *ExchangeServiceImpl) handleScanEvent(ctx context.Context, data []byte) error {
	var event dtos.ScanEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("decode scan event: %w", err)
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- event:
		default:
			s.logger.Warn().Int("subscriber", id).Str("event_id", event.EventID).Msg("subscriber full, event dropped")
		}
	}
	return nil
}

func (s *ExchangeServiceImpl) find(ctx context.Context, id string) (*entities.Record, error) {
	record, err := s.recordRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find record %s: %w", id, err)
	}
	if record == nil {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrRecordNotFound)
	}
	return record, nil
}

func toOutcomeDTO(o scan.Outcome) dtos.ScanOutcomeDTO {
	return dtos.ScanOutcomeDTO{
		Record:    o.Record,
		Known:     o.Known,
		Channel:   o.Channel,
		Simulated: o.Simulated,
	}
}
