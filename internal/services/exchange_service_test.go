package services

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medical-record-exchange/internal/adapters"
	"medical-record-exchange/internal/codec"
	"medical-record-exchange/internal/domain"
	"medical-record-exchange/internal/domain/dtos"
	"medical-record-exchange/internal/domain/entities"
	"medical-record-exchange/internal/reader"
	"medical-record-exchange/internal/reconcile"
	"medical-record-exchange/internal/scan"
	"medical-record-exchange/internal/store"
)

type exchangeFixture struct {
	svc   *ExchangeServiceImpl
	store *store.RecordStore
	queue adapters.QueueAdapter
}

func storedPatient() entities.Record {
	return entities.Record{
		ID: "patient_7", Name: "Maria Lopez", Age: 52, Gender: "Female", Phone: "555-0102",
		Address: "9 Harbor Rd", LastVisit: "2024-05-02", Condition: "Hypertension",
		Medications: "Lisinopril", Notes: "stored copy",
	}
}

// newExchangeFixture builds the service over a memory store, a simulated
// primary reader that always resolves patient_7, and the given queue.
func newExchangeFixture(t *testing.T, queue adapters.QueueAdapter) *exchangeFixture {
	t.Helper()
	logger := zerolog.Nop()
	rs := store.NewRecordStore(store.NewMemoryBackend(storedPatient()), logger)
	rc := reconcile.New(rs, logger)
	primary := reader.NewSimulatedReader(entities.ChannelOptical, 20*time.Millisecond, 1, logger,
		reader.WithOutcome(func() float64 { return 0 }, func(int) int { return 7 }))

	svc := NewExchangeService(rs, rc, primary, nil, reader.NewQRRenderer(), queue, ExchangeConfig{
		Timings: scan.Timings{SuccessDisplay: time.Hour, ErrorDisplay: time.Hour},
	}, logger).(*ExchangeServiceImpl)

	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })
	return &exchangeFixture{svc: svc, store: rs, queue: queue}
}

func TestExchangeService_SubmitPayload_NewRecordIsAdded(t *testing.T) {
	mockQueue := NewMockQueueAdapter()
	f := newExchangeFixture(t, mockQueue)
	ctx := context.Background()

	outcome, err := f.svc.SubmitPayload(ctx, `{"id":"p-100","name":"Ken Ito","age":41,"condition":"Gout"}`)
	require.NoError(t, err)
	assert.False(t, outcome.Known)
	assert.Equal(t, entities.ChannelManual, outcome.Channel)
	assert.Equal(t, "p-100", outcome.Record.ID)
	assert.Equal(t, entities.NotAvailable, outcome.Record.Phone, "missing fields are filled with defaults")

	stored, err := f.store.FindByID(ctx, "p-100")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Ken Ito", stored.Name)

	published := mockQueue.published(ScanEventsQueue)
	require.Len(t, published, 1)
	var event dtos.ScanEvent
	require.NoError(t, json.Unmarshal(published[0], &event))
	assert.Equal(t, dtos.ScanEventComplete, event.Type)
	assert.NotEmpty(t, event.EventID)
	require.NotNil(t, event.Outcome)
	assert.Equal(t, "p-100", event.Outcome.Record.ID)
}

func TestExchangeService_SubmitPayload_KnownRecordKeepsStoredCopy(t *testing.T) {
	f := newExchangeFixture(t, NewMockQueueAdapter())
	ctx := context.Background()

	outcome, err := f.svc.SubmitPayload(ctx, `{"id":"patient_7","name":"Someone Else","condition":"Flu"}`)
	require.NoError(t, err)
	assert.True(t, outcome.Known)
	assert.Equal(t, storedPatient(), outcome.Record)

	records, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestExchangeService_SubmitPayload_Rejected(t *testing.T) {
	mockQueue := NewMockQueueAdapter()
	f := newExchangeFixture(t, mockQueue)

	_, err := f.svc.SubmitPayload(context.Background(), "https://example.com/x")
	assert.ErrorIs(t, err, domain.ErrDecodeRejected)

	_, err = f.svc.SubmitPayload(context.Background(), `{"age":3}`)
	assert.ErrorIs(t, err, domain.ErrDecodeIncomplete)

	published := mockQueue.published(ScanEventsQueue)
	require.Len(t, published, 2)
	var event dtos.ScanEvent
	require.NoError(t, json.Unmarshal(published[0], &event))
	assert.Equal(t, dtos.ScanEventError, event.Type)
	assert.NotEmpty(t, event.Reason)
}

func TestExchangeService_ExportPayload_RoundTrips(t *testing.T) {
	f := newExchangeFixture(t, NewMockQueueAdapter())

	text, err := f.svc.ExportPayload(context.Background(), "patient_7")
	require.NoError(t, err)

	decoded, err := codec.Decode(text)
	require.NoError(t, err)
	assert.Equal(t, storedPatient(), decoded)
}

func TestExchangeService_ExportQR_ProducesPNG(t *testing.T) {
	f := newExchangeFixture(t, NewMockQueueAdapter())

	img, err := f.svc.ExportQR(context.Background(), "patient_7", reader.DefaultQRSize)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	text, err := reader.NewZXingDecoder().Decode(decoded)
	require.NoError(t, err)

	want, err := f.svc.ExportPayload(context.Background(), "patient_7")
	require.NoError(t, err)
	assert.Equal(t, want, text)
}

func TestExchangeService_ExportFHIR(t *testing.T) {
	f := newExchangeFixture(t, NewMockQueueAdapter())

	raw, err := f.svc.ExportFHIR(context.Background(), "patient_7", "")
	require.NoError(t, err)

	var resource map[string]any
	require.NoError(t, json.Unmarshal(raw, &resource))
	assert.Equal(t, "Patient", resource["resourceType"])
	assert.Equal(t, "patient_7", resource["id"])

	_, err = f.svc.ExportFHIR(context.Background(), "patient_7", "R9")
	assert.Error(t, err)
}

func TestExchangeService_Exports_NotFound(t *testing.T) {
	f := newExchangeFixture(t, NewMockQueueAdapter())
	ctx := context.Background()

	_, err := f.svc.ExportPayload(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	_, err = f.svc.ExportQR(ctx, "missing", 0)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	_, err = f.svc.ExportFHIR(ctx, "missing", "")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestExchangeService_StartScan_DeliversToSubscribers(t *testing.T) {
	queue := adapters.NewInMemoryQueueAdapter(zerolog.Nop())
	t.Cleanup(func() { _ = queue.Close() })
	f := newExchangeFixture(t, queue)

	events, unsubscribe := f.svc.Subscribe()
	defer unsubscribe()

	require.NoError(t, f.svc.StartScan(context.Background()))
	assert.ErrorIs(t, f.svc.StartScan(context.Background()), scan.ErrScanInProgress)
	assert.Equal(t, entities.ScanScanning, f.svc.ScanStatus(context.Background()).Session.Status)

	select {
	case event := <-events:
		assert.Equal(t, dtos.ScanEventComplete, event.Type)
		require.NotNil(t, event.Outcome)
		assert.True(t, event.Outcome.Known)
		assert.Equal(t, "patient_7", event.Outcome.Record.ID)
		assert.False(t, event.Outcome.Simulated)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scan event")
	}

	status := f.svc.ScanStatus(context.Background())
	assert.Equal(t, entities.ScanSuccess, status.Session.Status)
	require.NotNil(t, status.LastOutcome)
	assert.Equal(t, "patient_7", status.LastOutcome.Record.ID)
}

func TestExchangeService_CancelScan(t *testing.T) {
	f := newExchangeFixture(t, NewMockQueueAdapter())

	require.NoError(t, f.svc.StartScan(context.Background()))
	f.svc.CancelScan(context.Background())

	assert.Equal(t, entities.ScanIdle, f.svc.ScanStatus(context.Background()).Session.Status)
	assert.Nil(t, f.svc.LastOutcome(context.Background()))
}

func TestExchangeService_Unsubscribe(t *testing.T) {
	f := newExchangeFixture(t, NewMockQueueAdapter())

	events, unsubscribe := f.svc.Subscribe()
	unsubscribe()
	unsubscribe()

	_, open := <-events
	assert.False(t, open, "unsubscribe closes the channel")
}

func TestExchangeService_Stop_ClosesSubscribers(t *testing.T) {
	mockQueue := NewMockQueueAdapter()
	f := newExchangeFixture(t, mockQueue)
	events, _ := f.svc.Subscribe()

	require.NoError(t, f.svc.Stop(context.Background()))

	_, open := <-events
	assert.False(t, open)
	assert.ErrorIs(t, f.svc.StartScan(context.Background()), scan.ErrClosed)
	assert.Empty(t, mockQueue.Handlers)
}
