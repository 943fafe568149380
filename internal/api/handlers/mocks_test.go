package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"medical-record-exchange/internal/domain/dtos"
	"medical-record-exchange/internal/domain/entities"
	"medical-record-exchange/internal/services"
)

var _ services.RecordServiceContract = (*MockRecordService)(nil)

type MockRecordService struct {
	ListFunc   func(ctx context.Context) ([]entities.Record, error)
	GetFunc    func(ctx context.Context, id string) (*entities.Record, error)
	CreateFunc func(ctx context.Context, req dtos.CreateRecordRequest) (*entities.Record, error)
	EditFunc   func(ctx context.Context, id string, req dtos.UpdateRecordRequest) (*entities.Record, error)
	RemoveFunc func(ctx context.Context, id string) error
}

func (m *MockRecordService) List(ctx context.Context) ([]entities.Record, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []entities.Record{}, nil
}

func (m *MockRecordService) Get(ctx context.Context, id string) (*entities.Record, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return nil, errors.New("GetFunc not implemented in mock")
}

func (m *MockRecordService) Create(ctx context.Context, req dtos.CreateRecordRequest) (*entities.Record, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return nil, errors.New("CreateFunc not implemented in mock")
}

func (m *MockRecordService) Edit(ctx context.Context, id string, req dtos.UpdateRecordRequest) (*entities.Record, error) {
	if m.EditFunc != nil {
		return m.EditFunc(ctx, id, req)
	}
	return nil, errors.New("EditFunc not implemented in mock")
}

func (m *MockRecordService) Remove(ctx context.Context, id string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, id)
	}
	return errors.New("RemoveFunc not implemented in mock")
}

var _ services.ExchangeServiceContract = (*MockExchangeService)(nil)

type MockExchangeService struct {
	StartScanFunc     func(ctx context.Context) error
	ScanStatusFunc    func(ctx context.Context) dtos.ScanStatusResponse
	SubmitPayloadFunc func(ctx context.Context, payload string) (*dtos.ScanOutcomeDTO, error)
	ExportPayloadFunc func(ctx context.Context, id string) (string, error)
	ExportQRFunc      func(ctx context.Context, id string, size int) ([]byte, error)
	ExportFHIRFunc    func(ctx context.Context, id string, fhirVersion string) (json.RawMessage, error)
	SubscribeFunc     func() (<-chan dtos.ScanEvent, func())

	CancelCalls int
}

func (m *MockExchangeService) Start(ctx context.Context) error { return nil }
func (m *MockExchangeService) Stop(ctx context.Context) error  { return nil }

func (m *MockExchangeService) StartScan(ctx context.Context) error {
	if m.StartScanFunc != nil {
		return m.StartScanFunc(ctx)
	}
	return nil
}

func (m *MockExchangeService) CancelScan(ctx context.Context) { m.CancelCalls++ }

func (m *MockExchangeService) ScanStatus(ctx context.Context) dtos.ScanStatusResponse {
	if m.ScanStatusFunc != nil {
		return m.ScanStatusFunc(ctx)
	}
	return dtos.ScanStatusResponse{Session: entities.ScanSession{Status: entities.ScanIdle}}
}

func (m *MockExchangeService) LastOutcome(ctx context.Context) *dtos.ScanOutcomeDTO {
	return m.ScanStatus(ctx).LastOutcome
}

func (m *MockExchangeService) SubmitPayload(ctx context.Context, payload string) (*dtos.ScanOutcomeDTO, error) {
	if m.SubmitPayloadFunc != nil {
		return m.SubmitPayloadFunc(ctx, payload)
	}
	return nil, errors.New("SubmitPayloadFunc not implemented in mock")
}

func (m *MockExchangeService) ExportPayload(ctx context.Context, id string) (string, error) {
	if m.ExportPayloadFunc != nil {
		return m.ExportPayloadFunc(ctx, id)
	}
	return "", errors.New("ExportPayloadFunc not implemented in mock")
}

func (m *MockExchangeService) ExportQR(ctx context.Context, id string, size int) ([]byte, error) {
	if m.ExportQRFunc != nil {
		return m.ExportQRFunc(ctx, id, size)
	}
	return nil, errors.New("ExportQRFunc not implemented in mock")
}

func (m *MockExchangeService) ExportFHIR(ctx context.Context, id string, fhirVersion string) (json.RawMessage, error) {
	if m.ExportFHIRFunc != nil {
		return m.ExportFHIRFunc(ctx, id, fhirVersion)
	}
	return nil, errors.New("ExportFHIRFunc not implemented in mock")
}

func (m *MockExchangeService) Subscribe() (<-chan dtos.ScanEvent, func()) {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc()
	}
	ch := make(chan dtos.ScanEvent)
	close(ch)
	return ch, func() {}
}
