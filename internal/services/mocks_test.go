package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"medical-record-exchange/internal/adapters"
	"medical-record-exchange/internal/domain/entities"
	"medical-record-exchange/internal/domain/repositories"
)

// --- MockRecordRepository ---
// Compile-time check to ensure MockRecordRepository implements RecordRepositoryContract
var _ repositories.RecordRepositoryContract = (*MockRecordRepository)(nil)

// MockRecordRepository is a mock implementation of RecordRepositoryContract.
type MockRecordRepository struct {
	ListFunc     func(ctx context.Context) ([]entities.Record, error)
	AddFunc      func(ctx context.Context, record entities.Record) ([]entities.Record, error)
	UpdateFunc   func(ctx context.Context, record entities.Record) ([]entities.Record, error)
	DeleteFunc   func(ctx context.Context, id string) ([]entities.Record, error)
	FindByIDFunc func(ctx context.Context, id string) (*entities.Record, error)

	AddFuncCallCount    int32
	UpdateFuncCallCount int32
	DeleteFuncCallCount int32
}

func (m *MockRecordRepository) List(ctx context.Context) ([]entities.Record, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []entities.Record{}, nil
}

func (m *MockRecordRepository) Add(ctx context.Context, record entities.Record) ([]entities.Record, error) {
	atomic.AddInt32(&m.AddFuncCallCount, 1)
	if m.AddFunc != nil {
		return m.AddFunc(ctx, record)
	}
	return []entities.Record{record}, nil
}

func (m *MockRecordRepository) Update(ctx context.Context, record entities.Record) ([]entities.Record, error) {
	atomic.AddInt32(&m.UpdateFuncCallCount, 1)
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, record)
	}
	return nil, errors.New("UpdateFunc not implemented in mock")
}

func (m *MockRecordRepository) Delete(ctx context.Context, id string) ([]entities.Record, error) {
	atomic.AddInt32(&m.DeleteFuncCallCount, 1)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil, errors.New("DeleteFunc not implemented in mock")
}

func (m *MockRecordRepository) FindByID(ctx context.Context, id string) (*entities.Record, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, errors.New("FindByIDFunc not implemented in mock")
}

// --- MockQueueAdapter ---
var _ adapters.QueueAdapter = (*MockQueueAdapter)(nil)

type MockQueueAdapter struct {
	PublishFunc        func(ctx context.Context, queueName string, data []byte) error
	StartConsumingFunc func(ctx context.Context, queueName string, handler adapters.JobHandler) error

	PublishedMessages map[string][][]byte
	Handlers          map[string]adapters.JobHandler
	mu                sync.Mutex
}

func NewMockQueueAdapter() *MockQueueAdapter {
	return &MockQueueAdapter{
		PublishedMessages: make(map[string][][]byte),
		Handlers:          make(map[string]adapters.JobHandler),
	}
}

func (m *MockQueueAdapter) Publish(ctx context.Context, queueName string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, queueName, data)
	}
	m.PublishedMessages[queueName] = append(m.PublishedMessages[queueName], data)
	return nil
}

func (m *MockQueueAdapter) StartConsuming(ctx context.Context, queueName string, handler adapters.JobHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartConsumingFunc != nil {
		return m.StartConsumingFunc(ctx, queueName, handler)
	}
	m.Handlers[queueName] = handler
	return nil
}

func (m *MockQueueAdapter) StopConsuming(ctx context.Context, queueName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Handlers, queueName)
	return nil
}

func (m *MockQueueAdapter) Close() error { return nil }

func (m *MockQueueAdapter) published(queueName string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.PublishedMessages[queueName]))
	copy(out, m.PublishedMessages[queueName])
	return out
}
