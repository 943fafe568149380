package adapters

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrQueueClosed is returned by Publish and StartConsuming after Close.
var ErrQueueClosed = errors.New("queue adapter closed")

// JobHandler processes one message taken from a queue.
type JobHandler func(ctx context.Context, data []byte) error

// QueueAdapter is the publish/consume surface of a message queue.
type QueueAdapter interface {
	// Publish sends data to the named queue.
	Publish(ctx context.Context, queueName string, data []byte) error
	// StartConsuming runs handler for every message of the queue in the
	// background until StopConsuming or Close.
	StartConsuming(ctx context.Context, queueName string, handler JobHandler) error
	StopConsuming(ctx context.Context, queueName string) error
	// Close stops every consumer and waits for them to return.
	Close() error
}

const (
	defaultQueueBuffer    = 100
	defaultPublishTimeout = 2 * time.Second
)

// InMemoryQueueAdapter is a QueueAdapter over buffered Go channels.
type InMemoryQueueAdapter struct {
	mu             sync.Mutex
	queues         map[string]chan []byte
	stopChans      map[string]chan struct{}
	logger         zerolog.Logger
	publishTimeout time.Duration
	wg             sync.WaitGroup
	consumerCtx    context.Context
	cancelFunc     context.CancelFunc
	closed         bool
}

func NewInMemoryQueueAdapter(logger zerolog.Logger) *InMemoryQueueAdapter {
	consumerCtx, cancelFunc := context.WithCancel(context.Background())
	return &InMemoryQueueAdapter{
		queues:         make(map[string]chan []byte),
		stopChans:      make(map[string]chan struct{}),
		logger:         logger.With().Str("component", "queue").Logger(),
		publishTimeout: defaultPublishTimeout,
		consumerCtx:    consumerCtx,
		cancelFunc:     cancelFunc,
	}
}

func (q *InMemoryQueueAdapter) getOrCreateQueue(queueName string) (chan []byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed
	}
	queue, ok := q.queues[queueName]
	if !ok {
		queue = make(chan []byte, defaultQueueBuffer)
		q.queues[queueName] = queue
		q.logger.Debug().Str("queue", queueName).Msg("in-memory queue created")
	}
	return queue, nil
}

func (q *InMemoryQueueAdapter) Publish(ctx context.Context, queueName string, data []byte) error {
	queue, err := q.getOrCreateQueue(queueName)
	if err != nil {
		return err
	}
	timer := time.NewTimer(q.publishTimeout)
	defer timer.Stop()

	select {
	case queue <- data:
		q.logger.Debug().Str("queue", queueName).Int("depth", len(queue)).Msg("message published")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		q.logger.Warn().Str("queue", queueName).Msg("publish timed out, queue full")
		return fmt.Errorf("timeout publishing to queue %s", queueName)
	}
}

func (q *InMemoryQueueAdapter) StartConsuming(ctx context.Context, queueName string, handler JobHandler) error {
	queue, err := q.getOrCreateQueue(queueName)
	if err != nil {
		return err
	}

	q.mu.Lock()
	if _, running := q.stopChans[queueName]; running {
		q.mu.Unlock()
		return fmt.Errorf("consumer already running for queue %s", queueName)
	}
	stop := make(chan struct{})
	q.stopChans[queueName] = stop
	q.wg.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.wg.Done()
		log := q.logger.With().Str("queue", queueName).Logger()
		log.Debug().Msg("consumer started")
		for {
			select {
			case data := <-queue:
				if err := handler(q.consumerCtx, data); err != nil {
					log.Error().Err(err).Msg("message handler failed")
				}
			case <-stop:
				log.Debug().Msg("consumer stopped")
				return
			case <-ctx.Done():
				log.Debug().Msg("consumer context cancelled")
				return
			case <-q.consumerCtx.Done():
				return
			}
		}
	}()
	return nil
}

// StopConsuming stops the consumer of one queue. Messages already queued stay
// queued.
func (q *InMemoryQueueAdapter) StopConsuming(_ context.Context, queueName string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if stop, ok := q.stopChans[queueName]; ok {
		close(stop)
		delete(q.stopChans, queueName)
	}
	return nil
}

func (q *InMemoryQueueAdapter) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.cancelFunc()
	q.wg.Wait()
	q.logger.Debug().Msg("all consumers stopped")
	return nil
}
