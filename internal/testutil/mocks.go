package testutil

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/biopro/interface-exception-collector/internal/domain/errors"
	"github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/biopro/interface-exception-collector/internal/domain/outbox"
	"github.com/biopro/interface-exception-collector/internal/events"
	"github.com/google/uuid"
)

// --- Exception Repository Mock ---

// MockExceptionRepository is a mock implementation of exception.Repository.
// It enforces the transaction ID uniqueness the real table guarantees.
type MockExceptionRepository struct {
	mu         sync.Mutex
	exceptions map[uuid.UUID]*exception.Exception
	byTxID     map[string]*exception.Exception

	CreateFunc             func(ctx context.Context, ex *exception.Exception) error
	GetByIDFunc            func(ctx context.Context, id uuid.UUID) (*exception.Exception, error)
	GetByTransactionIDFunc func(ctx context.Context, transactionID string) (*exception.Exception, error)
	UpdateFunc             func(ctx context.Context, ex *exception.Exception) error
	ListFunc               func(ctx context.Context, filter exception.ListFilter) ([]*exception.Exception, error)
}

func NewMockExceptionRepository() *MockExceptionRepository {
	return &MockExceptionRepository{
		exceptions: make(map[uuid.UUID]*exception.Exception),
		byTxID:     make(map[string]*exception.Exception),
	}
}

// AddException pre-populates the mock with an exception.
func (m *MockExceptionRepository) AddException(ex *exception.Exception) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exceptions[ex.ID] = ex
	m.byTxID[ex.TransactionID] = ex
}

func (m *MockExceptionRepository) Create(ctx context.Context, ex *exception.Exception) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, ex)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byTxID[ex.TransactionID]; exists {
		return domainErrors.ErrDuplicateTransactionID
	}
	m.exceptions[ex.ID] = ex
	m.byTxID[ex.TransactionID] = ex
	return nil
}

func (m *MockExceptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*exception.Exception, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.exceptions[id]
	if !ok {
		return nil, domainErrors.ErrExceptionNotFound
	}
	return ex, nil
}

func (m *MockExceptionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*exception.Exception, error) {
	if m.GetByTransactionIDFunc != nil {
		return m.GetByTransactionIDFunc(ctx, transactionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.byTxID[transactionID]
	if !ok {
		return nil, domainErrors.ErrExceptionNotFound
	}
	return ex, nil
}

func (m *MockExceptionRepository) Update(ctx context.Context, ex *exception.Exception) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, ex)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exceptions[ex.ID]; !ok {
		return domainErrors.ErrExceptionNotFound
	}
	m.exceptions[ex.ID] = ex
	m.byTxID[ex.TransactionID] = ex
	return nil
}

func (m *MockExceptionRepository) List(ctx context.Context, filter exception.ListFilter) ([]*exception.Exception, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*exception.Exception, 0, len(m.exceptions))
	for _, ex := range m.exceptions {
		result = append(result, ex)
	}
	return result, nil
}

// --- Attempt Repository Mock ---

// MockAttemptRepository is a mock implementation of
// exception.AttemptRepository. InsertPending enforces the same
// single-active-attempt invariant as the real conditional insert, so
// concurrency tests exercise the conflict path for real.
type MockAttemptRepository struct {
	mu       sync.Mutex
	attempts map[uuid.UUID][]*exception.RetryAttempt

	InsertPendingFunc    func(ctx context.Context, a *exception.RetryAttempt) error
	UpdateFunc           func(ctx context.Context, a *exception.RetryAttempt) error
	CancelPendingFunc    func(ctx context.Context, a *exception.RetryAttempt) error
	GetFunc              func(ctx context.Context, exceptionID uuid.UUID, attemptNumber int) (*exception.RetryAttempt, error)
	ListFunc             func(ctx context.Context, exceptionID uuid.UUID) ([]*exception.RetryAttempt, error)
	LatestFunc           func(ctx context.Context, exceptionID uuid.UUID) (*exception.RetryAttempt, error)
	MaxAttemptNumberFunc func(ctx context.Context, exceptionID uuid.UUID) (int, error)
	CountFailedSinceFunc func(ctx context.Context, exceptionID uuid.UUID, since time.Time) (int, error)
}

func NewMockAttemptRepository() *MockAttemptRepository {
	return &MockAttemptRepository{
		attempts: make(map[uuid.UUID][]*exception.RetryAttempt),
	}
}

// AddAttempt pre-populates the mock with an attempt.
func (m *MockAttemptRepository) AddAttempt(a *exception.RetryAttempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[a.ExceptionID] = append(m.attempts[a.ExceptionID], a)
}

func (m *MockAttemptRepository) InsertPending(ctx context.Context, a *exception.RetryAttempt) error {
	if m.InsertPendingFunc != nil {
		return m.InsertPendingFunc(ctx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.attempts[a.ExceptionID] {
		if existing.Status == exception.AttemptPending || existing.Status == exception.AttemptRetrying {
			return domainErrors.ErrRetryAlreadyActive
		}
		if existing.AttemptNumber == a.AttemptNumber {
			return domainErrors.ErrRetryAlreadyActive
		}
	}
	m.attempts[a.ExceptionID] = append(m.attempts[a.ExceptionID], a)
	return nil
}

func (m *MockAttemptRepository) Update(ctx context.Context, a *exception.RetryAttempt) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.attempts[a.ExceptionID] {
		if existing.ID == a.ID {
			m.attempts[a.ExceptionID][i] = a
			return nil
		}
	}
	return domainErrors.ErrAttemptNotFound
}

// CancelPending enforces the PENDING guard against the stored attempt,
// like the real conditional update. Tests simulate a cancel racing the
// dispatcher by storing a copy whose status already moved on.
func (m *MockAttemptRepository) CancelPending(ctx context.Context, a *exception.RetryAttempt) error {
	if m.CancelPendingFunc != nil {
		return m.CancelPendingFunc(ctx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.attempts[a.ExceptionID] {
		if existing.ID != a.ID {
			continue
		}
		if existing != a && existing.Status != exception.AttemptPending {
			return domainErrors.ErrCancellationNotAllowed
		}
		m.attempts[a.ExceptionID][i] = a
		return nil
	}
	return domainErrors.ErrAttemptNotFound
}

func (m *MockAttemptRepository) Get(ctx context.Context, exceptionID uuid.UUID, attemptNumber int) (*exception.RetryAttempt, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, exceptionID, attemptNumber)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts[exceptionID] {
		if a.AttemptNumber == attemptNumber {
			return a, nil
		}
	}
	return nil, domainErrors.ErrAttemptNotFound
}

func (m *MockAttemptRepository) List(ctx context.Context, exceptionID uuid.UUID) ([]*exception.RetryAttempt, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, exceptionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*exception.RetryAttempt, len(m.attempts[exceptionID]))
	copy(out, m.attempts[exceptionID])
	return out, nil
}

func (m *MockAttemptRepository) Latest(ctx context.Context, exceptionID uuid.UUID) (*exception.RetryAttempt, error) {
	if m.LatestFunc != nil {
		return m.LatestFunc(ctx, exceptionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *exception.RetryAttempt
	for _, a := range m.attempts[exceptionID] {
		if latest == nil || a.AttemptNumber > latest.AttemptNumber {
			latest = a
		}
	}
	if latest == nil {
		return nil, domainErrors.ErrAttemptNotFound
	}
	return latest, nil
}

func (m *MockAttemptRepository) MaxAttemptNumber(ctx context.Context, exceptionID uuid.UUID) (int, error) {
	if m.MaxAttemptNumberFunc != nil {
		return m.MaxAttemptNumberFunc(ctx, exceptionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, a := range m.attempts[exceptionID] {
		if a.AttemptNumber > max {
			max = a.AttemptNumber
		}
	}
	return max, nil
}

func (m *MockAttemptRepository) CountFailedSince(ctx context.Context, exceptionID uuid.UUID, since time.Time) (int, error) {
	if m.CountFailedSinceFunc != nil {
		return m.CountFailedSinceFunc(ctx, exceptionID, since)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.attempts[exceptionID] {
		if a.Status == exception.AttemptFailed && a.CompletedAt != nil && !a.CompletedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

// --- Publisher Mock ---

// MockPublisher records published envelopes for assertions.
type MockPublisher struct {
	mu        sync.Mutex
	envelopes []*events.Envelope

	PublishFunc func(ctx context.Context, exceptionID uuid.UUID, env *events.Envelope) error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, exceptionID uuid.UUID, env *events.Envelope) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, exceptionID, env)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envelopes = append(m.envelopes, env)
	return nil
}

// Published returns all recorded envelopes.
func (m *MockPublisher) Published() []*events.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*events.Envelope, len(m.envelopes))
	copy(out, m.envelopes)
	return out
}

// PublishedOfType returns recorded envelopes for one event type.
func (m *MockPublisher) PublishedOfType(eventType string) []*events.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*events.Envelope
	for _, env := range m.envelopes {
		if env.EventType == eventType {
			out = append(out, env)
		}
	}
	return out
}

// --- Dispatcher Mock ---

// MockDispatcher records enqueued attempts, optionally executing them
// inline.
type MockDispatcher struct {
	mu       sync.Mutex
	enqueued []EnqueuedAttempt

	EnqueueFunc func(ctx context.Context, transactionID string, attemptNumber int, causationID string) error
}

// EnqueuedAttempt is one recorded dispatch request.
type EnqueuedAttempt struct {
	TransactionID string
	AttemptNumber int
	CausationID   string
}

func NewMockDispatcher() *MockDispatcher {
	return &MockDispatcher{}
}

func (m *MockDispatcher) EnqueueAttempt(ctx context.Context, transactionID string, attemptNumber int, causationID string) error {
	m.mu.Lock()
	m.enqueued = append(m.enqueued, EnqueuedAttempt{transactionID, attemptNumber, causationID})
	m.mu.Unlock()
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, transactionID, attemptNumber, causationID)
	}
	return nil
}

// Enqueued returns all recorded dispatch requests.
func (m *MockDispatcher) Enqueued() []EnqueuedAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EnqueuedAttempt, len(m.enqueued))
	copy(out, m.enqueued)
	return out
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is a mock implementation of outbox.Repository.
type MockOutboxRepository struct {
	mu      sync.Mutex
	entries []*outbox.Entry

	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	GetPendingFunc    func(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublishedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID) error
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*outbox.Entry
	for _, e := range m.entries {
		if e.Status == outbox.StatusPending {
			pending = append(pending, e)
			if limit > 0 && len(pending) == limit {
				break
			}
		}
	}
	return pending, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.Status = outbox.StatusPublished
			now := time.Now()
			e.PublishedAt = &now
		}
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.ID == id {
			e.RetryCount++
			if e.RetryCount >= e.MaxRetries {
				e.Status = outbox.StatusFailed
			}
		}
	}
	return nil
}
