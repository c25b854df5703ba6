package exception

import (
	"time"

	"github.com/biopro/interface-exception-collector/internal/domain/errors"
	"github.com/google/uuid"
)

// InterfaceType identifies the upstream system that originated a failure.
type InterfaceType string

const (
	InterfaceOrder        InterfaceType = "ORDER"
	InterfaceCollection   InterfaceType = "COLLECTION"
	InterfaceDistribution InterfaceType = "DISTRIBUTION"
)

// Category classifies the nature of an exception.
type Category string

const (
	CategoryBusinessRule    Category = "BUSINESS_RULE"
	CategoryValidation      Category = "VALIDATION"
	CategoryTimeout         Category = "TIMEOUT"
	CategoryNetworkError    Category = "NETWORK_ERROR"
	CategoryAuthentication  Category = "AUTHENTICATION"
	CategoryAuthorization   Category = "AUTHORIZATION"
	CategoryExternalService Category = "EXTERNAL_SERVICE"
	CategorySystemError     Category = "SYSTEM_ERROR"
)

// Severity ranks how urgently an exception needs attention.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Status represents the exception status in the resolution state machine.
type Status string

const (
	StatusNew          Status = "NEW"
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusRetrying     Status = "RETRYING"
	StatusResolved     Status = "RESOLVED"
	StatusFailed       Status = "FAILED"
	StatusEscalated    Status = "ESCALATED"
)

// ResolutionMethod records how a resolved exception was closed.
type ResolutionMethod string

const (
	ResolutionRetrySuccess     ResolutionMethod = "RETRY_SUCCESS"
	ResolutionManual           ResolutionMethod = "MANUAL_RESOLUTION"
	ResolutionCustomerResolved ResolutionMethod = "CUSTOMER_RESOLVED"
)

// Exception represents one captured interface failure, keyed by the
// originating system's transaction ID. It is never physically deleted.
type Exception struct {
	ID              uuid.UUID
	TransactionID   string
	InterfaceType   InterfaceType
	ExceptionReason string
	Operation       string
	ExternalID      string
	CustomerID      string
	LocationCode    string
	Category        Category
	Severity        Severity
	Status          Status
	Retryable       bool
	RetryCount      int
	MaxRetries      int
	Timestamp       time.Time
	ProcessedAt     time.Time
	AcknowledgedAt  *time.Time
	AcknowledgedBy  *string
	ResolvedAt      *time.Time
	ResolvedBy      *string
	ResolutionMethod *ResolutionMethod
	ResolutionNotes  *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewParams carries the fields needed to capture a new exception.
type NewParams struct {
	TransactionID   string
	InterfaceType   InterfaceType
	ExceptionReason string
	Operation       string
	ExternalID      string
	CustomerID      string
	LocationCode    string
	Category        Category
	Severity        Severity
	Retryable       bool
	MaxRetries      int
	Timestamp       time.Time
}

// New creates a freshly captured exception in status NEW.
func New(p NewParams) (*Exception, error) {
	if p.TransactionID == "" {
		return nil, errors.NewValidationError("transaction_id", "cannot be empty")
	}
	if p.InterfaceType == "" {
		return nil, errors.NewValidationError("interface_type", "cannot be empty")
	}

	now := time.Now()
	ts := p.Timestamp
	if ts.IsZero() {
		ts = now
	}
	maxRetries := p.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Exception{
		ID:              uuid.New(),
		TransactionID:   p.TransactionID,
		InterfaceType:   p.InterfaceType,
		ExceptionReason: p.ExceptionReason,
		Operation:       p.Operation,
		ExternalID:      p.ExternalID,
		CustomerID:      p.CustomerID,
		LocationCode:    p.LocationCode,
		Category:        p.Category,
		Severity:        p.Severity,
		Status:          StatusNew,
		Retryable:       p.Retryable,
		RetryCount:      0,
		MaxRetries:      maxRetries,
		Timestamp:       ts,
		ProcessedAt:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// CanTransitionTo checks if the exception can transition to the given status.
func (e *Exception) CanTransitionTo(newStatus Status) bool {
	transitions := map[Status][]Status{
		StatusNew: {
			StatusAcknowledged,
			StatusEscalated, // critical at capture
			StatusResolved,  // manual resolution without retry
		},
		StatusAcknowledged: {
			StatusRetrying,
			StatusResolved,
			StatusFailed,
			StatusEscalated,
		},
		StatusRetrying: {
			StatusAcknowledged, // attempt done, more retries expected
			StatusResolved,
			StatusFailed,
			StatusEscalated,
		},
		// Escalation is orthogonal: an escalated exception can still be
		// worked and later resolve or terminally fail.
		StatusEscalated: {
			StatusAcknowledged,
			StatusRetrying,
			StatusResolved,
			StatusFailed,
		},
		StatusFailed: {
			StatusRetrying, // operator re-drives an exhausted exception
			StatusResolved, // manual resolution
			StatusEscalated,
		},
		StatusResolved: {}, // Terminal state
	}

	allowed, exists := transitions[e.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo transitions the exception to a new status.
func (e *Exception) TransitionTo(newStatus Status) error {
	if !e.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition from "+string(e.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}
	e.Status = newStatus
	e.UpdatedAt = time.Now()
	return nil
}

// Acknowledge transitions the exception to ACKNOWLEDGED and records who did it.
func (e *Exception) Acknowledge(by string) error {
	if e.Status == StatusAcknowledged {
		return nil // idempotent
	}
	if err := e.TransitionTo(StatusAcknowledged); err != nil {
		return err
	}
	now := time.Now()
	e.AcknowledgedAt = &now
	if by != "" {
		e.AcknowledgedBy = &by
	}
	return nil
}

// MarkRetrying transitions the exception to RETRYING while an attempt is dispatched.
func (e *Exception) MarkRetrying() error {
	return e.TransitionTo(StatusRetrying)
}

// Resolve transitions the exception to RESOLVED. Resolution metadata is
// mandatory: RESOLVED is only reachable through a successful attempt or an
// explicit manual action, and both identify the actor.
func (e *Exception) Resolve(by string, method ResolutionMethod, notes string) error {
	if by == "" || method == "" {
		return errors.ErrResolutionDetailsMissing
	}
	if err := e.TransitionTo(StatusResolved); err != nil {
		return err
	}
	now := time.Now()
	e.ResolvedAt = &now
	e.ResolvedBy = &by
	e.ResolutionMethod = &method
	if notes != "" {
		e.ResolutionNotes = &notes
	}
	return nil
}

// MarkFailed transitions the exception to FAILED once the retry policy is
// exhausted or an operator marks it terminally failed.
func (e *Exception) MarkFailed() error {
	return e.TransitionTo(StatusFailed)
}

// Escalate transitions the exception to ESCALATED.
func (e *Exception) Escalate() error {
	if e.Status == StatusEscalated {
		return nil // idempotent
	}
	return e.TransitionTo(StatusEscalated)
}

// IncrementRetry bumps the terminal-attempt counter.
func (e *Exception) IncrementRetry() {
	e.RetryCount++
	e.UpdatedAt = time.Now()
}

// RetriesExhausted reports whether the configured retry budget is used up.
func (e *Exception) RetriesExhausted() bool {
	return e.RetryCount >= e.MaxRetries
}

// CanRetry checks whether a new retry attempt may be initiated.
func (e *Exception) CanRetry() bool {
	return e.Retryable && e.Status != StatusResolved
}

// IsResolved reports whether the exception reached its terminal RESOLVED state.
func (e *Exception) IsResolved() bool {
	return e.Status == StatusResolved
}
