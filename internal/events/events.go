package events

import "time"

// --- Outbound lifecycle payloads ---

// ExceptionCaptured is published when an inbound failure event produces a
// new exception record.
type ExceptionCaptured struct {
	ExceptionID     string `json:"exceptionId"`
	TransactionID   string `json:"transactionId"`
	InterfaceType   string `json:"interfaceType"`
	Operation       string `json:"operation"`
	ExceptionReason string `json:"exceptionReason"`
	Category        string `json:"category"`
	Severity        string `json:"severity"`
	Retryable       bool   `json:"retryable"`
	CustomerID      string `json:"customerId,omitempty"`
	LocationCode    string `json:"locationCode,omitempty"`
}

// ExceptionResolved is published when an exception reaches RESOLVED.
type ExceptionResolved struct {
	ExceptionID      string    `json:"exceptionId"`
	TransactionID    string    `json:"transactionId"`
	ResolvedBy       string    `json:"resolvedBy"`
	ResolvedAt       time.Time `json:"resolvedAt"`
	ResolutionMethod string    `json:"resolutionMethod"`
	ResolutionNotes  string    `json:"resolutionNotes,omitempty"`
	TotalAttempts    int       `json:"totalAttempts"`
}

// ExceptionStatusChanged is published on every non-terminal status move.
type ExceptionStatusChanged struct {
	ExceptionID   string `json:"exceptionId"`
	TransactionID string `json:"transactionId"`
	FromStatus    string `json:"fromStatus"`
	ToStatus      string `json:"toStatus"`
	ChangedBy     string `json:"changedBy,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// RetryAttemptStarted is published when a PENDING attempt is accepted.
type RetryAttemptStarted struct {
	ExceptionID   string    `json:"exceptionId"`
	TransactionID string    `json:"transactionId"`
	AttemptNumber int       `json:"attemptNumber"`
	InitiatedBy   string    `json:"initiatedBy"`
	InitiatedAt   time.Time `json:"initiatedAt"`
	Reason        string    `json:"reason,omitempty"`
	Priority      string    `json:"priority,omitempty"`
}

// RetryAttemptCompleted is published when an attempt reaches a terminal state.
type RetryAttemptCompleted struct {
	ExceptionID   string     `json:"exceptionId"`
	TransactionID string     `json:"transactionId"`
	AttemptNumber int        `json:"attemptNumber"`
	Status        string     `json:"status"`
	Success       bool       `json:"success"`
	Message       string     `json:"message,omitempty"`
	ResponseCode  *int       `json:"responseCode,omitempty"`
	ErrorDetails  string     `json:"errorDetails,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
}

// CriticalExceptionAlert is published by the escalation engine.
type CriticalExceptionAlert struct {
	ExceptionID             string `json:"exceptionId"`
	TransactionID           string `json:"transactionId"`
	InterfaceType           string `json:"interfaceType"`
	AlertLevel              string `json:"alertLevel"`
	AlertReason             string `json:"alertReason"`
	EscalationTeam          string `json:"escalationTeam"`
	RequiresImmediateAction bool   `json:"requiresImmediateAction"`
	ExceptionReason         string `json:"exceptionReason"`
	CustomerImpact          string `json:"customerImpact,omitempty"`
}

// --- Inbound failure payloads ---

// OrderRejected is the payload of an OrderRejectedEvent.
type OrderRejected struct {
	TransactionID  string `json:"transactionId"`
	ExternalID     string `json:"externalId"`
	OrderID        string `json:"orderId"`
	Operation      string `json:"operation"`
	RejectedReason string `json:"rejectedReason"`
	CustomerID     string `json:"customerId"`
	LocationCode   string `json:"locationCode"`
}

// OrderCancelled is the payload of an OrderCancelledEvent.
type OrderCancelled struct {
	TransactionID string `json:"transactionId"`
	ExternalID    string `json:"externalId"`
	OrderID       string `json:"orderId"`
	CancelReason  string `json:"cancelReason"`
	CancelledBy   string `json:"cancelledBy"`
	CustomerID    string `json:"customerId"`
}

// CollectionRejected is the payload of a CollectionRejectedEvent.
type CollectionRejected struct {
	TransactionID  string `json:"transactionId"`
	CollectionID   string `json:"collectionId"`
	Operation      string `json:"operation"`
	RejectedReason string `json:"rejectedReason"`
	DonorID        string `json:"donorId"`
	LocationCode   string `json:"locationCode"`
}

// DistributionFailed is the payload of a DistributionFailedEvent.
type DistributionFailed struct {
	TransactionID  string `json:"transactionId"`
	DistributionID string `json:"distributionId"`
	Operation      string `json:"operation"`
	FailureReason  string `json:"failureReason"`
	CustomerID     string `json:"customerId"`
	DestinationLocation string `json:"destinationLocation"`
}

// ValidationError is the payload of a ValidationErrorEvent.
type ValidationError struct {
	TransactionID    string   `json:"transactionId"`
	InterfaceType    string   `json:"interfaceType"`
	Operation        string   `json:"operation"`
	ValidationErrors []string `json:"validationErrors"`
	CustomerID       string   `json:"customerId"`
}
