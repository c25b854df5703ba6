package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/biopro/interface-exception-collector/internal/alerting"
	"github.com/biopro/interface-exception-collector/internal/domain/exception"
	"github.com/biopro/interface-exception-collector/internal/events"
	"github.com/biopro/interface-exception-collector/internal/sourceclient"
	"github.com/rs/zerolog"
)

// attemptOutcome is the terminal result of one dispatch.
type attemptOutcome struct {
	success      bool
	message      string
	responseCode *int
	errorDetails string
}

// ExecuteAttemptUseCase runs one accepted retry attempt against its
// source service. Whatever happens on the dispatch path — client errors,
// open circuit, timeouts, even storage hiccups mid-flight — the attempt
// always ends terminal; nothing propagates back past the orchestrator
// boundary.
type ExecuteAttemptUseCase struct {
	exceptionRepo exception.Repository
	attemptRepo   exception.AttemptRepository
	txManager     TransactionManager
	registry      *sourceclient.Registry
	publisher     events.Publisher
	alertEngine   *alerting.Engine
	// attemptTimeout bounds the whole dispatch, over and above the
	// client-level per-request timeout.
	attemptTimeout time.Duration
	// failureWindow is the rolling window for repeated-failure escalation.
	failureWindow time.Duration
	logger        zerolog.Logger
}

// NewExecuteAttemptUseCase creates a new ExecuteAttemptUseCase.
func NewExecuteAttemptUseCase(
	exceptionRepo exception.Repository,
	attemptRepo exception.AttemptRepository,
	txManager TransactionManager,
	registry *sourceclient.Registry,
	publisher events.Publisher,
	alertEngine *alerting.Engine,
	attemptTimeout time.Duration,
	failureWindow time.Duration,
	logger zerolog.Logger,
) *ExecuteAttemptUseCase {
	if attemptTimeout <= 0 {
		attemptTimeout = 30 * time.Second
	}
	if failureWindow <= 0 {
		failureWindow = time.Hour
	}
	return &ExecuteAttemptUseCase{
		exceptionRepo:  exceptionRepo,
		attemptRepo:    attemptRepo,
		txManager:      txManager,
		registry:       registry,
		publisher:      publisher,
		alertEngine:    alertEngine,
		attemptTimeout: attemptTimeout,
		failureWindow:  failureWindow,
		logger:         logger.With().Str("component", "execute_attempt").Logger(),
	}
}

// Execute runs one attempt identified by transaction ID and attempt
// number. causationID is the eventId of the RetryAttemptStarted event.
func (uc *ExecuteAttemptUseCase) Execute(ctx context.Context, transactionID string, attemptNumber int, causationID string) error {
	ex, err := uc.exceptionRepo.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("load exception: %w", err)
	}
	attempt, err := uc.attemptRepo.Get(ctx, ex.ID, attemptNumber)
	if err != nil {
		return fmt.Errorf("load attempt: %w", err)
	}
	// Cancelled or already-completed attempts are skipped, not re-run.
	if attempt.Status != exception.AttemptPending {
		uc.logger.Debug().
			Str("transaction_id", transactionID).
			Int("attempt_number", attemptNumber).
			Str("status", string(attempt.Status)).
			Msg("Attempt no longer pending, skipping dispatch")
		return nil
	}

	if err := uc.markDispatched(ctx, ex, attempt, causationID); err != nil {
		return fmt.Errorf("mark attempt dispatched: %w", err)
	}

	outcome := uc.dispatch(ctx, ex)
	return uc.finalize(ctx, ex, attempt, outcome, causationID)
}

// markDispatched moves the attempt to RETRYING and the exception with it.
func (uc *ExecuteAttemptUseCase) markDispatched(ctx context.Context, ex *exception.Exception, attempt *exception.RetryAttempt, causationID string) error {
	return uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := attempt.MarkRetrying(); err != nil {
			return err
		}
		if err := uc.attemptRepo.Update(txCtx, attempt); err != nil {
			return err
		}
		from := ex.Status
		if err := ex.MarkRetrying(); err != nil {
			return err
		}
		if err := uc.exceptionRepo.Update(txCtx, ex); err != nil {
			return err
		}
		uc.publishStatusChanged(txCtx, ex, from, attempt.InitiatedBy, causationID)
		return nil
	})
}

// dispatch calls the source service. All failure modes come back as an
// outcome, never as an error.
func (uc *ExecuteAttemptUseCase) dispatch(ctx context.Context, ex *exception.Exception) attemptOutcome {
	ctx, cancel := context.WithTimeout(ctx, uc.attemptTimeout)
	defer cancel()

	client, breaker, err := uc.registry.Get(ex.InterfaceType)
	if err != nil {
		return attemptOutcome{errorDetails: err.Error(), message: "no source client available"}
	}

	payloadRes, err := client.GetOriginalPayload(ctx, ex)
	if err != nil {
		return attemptOutcome{errorDetails: err.Error(), message: "payload retrieval aborted"}
	}
	if !payloadRes.Retrieved {
		return attemptOutcome{errorDetails: payloadRes.ErrorMessage, message: "original payload could not be retrieved"}
	}

	var submitRes *sourceclient.SubmitResult
	_, cbErr := breaker.Execute(func() (*sourceclient.SubmitResult, error) {
		res, err := client.SubmitRetry(ctx, ex, payloadRes.Payload)
		if err != nil {
			return nil, err
		}
		submitRes = res
		if !res.Success {
			// Surface the failure to the breaker so repeated source
			// outages trip it.
			return res, fmt.Errorf("source rejected retry: %s", res.ErrorMessage)
		}
		return res, nil
	})

	if submitRes == nil {
		msg := "retry submission failed"
		details := "no response from source service"
		if cbErr != nil {
			details = cbErr.Error()
		}
		return attemptOutcome{message: msg, errorDetails: details}
	}

	code := submitRes.StatusCode
	outcome := attemptOutcome{responseCode: &code}
	if submitRes.Success && cbErr == nil {
		outcome.success = true
		outcome.message = "retry submitted successfully"
	} else {
		outcome.message = "source service rejected the retry"
		outcome.errorDetails = submitRes.ErrorMessage
		if outcome.errorDetails == "" && cbErr != nil {
			outcome.errorDetails = cbErr.Error()
		}
	}
	return outcome
}

// finalize records the terminal outcome, advances the exception state
// machine and publishes the completion chain.
func (uc *ExecuteAttemptUseCase) finalize(ctx context.Context, ex *exception.Exception, attempt *exception.RetryAttempt, outcome attemptOutcome, causationID string) error {
	err := uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := attempt.Complete(outcome.success, outcome.message, outcome.responseCode, outcome.errorDetails); err != nil {
			return err
		}
		if err := uc.attemptRepo.Update(txCtx, attempt); err != nil {
			return err
		}

		ex.IncrementRetry()
		from := ex.Status

		if outcome.success {
			if err := ex.Resolve(attempt.InitiatedBy, exception.ResolutionRetrySuccess, ""); err != nil {
				return err
			}
		} else if ex.RetriesExhausted() {
			if err := ex.MarkFailed(); err != nil {
				return err
			}
		} else {
			if err := ex.TransitionTo(exception.StatusAcknowledged); err != nil {
				return err
			}
		}
		if err := uc.exceptionRepo.Update(txCtx, ex); err != nil {
			return err
		}

		completedEnv, err := events.NewEnvelope(events.TypeRetryAttemptCompleted, ex.TransactionID, causationID, events.RetryAttemptCompleted{
			ExceptionID:   ex.ID.String(),
			TransactionID: ex.TransactionID,
			AttemptNumber: attempt.AttemptNumber,
			Status:        string(attempt.Status),
			Success:       attempt.ResultSuccess,
			Message:       deref(attempt.ResultMessage),
			ResponseCode:  attempt.ResultResponseCode,
			ErrorDetails:  deref(attempt.ResultErrorDetails),
			CompletedAt:   attempt.CompletedAt,
		})
		if err != nil {
			return err
		}
		_ = uc.publisher.Publish(txCtx, ex.ID, completedEnv)

		if outcome.success {
			resolvedEnv, err := events.NewEnvelope(events.TypeExceptionResolved, ex.TransactionID, completedEnv.EventID.String(), events.ExceptionResolved{
				ExceptionID:      ex.ID.String(),
				TransactionID:    ex.TransactionID,
				ResolvedBy:       attempt.InitiatedBy,
				ResolvedAt:       *ex.ResolvedAt,
				ResolutionMethod: string(exception.ResolutionRetrySuccess),
				TotalAttempts:    ex.RetryCount,
			})
			if err != nil {
				return err
			}
			_ = uc.publisher.Publish(txCtx, ex.ID, resolvedEnv)
		} else {
			uc.publishStatusChanged(txCtx, ex, from, attempt.InitiatedBy, completedEnv.EventID.String())
			uc.escalateOnRepeatedFailure(txCtx, ex, completedEnv.EventID.String())
		}
		return nil
	})
	if err != nil {
		// The attempt must never be left non-terminal: fall back to a
		// direct FAILED update outside the failed transaction.
		uc.logger.Error().Err(err).
			Str("transaction_id", ex.TransactionID).
			Int("attempt_number", attempt.AttemptNumber).
			Msg("Failed to finalize attempt, forcing terminal failure")
		uc.forceFail(ctx, attempt, err)
	}
	return nil
}

func (uc *ExecuteAttemptUseCase) escalateOnRepeatedFailure(ctx context.Context, ex *exception.Exception, causationID string) {
	since := time.Now().Add(-uc.failureWindow)
	recentFailures, err := uc.attemptRepo.CountFailedSince(ctx, ex.ID, since)
	if err != nil {
		uc.logger.Error().Err(err).Str("transaction_id", ex.TransactionID).Msg("Failed to count recent failures")
		return
	}
	alert := uc.alertEngine.EvaluateFailure(ex, recentFailures)
	if alert == nil {
		return
	}

	if err := ex.Escalate(); err == nil {
		if err := uc.exceptionRepo.Update(ctx, ex); err != nil {
			uc.logger.Error().Err(err).Str("transaction_id", ex.TransactionID).Msg("Failed to persist escalation")
		}
	}

	env, err := events.NewEnvelope(events.TypeCriticalAlert, ex.TransactionID, causationID, events.CriticalExceptionAlert{
		ExceptionID:             ex.ID.String(),
		TransactionID:           ex.TransactionID,
		InterfaceType:           string(ex.InterfaceType),
		AlertLevel:              string(alert.Level),
		AlertReason:             alert.Reason,
		EscalationTeam:          string(alert.EscalationTeam),
		RequiresImmediateAction: alert.RequiresImmediateAction,
		ExceptionReason:         ex.ExceptionReason,
	})
	if err != nil {
		uc.logger.Error().Err(err).Str("transaction_id", ex.TransactionID).Msg("Failed to build alert event")
		return
	}
	_ = uc.publisher.Publish(ctx, ex.ID, env)
}

// forceFail is the last-resort terminal write when finalize's transaction
// fails. The rollback discarded any in-transaction attempt update, so the
// durable row is still RETRYING even when the in-memory attempt already
// completed; the update must run unconditionally or the row stays active
// forever and blocks every future retry of the transaction.
func (uc *ExecuteAttemptUseCase) forceFail(ctx context.Context, attempt *exception.RetryAttempt, cause error) {
	if !attempt.Status.IsTerminal() {
		_ = attempt.Complete(false, "attempt finalization failed", nil, cause.Error())
	}
	if err := uc.attemptRepo.Update(ctx, attempt); err != nil {
		uc.logger.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Failed to force-fail attempt")
	}
}

func (uc *ExecuteAttemptUseCase) publishStatusChanged(ctx context.Context, ex *exception.Exception, from exception.Status, by, causationID string) {
	if from == ex.Status {
		return
	}
	env, err := events.NewEnvelope(events.TypeExceptionStatusChanged, ex.TransactionID, causationID, events.ExceptionStatusChanged{
		ExceptionID:   ex.ID.String(),
		TransactionID: ex.TransactionID,
		FromStatus:    string(from),
		ToStatus:      string(ex.Status),
		ChangedBy:     by,
	})
	if err != nil {
		uc.logger.Error().Err(err).Str("transaction_id", ex.TransactionID).Msg("Failed to build status-changed event")
		return
	}
	_ = uc.publisher.Publish(ctx, ex.ID, env)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
