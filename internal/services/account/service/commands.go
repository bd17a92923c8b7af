package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	apperrors "github.com/louisbranch/ledger/internal/platform/errors"
	"github.com/louisbranch/ledger/internal/platform/id"
	"github.com/louisbranch/ledger/internal/platform/requestctx"
	"github.com/louisbranch/ledger/internal/services/account/domain/account"
	"github.com/louisbranch/ledger/internal/services/account/domain/command"
	"github.com/louisbranch/ledger/internal/services/account/domain/engine"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
	"github.com/louisbranch/ledger/internal/services/account/domain/sequence"
	"github.com/louisbranch/ledger/internal/services/account/observability"
	"github.com/louisbranch/ledger/internal/services/account/owner"
	"github.com/shopspring/decimal"
)

// Projector applies one journal event to the read model exactly once.
type Projector interface {
	Apply(ctx context.Context, evt event.Event) (bool, error)
}

// OutboxCompleter drops the outbox row of an event applied inline.
type OutboxCompleter interface {
	CompleteProjectionApplyOutbox(ctx context.Context, accountID string, seq uint64) error
}

// Result reports an accepted command.
type Result struct {
	AccountID  string
	EventTypes []event.Type
}

// Commands is the account write-side service.
type Commands struct {
	Engine     engine.Handler
	Locks      *engine.KeyedLocker
	IDs        *sequence.Generator
	Owners     owner.Lookup
	Projection Projector
	Outbox     OutboxCompleter
	Metrics    *observability.Metrics
}

// CreateAccount opens an account for ownerID in currency. The owner must be
// known to the customer service.
func (s *Commands) CreateAccount(ctx context.Context, ownerID, currency string) (Result, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return Result{}, apperrors.New(apperrors.CodeInvalidArgument, "owner id is required")
	}
	normalized, err := account.NormalizeCurrency(currency)
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeInvalidCurrency, err.Error(), err)
	}
	if s.Owners == nil {
		return Result{}, apperrors.New(apperrors.CodeInternal, "owner lookup is not configured")
	}
	if _, err := s.Owners.GetOwner(ctx, ownerID); err != nil {
		if !errors.Is(err, owner.ErrOwnerNotFound) {
			log.Printf("owner lookup %s: %v", ownerID, err)
		}
		return Result{}, apperrors.WrapWithMetadata(apperrors.CodeOwnerNotFound, "owner not found", map[string]string{"OwnerID": ownerID}, err)
	}
	if s.IDs == nil {
		return Result{}, apperrors.New(apperrors.CodeInternal, "id generator is not configured")
	}
	accountID, err := s.IDs.Next(ctx)
	if errors.Is(err, sequence.ErrCapacityExceeded) {
		return Result{}, apperrors.Wrap(apperrors.CodeCapacityExceeded, "daily account capacity exceeded", err)
	}
	if err != nil {
		return Result{}, apperrors.Wrap(apperrors.CodeInternal, "generate account id", err)
	}
	s.Metrics.IDIssued()

	return s.execute(ctx, accountID, account.CommandTypeCreate, account.CreatePayload{
		OwnerID:  ownerID,
		Currency: normalized,
	})
}

// UpdateStatus activates the account for ACTIVATED and suspends it for any
// other status.
func (s *Commands) UpdateStatus(ctx context.Context, accountID string, status account.Status) (Result, error) {
	status = account.Status(strings.ToUpper(strings.TrimSpace(string(status))))
	if status == "" {
		return Result{}, apperrors.New(apperrors.CodeInvalidArgument, "status is required")
	}
	if status == account.StatusActivated {
		return s.execute(ctx, accountID, account.CommandTypeActivate, nil)
	}
	return s.execute(ctx, accountID, account.CommandTypeSuspend, nil)
}

// Credit adds amount to the account balance.
func (s *Commands) Credit(ctx context.Context, accountID string, amount decimal.Decimal, description string) (Result, error) {
	return s.execute(ctx, accountID, account.CommandTypeCredit, account.AmountPayload{
		Amount:      amount,
		Description: strings.TrimSpace(description),
	})
}

// Debit withdraws amount from the account balance.
func (s *Commands) Debit(ctx context.Context, accountID string, amount decimal.Decimal, description string) (Result, error) {
	return s.execute(ctx, accountID, account.CommandTypeDebit, account.AmountPayload{
		Amount:      amount,
		Description: strings.TrimSpace(description),
	})
}

// Delete closes the account. Later commands are rejected.
func (s *Commands) Delete(ctx context.Context, accountID string) (Result, error) {
	return s.execute(ctx, accountID, account.CommandTypeDelete, nil)
}

func (s *Commands) execute(ctx context.Context, accountID string, cmdType command.Type, payload any) (result Result, err error) {
	start := time.Now()
	outcome := observability.OutcomeAccepted
	defer func() {
		s.Metrics.CommandHandled(string(cmdType), outcome, time.Since(start))
	}()

	cmd, err := s.buildCommand(ctx, accountID, cmdType, payload)
	if err != nil {
		outcome = observability.OutcomeRejected
		return Result{}, err
	}

	unlock, err := s.lock(ctx, cmd.AccountID)
	if err != nil {
		outcome = observability.OutcomeError
		return Result{}, apperrors.Wrap(apperrors.CodeInternal, "acquire account lock", err)
	}
	defer unlock()

	executed, err := s.Engine.Execute(ctx, cmd)
	if err != nil {
		outcome = observability.OutcomeError
		return Result{}, apperrors.Wrap(apperrors.CodeInternal, fmt.Sprintf("execute %s", cmd.Type), err)
	}
	if len(executed.Decision.Rejections) > 0 {
		outcome = observability.OutcomeRejected
		return Result{}, rejectionError(cmd.AccountID, executed.Decision.Rejections)
	}

	result = Result{AccountID: cmd.AccountID}
	for _, evt := range executed.Decision.Events {
		result.EventTypes = append(result.EventTypes, evt.Type)
	}
	if err := s.project(ctx, executed.Decision.Events); err != nil {
		outcome = observability.OutcomeError
		return result, err
	}
	return result, nil
}

func (s *Commands) buildCommand(ctx context.Context, accountID string, cmdType command.Type, payload any) (command.Command, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return command.Command{}, apperrors.New(apperrors.CodeInvalidArgument, "account id is required")
	}
	if s.Engine.Commands == nil {
		return command.Command{}, apperrors.New(apperrors.CodeInternal, "command registry is not configured")
	}
	requestID := requestctx.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = id.NewRequestID()
	}
	cmd := command.Command{
		AccountID: accountID,
		Type:      cmdType,
		ActorType: command.ActorTypeSystem,
		RequestID: requestID,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return command.Command{}, apperrors.Wrap(apperrors.CodeInternal, "encode command payload", err)
		}
		cmd.PayloadJSON = raw
	}
	validated, err := s.Engine.Commands.ValidateForDecision(cmd)
	if err != nil {
		return command.Command{}, apperrors.Wrap(apperrors.CodeInvalidArgument, err.Error(), err)
	}
	return validated, nil
}

func (s *Commands) lock(ctx context.Context, accountID string) (func(), error) {
	if s.Locks == nil {
		return func() {}, nil
	}
	return s.Locks.Lock(ctx, accountID)
}

// project applies freshly appended events in order. A terminal projection
// failure is returned to the caller; a retryable one is left to the outbox
// worker. Later events of the batch are never applied past a failure.
func (s *Commands) project(ctx context.Context, events []event.Event) error {
	if s.Projection == nil {
		return nil
	}
	for _, evt := range events {
		applied, err := s.Projection.Apply(ctx, evt)
		if err != nil {
			s.Metrics.ProjectionApplied(observability.ApplyInline, observability.OutcomeError)
			if engine.IsNonRetryable(err) {
				if apperrors.CodeOf(err) == apperrors.CodeUnknown {
					return apperrors.Wrap(apperrors.CodeInternal, fmt.Sprintf("project %s", evt.Type), err)
				}
				return err
			}
			log.Printf("inline projection %s/%d deferred to outbox: %v", evt.AccountID, evt.Seq, err)
			return nil
		}
		if applied {
			s.Metrics.ProjectionApplied(observability.ApplyInline, "applied")
		} else {
			s.Metrics.ProjectionApplied(observability.ApplyInline, "skipped")
		}
		if s.Outbox != nil {
			if err := s.Outbox.CompleteProjectionApplyOutbox(ctx, evt.AccountID, evt.Seq); err != nil {
				log.Printf("complete outbox row %s/%d: %v", evt.AccountID, evt.Seq, err)
			}
		}
	}
	return nil
}
