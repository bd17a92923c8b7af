package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/ledger/internal/services/account/domain/account"
	"github.com/louisbranch/ledger/internal/services/account/domain/aggregate"
	"github.com/louisbranch/ledger/internal/services/account/domain/command"
	"github.com/louisbranch/ledger/internal/services/account/domain/event"
	"github.com/louisbranch/ledger/internal/services/account/domain/replay"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)

func newHandler(t *testing.T, journal *fakeJournal, snapshots StateSnapshotStore) Handler {
	t.Helper()
	commands := command.NewRegistry()
	if err := account.RegisterCommands(commands); err != nil {
		t.Fatalf("register commands: %v", err)
	}
	events := event.NewRegistry()
	if err := account.RegisterEvents(events); err != nil {
		t.Fatalf("register events: %v", err)
	}
	folder := &aggregate.Folder{}
	return Handler{
		Commands:  commands,
		Events:    events,
		Journal:   journal,
		Snapshots: snapshots,
		StateLoader: ReplayStateLoader{
			Events:       journal,
			Snapshots:    snapshots,
			Folder:       folder,
			StateFactory: aggregate.NewState,
		},
		Decider: aggregate.Decider{},
		Folder:  folder,
		Now:     func() time.Time { return fixedNow },
	}
}

func createCmd(t *testing.T, accountID string) command.Command {
	t.Helper()
	payload, err := json.Marshal(account.CreatePayload{OwnerID: "C1", Currency: "tnd"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return command.Command{AccountID: accountID, Type: account.CommandTypeCreate, PayloadJSON: payload}
}

func amountCmd(t *testing.T, cmdType command.Type, accountID, amount string) command.Command {
	t.Helper()
	payload, err := json.Marshal(account.AmountPayload{Amount: decimal.RequireFromString(amount)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return command.Command{AccountID: accountID, Type: cmdType, PayloadJSON: payload}
}

func stateOf(t *testing.T, result Result) account.State {
	t.Helper()
	state, err := aggregate.AssertState[account.State](result.State)
	if err != nil {
		t.Fatalf("assert state: %v", err)
	}
	return state
}

func TestExecuteCreateAppendsCreatedAndActivated(t *testing.T) {
	journal := newFakeJournal()
	h := newHandler(t, journal, nil)

	result, err := h.Execute(context.Background(), createCmd(t, "2026021400000001"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Decision.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(result.Decision.Events))
	}
	if got := result.Decision.Events[1].Seq; got != 2 {
		t.Fatalf("second seq = %d, want 2", got)
	}
	state := stateOf(t, result)
	if state.Status != account.StatusActivated {
		t.Fatalf("status = %s, want %s", state.Status, account.StatusActivated)
	}
	if state.Currency != "TND" {
		t.Fatalf("currency = %s, want TND", state.Currency)
	}
	if journal.appends != 1 {
		t.Fatalf("appends = %d, want 1 atomic batch", journal.appends)
	}
}

func TestExecuteReplaysHistoryBeforeDeciding(t *testing.T) {
	journal := newFakeJournal()
	h := newHandler(t, journal, nil)
	ctx := context.Background()
	id := "2026021400000001"

	if _, err := h.Execute(ctx, createCmd(t, id)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.Execute(ctx, amountCmd(t, account.CommandTypeCredit, id, "100")); err != nil {
		t.Fatalf("credit: %v", err)
	}
	result, err := h.Execute(ctx, amountCmd(t, account.CommandTypeDebit, id, "30"))
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	state := stateOf(t, result)
	if !state.Balance.Equal(decimal.RequireFromString("70")) {
		t.Fatalf("balance = %s, want 70", state.Balance)
	}
}

func TestExecuteRejectionDoesNotAppend(t *testing.T) {
	journal := newFakeJournal()
	h := newHandler(t, journal, nil)
	ctx := context.Background()
	id := "2026021400000001"

	if _, err := h.Execute(ctx, createCmd(t, id)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.Execute(ctx, amountCmd(t, account.CommandTypeCredit, id, "10")); err != nil {
		t.Fatalf("credit: %v", err)
	}
	result, err := h.Execute(ctx, amountCmd(t, account.CommandTypeDebit, id, "50"))
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if len(result.Decision.Rejections) != 1 {
		t.Fatalf("rejections = %d, want 1", len(result.Decision.Rejections))
	}
	if got := result.Decision.Rejections[0].Code; got != account.RejectionCodeInsufficientBalance {
		t.Fatalf("code = %s, want %s", got, account.RejectionCodeInsufficientBalance)
	}
	if got, _ := journal.LatestSeq(ctx, id); got != 3 {
		t.Fatalf("latest seq = %d, want 3", got)
	}
}

func TestExecuteRejectsMissingAccount(t *testing.T) {
	h := newHandler(t, newFakeJournal(), nil)
	result, err := h.Execute(context.Background(), amountCmd(t, account.CommandTypeCredit, "2026021400000009", "10"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Decision.Rejections) != 1 || result.Decision.Rejections[0].Code != account.RejectionCodeAccountNotFound {
		t.Fatalf("rejections = %+v, want account not found", result.Decision.Rejections)
	}
}

func TestExecuteValidationError(t *testing.T) {
	h := newHandler(t, newFakeJournal(), nil)
	_, err := h.Execute(context.Background(), command.Command{AccountID: "x", Type: "account.unknown"})
	if !errors.Is(err, command.ErrTypeUnknown) {
		t.Fatalf("err = %v, want %v", err, command.ErrTypeUnknown)
	}
}

func TestExecuteAppendErrorIsRetryable(t *testing.T) {
	journal := newFakeJournal()
	journal.appendErr = errors.New("disk full")
	h := newHandler(t, journal, nil)
	_, err := h.Execute(context.Background(), createCmd(t, "2026021400000001"))
	if err == nil {
		t.Fatal("expected error")
	}
	if IsNonRetryable(err) {
		t.Fatal("append failure must stay retryable")
	}
}

func TestExecuteFoldErrorAfterAppendIsNonRetryable(t *testing.T) {
	journal := newFakeJournal()
	h := newHandler(t, journal, nil)
	h.Folder = replay.FolderFunc(func(any, event.Event) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := h.Execute(context.Background(), createCmd(t, "2026021400000001"))
	if !IsNonRetryable(err) {
		t.Fatalf("err = %v, want non-retryable", err)
	}
}

func TestExecuteSavesSnapshotAtLastSeq(t *testing.T) {
	journal := newFakeJournal()
	snapshots := newFakeSnapshots()
	h := newHandler(t, journal, snapshots)
	// The fake reports a plain error for missing snapshots; map it to the
	// replay sentinel the loader expects.
	h.StateLoader = ReplayStateLoader{
		Events:       journal,
		Snapshots:    notFoundAdapter{snapshots},
		Folder:       h.Folder,
		StateFactory: aggregate.NewState,
	}
	id := "2026021400000001"
	if _, err := h.Execute(context.Background(), createCmd(t, id)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := snapshots.seqs[id]; got != 2 {
		t.Fatalf("snapshot seq = %d, want 2", got)
	}
}

func TestExecuteSnapshotFailureDoesNotFailCommand(t *testing.T) {
	journal := newFakeJournal()
	snapshots := newFakeSnapshots()
	snapshots.saveErr = errors.New("bolt closed")
	h := newHandler(t, journal, notFoundAdapter{snapshots})
	if _, err := h.Execute(context.Background(), createCmd(t, "2026021400000001")); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func TestExecuteRequiresDependencies(t *testing.T) {
	if _, err := (Handler{}).Execute(context.Background(), command.Command{}); !errors.Is(err, ErrCommandRegistryRequired) {
		t.Fatalf("err = %v, want %v", err, ErrCommandRegistryRequired)
	}
	if _, err := (Handler{Commands: command.NewRegistry()}).Execute(context.Background(), command.Command{}); !errors.Is(err, ErrDeciderRequired) {
		t.Fatalf("err = %v, want %v", err, ErrDeciderRequired)
	}
}

type notFoundAdapter struct {
	inner *fakeSnapshots
}

func (a notFoundAdapter) GetState(ctx context.Context, accountID string) (any, uint64, error) {
	state, seq, err := a.inner.GetState(ctx, accountID)
	if errors.Is(err, errNoSnapshot) {
		return nil, 0, replay.ErrCheckpointNotFound
	}
	return state, seq, err
}

func (a notFoundAdapter) SaveState(ctx context.Context, accountID string, lastSeq uint64, state any) error {
	return a.inner.SaveState(ctx, accountID, lastSeq, state)
}
