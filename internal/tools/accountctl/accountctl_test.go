package accountctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/ledger/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/ledger/internal/services/account/domain/engine"
	"github.com/louisbranch/ledger/internal/services/account/domain/sequence"
	"github.com/louisbranch/ledger/internal/services/account/owner"
	"github.com/louisbranch/ledger/internal/services/account/projection"
	"github.com/louisbranch/ledger/internal/services/account/service"
	"github.com/louisbranch/ledger/internal/services/account/storage/integrity"
	storagesqlite "github.com/louisbranch/ledger/internal/services/account/storage/sqlite"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

type fakeInspector struct {
	summary    storagesqlite.ProjectionApplyOutboxSummary
	rows       []storagesqlite.ProjectionApplyOutboxEntry
	lastStatus string
	lastLimit  int
}

func (f *fakeInspector) GetProjectionApplyOutboxSummary(context.Context) (storagesqlite.ProjectionApplyOutboxSummary, error) {
	return f.summary, nil
}

func (f *fakeInspector) ListProjectionApplyOutboxRows(_ context.Context, status string, limit int) ([]storagesqlite.ProjectionApplyOutboxEntry, error) {
	f.lastStatus, f.lastLimit = status, limit
	return f.rows, nil
}

type fakeRequeuer struct {
	found     bool
	deadCount int
}

func (f *fakeRequeuer) RequeueProjectionApplyOutboxRow(context.Context, string, uint64, time.Time) (bool, error) {
	return f.found, nil
}

func (f *fakeRequeuer) RequeueProjectionApplyOutboxDeadRows(_ context.Context, limit int, _ time.Time) (int, error) {
	if f.deadCount > limit {
		return limit, nil
	}
	return f.deadCount, nil
}

type fakeRebuilder struct {
	results map[string]projection.RebuildResult
	fail    map[string]error
	resets  []bool
}

func (f *fakeRebuilder) Rebuild(_ context.Context, accountID string, reset bool) (projection.RebuildResult, error) {
	f.resets = append(f.resets, reset)
	if err := f.fail[accountID]; err != nil {
		return projection.RebuildResult{}, err
	}
	return f.results[accountID], nil
}

type fakeSnapshots struct {
	deleted []string
}

func (f *fakeSnapshots) DeleteState(_ context.Context, accountID string) error {
	f.deleted = append(f.deleted, accountID)
	return nil
}

type fakeVerifier struct {
	ids    []string
	counts map[string]uint64
	fail   map[string]error
}

func (f *fakeVerifier) ListAccountIDs(context.Context) ([]string, error) {
	return f.ids, nil
}

func (f *fakeVerifier) VerifyAccountEvents(_ context.Context, accountID string) (uint64, error) {
	return f.counts[accountID], f.fail[accountID]
}

type fakeCounter map[string]int64

func (f fakeCounter) Count(_ context.Context, day string) (int64, error) {
	return f[day], nil
}

type fakeMigrations []sqlitemigrate.Migration

func (f fakeMigrations) MigrationStatus(context.Context, string) ([]sqlitemigrate.Migration, error) {
	return f, nil
}

func TestRunOutboxReportText(t *testing.T) {
	inspector := &fakeInspector{
		summary: storagesqlite.ProjectionApplyOutboxSummary{
			PendingCount:           1,
			DeadCount:              1,
			OldestPendingAccountID: "2025010100000001",
			OldestPendingSeq:       3,
			OldestPendingAt:        testNow,
		},
		rows: []storagesqlite.ProjectionApplyOutboxEntry{
			{AccountID: "2025010100000001", Seq: 3, Status: "dead", AttemptCount: 8, NextAttemptAt: testNow, EventType: "account.credited", LastError: "account not activated"},
		},
	}
	var out bytes.Buffer
	if err := runOutboxReport(context.Background(), inspector, "dead", 5, false, &out); err != nil {
		t.Fatalf("report: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"Outbox summary: pending=1 processing=0 failed=0 dead=1",
		"Oldest pending/failed row: 2025010100000001/3 next_attempt_at=2025-01-01T08:00:00Z",
		"Rows (status=dead, limit=5):",
		"- 2025010100000001/3 status=dead attempts=8",
		"last_error=account not activated",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("report missing %q:\n%s", want, got)
		}
	}
	if inspector.lastStatus != "dead" || inspector.lastLimit != 5 {
		t.Fatalf("list args = %q/%d, want dead/5", inspector.lastStatus, inspector.lastLimit)
	}
}

func TestRunOutboxReportJSON(t *testing.T) {
	var out bytes.Buffer
	if err := runOutboxReport(context.Background(), &fakeInspector{}, "", 10, true, &out); err != nil {
		t.Fatalf("report: %v", err)
	}
	var report outboxReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Mode != "outbox" || report.Limit != 10 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRunOutboxReportRequiresLimit(t *testing.T) {
	if err := runOutboxReport(context.Background(), &fakeInspector{}, "", 0, false, &bytes.Buffer{}); err == nil {
		t.Fatal("expected limit error")
	}
}

func TestRunOutboxRequeue(t *testing.T) {
	var out bytes.Buffer
	if err := runOutboxRequeue(context.Background(), &fakeRequeuer{found: true}, "2025010100000001", 3, testNow, false, &out); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if got := out.String(); got != "Requeued outbox row: 2025010100000001/3\n" {
		t.Fatalf("output = %q", got)
	}
	if err := runOutboxRequeue(context.Background(), &fakeRequeuer{}, "2025010100000001", 3, testNow, false, &out); err == nil {
		t.Fatal("expected not found error")
	}
	if err := runOutboxRequeue(context.Background(), &fakeRequeuer{}, " ", 3, testNow, false, &out); err == nil {
		t.Fatal("expected account id error")
	}
}

func TestRunOutboxRequeueDeadRows(t *testing.T) {
	var out bytes.Buffer
	if err := runOutboxRequeueDeadRows(context.Background(), &fakeRequeuer{deadCount: 7}, 5, testNow, false, &out); err != nil {
		t.Fatalf("requeue dead: %v", err)
	}
	if got := out.String(); got != "Requeued dead outbox rows: 5 (limit=5)\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestRunReplay(t *testing.T) {
	r := &fakeRebuilder{results: map[string]projection.RebuildResult{
		"A": {AccountID: "A", LastSeq: 4, Applied: 4},
		"B": {AccountID: "B", LastSeq: 2, Applied: 1, Skipped: 1, Rejected: []uint64{2}},
	}}
	snapshots := &fakeSnapshots{}
	var out, errOut bytes.Buffer
	if err := runReplay(context.Background(), r, snapshots, []string{"A", "B"}, replayOptions{reset: true}, false, &out, &errOut); err != nil {
		t.Fatalf("replay: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Replayed A: last_seq=4 applied=4 skipped=0") {
		t.Fatalf("missing A line:\n%s", got)
	}
	if !strings.Contains(got, "rejected seqs: [2]") {
		t.Fatalf("missing rejected line:\n%s", got)
	}
	if len(snapshots.deleted) != 2 {
		t.Fatalf("deleted snapshots = %v, want two", snapshots.deleted)
	}
	for _, reset := range r.resets {
		if !reset {
			t.Fatal("expected reset to be forwarded")
		}
	}
}

func TestRunReplayStopsOnFailure(t *testing.T) {
	r := &fakeRebuilder{
		results: map[string]projection.RebuildResult{"B": {AccountID: "B"}},
		fail:    map[string]error{"A": errors.New("locked")},
	}
	var out, errOut bytes.Buffer
	if err := runReplay(context.Background(), r, nil, []string{"A", "B"}, replayOptions{}, false, &out, &errOut); err == nil {
		t.Fatal("expected failure")
	}
	if len(r.resets) != 1 {
		t.Fatalf("rebuild calls = %d, want 1", len(r.resets))
	}

	r.resets = nil
	err := runReplay(context.Background(), r, nil, []string{"A", "B"}, replayOptions{continueOnFail: true}, false, &out, &errOut)
	if err == nil {
		t.Fatal("expected joined failure")
	}
	if len(r.resets) != 2 {
		t.Fatalf("rebuild calls = %d, want 2", len(r.resets))
	}
}

func TestRunVerify(t *testing.T) {
	v := &fakeVerifier{
		ids:    []string{"A", "B"},
		counts: map[string]uint64{"A": 3, "B": 1},
		fail:   map[string]error{"B": errors.New("signature mismatch")},
	}
	var out bytes.Buffer
	err := runVerify(context.Background(), v, nil, false, &out)
	if err == nil || !strings.Contains(err.Error(), "1 of 2 accounts") {
		t.Fatalf("err = %v, want one failed account", err)
	}
	if !strings.Contains(out.String(), "ok   A events=3") || !strings.Contains(out.String(), "FAIL B") {
		t.Fatalf("output:\n%s", out.String())
	}

	out.Reset()
	if err := runVerify(context.Background(), v, []string{"A"}, true, &out); err != nil {
		t.Fatalf("verify A: %v", err)
	}
	var report verifyReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Verified["A"] != 3 {
		t.Fatalf("verified = %v, want A=3", report.Verified)
	}
}

func TestRunCounter(t *testing.T) {
	var out bytes.Buffer
	if err := runCounter(context.Background(), fakeCounter{"20250101": 2}, "sqlite", "20250101", false, &out); err != nil {
		t.Fatalf("counter: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "issued=2 remaining=99999997") {
		t.Fatalf("output:\n%s", got)
	}
	if !strings.Contains(got, "Last issued id: 2025010100000002") {
		t.Fatalf("output:\n%s", got)
	}
	if err := runCounter(context.Background(), fakeCounter{}, "sqlite", "2025-01-01", false, &out); err == nil {
		t.Fatal("expected day format error")
	}
}

func TestRunMigrationStatus(t *testing.T) {
	stores := map[string]migrationReporter{
		"events":      fakeMigrations{{Name: "001_events.sql", Applied: true, AppliedAt: testNow}},
		"projections": fakeMigrations{{Name: "001_projections.sql"}},
	}
	var out bytes.Buffer
	if err := runMigrationStatus(context.Background(), stores, false, &out); err != nil {
		t.Fatalf("status: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "[x] 001_events.sql applied_at=2025-01-01T08:00:00Z") {
		t.Fatalf("output:\n%s", got)
	}
	if !strings.Contains(got, "[ ] 001_projections.sql") {
		t.Fatalf("output:\n%s", got)
	}
}

func TestOutboxRequeueFlagValidation(t *testing.T) {
	t.Setenv("ACCOUNT_EVENT_HMAC_KEY", "cli-test")
	dir := t.TempDir()
	args := []string{"--events-db", filepath.Join(dir, "events.db"), "outbox", "requeue", "--dead"}
	err := Execute(context.Background(), args, &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "--limit") {
		t.Fatalf("err = %v, want limit error", err)
	}
}

func TestReplayCommandRebuildsReadModel(t *testing.T) {
	t.Setenv("ACCOUNT_EVENT_HMAC_KEY", "cli-test")
	t.Setenv("ACCOUNT_EVENT_HMAC_KEY_ID", "")
	t.Setenv("ACCOUNT_EVENT_HMAC_KEYS", "")
	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "events.db")
	projectionsPath := filepath.Join(dir, "projections.db")
	accountID := seedAccount(t, eventsPath, projectionsPath)

	var out, errOut bytes.Buffer
	args := []string{
		"--events-db", eventsPath,
		"--projections-db", projectionsPath,
		"--snapshots-db", filepath.Join(dir, "snapshots.db"),
		"replay", "--reset", accountID,
	}
	if err := Execute(context.Background(), args, &out, &errOut); err != nil {
		t.Fatalf("replay: %v (%s)", err, errOut.String())
	}
	want := "Replayed " + accountID + ": last_seq=3 applied=3 skipped=0"
	if !strings.Contains(out.String(), want) {
		t.Fatalf("output = %q, want %q", out.String(), want)
	}

	out.Reset()
	args = []string{"--events-db", eventsPath, "verify"}
	if err := Execute(context.Background(), args, &out, &errOut); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(out.String(), "ok   "+accountID+" events=3") {
		t.Fatalf("verify output = %q", out.String())
	}

	out.Reset()
	args = []string{"--events-db", eventsPath, "counter", "--day", "20250101"}
	if err := Execute(context.Background(), args, &out, &errOut); err != nil {
		t.Fatalf("counter: %v", err)
	}
	if !strings.Contains(out.String(), "issued=1") {
		t.Fatalf("counter output = %q", out.String())
	}
}

// seedAccount opens an account and credits it through the command service,
// leaving three events in the journal.
func seedAccount(t *testing.T, eventsPath, projectionsPath string) string {
	t.Helper()
	ring, err := integrity.KeyringFromSpec("", "cli-test", "")
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	_, registry, err := service.Registries()
	if err != nil {
		t.Fatalf("registries: %v", err)
	}
	events, err := storagesqlite.OpenEvents(eventsPath, ring, registry)
	if err != nil {
		t.Fatalf("open events: %v", err)
	}
	defer events.Close()
	projections, err := storagesqlite.OpenProjections(projectionsPath)
	if err != nil {
		t.Fatalf("open projections: %v", err)
	}
	defer projections.Close()

	now := func() time.Time { return testNow }
	handler, err := service.NewHandler(events, nil, now)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	commands := &service.Commands{
		Engine:     handler,
		Locks:      engine.NewKeyedLocker(),
		IDs:        &sequence.Generator{Counter: events, Now: now},
		Owners:     owner.NewStatic("C1"),
		Projection: projection.ExactlyOnce{Store: projections},
		Outbox:     events,
	}
	ctx := context.Background()
	created, err := commands.CreateAccount(ctx, "C1", "TND")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := commands.Credit(ctx, created.AccountID, decimal.NewFromInt(100), "salary"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	return created.AccountID
}
