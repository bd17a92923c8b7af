package accountctl

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/louisbranch/ledger/internal/services/account/storage"
)

type fakeJournalHead map[string]uint64

func (f fakeJournalHead) ListAccountIDs(context.Context) ([]string, error) {
	return []string{"A", "B", "C"}, nil
}

func (f fakeJournalHead) LatestSeq(_ context.Context, accountID string) (uint64, error) {
	return f[accountID], nil
}

type fakeWatermarks []storage.ProjectionWatermark

func (f fakeWatermarks) ListProjectionWatermarks(context.Context) ([]storage.ProjectionWatermark, error) {
	return f, nil
}

func TestRunLag(t *testing.T) {
	journal := fakeJournalHead{"A": 3, "B": 5, "C": 2}
	marks := fakeWatermarks{
		{AccountID: "A", AppliedSeq: 3},
		{AccountID: "B", AppliedSeq: 4},
	}

	var out bytes.Buffer
	if err := runLag(context.Background(), journal, marks, false, false, &out); err != nil {
		t.Fatalf("lag: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		"A journal=3 applied=3 lag=0",
		"B journal=5 applied=4 lag=1",
		"C journal=2 applied=0 lag=2",
		"2 of 3 accounts behind",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}

	out.Reset()
	if err := runLag(context.Background(), journal, marks, true, true, &out); err != nil {
		t.Fatalf("lag behind: %v", err)
	}
	var report lagReport
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.Accounts) != 2 || report.Behind != 2 {
		t.Fatalf("report = %+v, want two lagging accounts", report)
	}
	if report.Accounts[0].AccountID != "B" {
		t.Fatalf("first account = %q, want B", report.Accounts[0].AccountID)
	}
}

func TestRunLagRequiresStores(t *testing.T) {
	if err := runLag(context.Background(), nil, fakeWatermarks{}, false, false, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for missing journal")
	}
}
