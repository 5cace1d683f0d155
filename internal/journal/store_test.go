package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := RunModel{
		TraceID:       "trace-1",
		StartedAt:     time.Now().Add(-time.Minute),
		FinishedAt:    time.Now(),
		State:         "ALL_FULFILLED",
		Candidates:    2,
		Fulfilled:     2,
		Unfulfilled:   0,
		TotalInvested: "50.00",
		FinalCash:     "450.00",
	}
	outcomes := []OrderOutcomeModel{
		{LoanID: 101, Grade: "D", InvestedAmount: "25.00", Fulfilled: true},
		{LoanID: 102, Grade: "E", InvestedAmount: "25.00", Fulfilled: true},
	}
	require.NoError(t, s.RecordRun(ctx, run, outcomes))

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "trace-1", runs[0].TraceID)
	assert.Equal(t, "ALL_FULFILLED", runs[0].State)
	assert.Equal(t, "50.00", runs[0].TotalInvested)
}

func TestRecentRunsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, trace := range []string{"first", "second", "third"} {
		run := RunModel{
			TraceID:    trace,
			StartedAt:  time.Now().Add(time.Duration(i) * time.Minute),
			FinishedAt: time.Now().Add(time.Duration(i) * time.Minute),
			State:      "NO_CANDIDATES",
		}
		require.NoError(t, s.RecordRun(ctx, run, nil))
	}

	runs, err := s.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "third", runs[0].TraceID)
	assert.Equal(t, "second", runs[1].TraceID)
}

func TestRecordRunWithoutOutcomes(t *testing.T) {
	s := newTestStore(t)
	run := RunModel{TraceID: "empty", State: "CASH_DEPLETED"}
	assert.NoError(t, s.RecordRun(context.Background(), run, nil))
}
