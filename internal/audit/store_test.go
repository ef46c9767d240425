package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivet-io/aivet/internal/guard"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRun(ctx, &RunRecord{
		ID: "run-1", SessionID: "sess-1", Identity: "alice", AITool: "Notion AI",
		State: "completed", SearchesUsed: 2, TokensUsed: 1200, DurationMS: 3400,
	}))
	require.NoError(t, s.RecordRun(ctx, &RunRecord{
		ID: "run-2", SessionID: "sess-2", Identity: "bob", AITool: "ChatGPT",
		State: "rejected", Reason: "InjectionPatternDetected",
	}))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]RunRecord{}
	for _, r := range runs {
		byID[r.ID] = r
	}
	assert.Equal(t, "completed", byID["run-1"].State)
	assert.Equal(t, 2, byID["run-1"].SearchesUsed)
	assert.Equal(t, "InjectionPatternDetected", byID["run-2"].Reason)
}

func TestStore_RecordAndListVerdicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordVerdict(ctx, "run-1", guard.Verdict{
		Stage: guard.StageInput, Outcome: guard.OutcomeSanitize,
	}))
	require.NoError(t, s.RecordVerdict(ctx, "run-1", guard.Verdict{
		Stage: guard.StageTool, Outcome: guard.OutcomeReject, Reason: guard.ReasonProhibitedTerm,
	}))

	verdicts, err := s.ListVerdicts(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, verdicts, 2)
	assert.Equal(t, "input", verdicts[0].Stage)
	assert.Equal(t, "reject", verdicts[1].Outcome)
	assert.Equal(t, guard.ReasonProhibitedTerm, verdicts[1].Reason)

	other, err := s.ListVerdicts(ctx, "run-other")
	require.NoError(t, err)
	assert.Empty(t, other)
}
