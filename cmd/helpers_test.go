package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/legis-analyzer/internal/analysis"
	"github.com/sells-group/legis-analyzer/internal/model"
	"github.com/sells-group/legis-analyzer/internal/store"
	"github.com/sells-group/legis-analyzer/pkg/anthropic"
)

// stubModel is a canned anthropic.Client for command-level tests.
type stubModel struct {
	text  string
	err   error
	calls int
}

func (s *stubModel) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &anthropic.MessageResponse{
		Content:    []anthropic.ContentBlock{{Type: "text", Text: s.text}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

const stubAnalysisJSON = `{
	"summary": "Establishes new water quality reporting requirements.",
	"key_points": [{"point": "Quarterly reporting mandated", "impact_type": "negative"}],
	"impact_summary": {
		"primary_category": "local_gov",
		"impact_level": "moderate",
		"relevance_to_region": "high"
	}
}`

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "cmd_test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestAnalyzer(t *testing.T, st store.Store, client anthropic.Client) *analysis.Analyzer {
	t.Helper()
	structured := analysis.NewStructuredClient(client, analysis.StructuredClientConfig{
		Model:      "claude-sonnet-4-5-20250929",
		MaxRetries: 1,
	})
	return analysis.New(st, structured, analysis.Config{
		Model:    "claude-sonnet-4-5-20250929",
		CacheTTL: time.Minute,
	})
}

func seedBill(t *testing.T, st store.Store, id string) {
	t.Helper()
	require.NoError(t, st.UpsertBill(context.Background(), model.Bill{
		ID:         id,
		BillNumber: "HB 1001",
		Title:      "Water Quality Reporting Act",
		Text:       []byte("A bill establishing quarterly water quality reporting for municipal utilities."),
		UpdatedAt:  time.Now().UTC(),
	}))
}
