package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/legis-analyzer/internal/model"
)

func writeBillsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bills.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadBillsFile_FillsMissingFields(t *testing.T) {
	path := writeBillsFile(t, `[
		{"bill_number": "HB 1", "title": "First Bill"},
		{"id": "explicit-id", "bill_number": "HB 2", "title": "Second Bill", "updated_at": "2026-01-15T00:00:00Z"}
	]`)

	bills, err := loadBillsFile(path)
	require.NoError(t, err)
	require.Len(t, bills, 2)

	// Missing ID and timestamp are generated
	assert.NotEmpty(t, bills[0].ID)
	assert.False(t, bills[0].UpdatedAt.IsZero())

	// Provided values are kept
	assert.Equal(t, "explicit-id", bills[1].ID)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), bills[1].UpdatedAt)
}

func TestLoadBillsFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bills.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- bill_number: "HB 7"
  title: Broadband Expansion Act
  govt_type: state
`), 0644))

	bills, err := loadBillsFile(path)
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, "HB 7", bills[0].BillNumber)
	assert.Equal(t, "Broadband Expansion Act", bills[0].Title)
	assert.Equal(t, "state", bills[0].GovtType)
	assert.NotEmpty(t, bills[0].ID)
}

func TestLoadBillsFile_InvalidJSON(t *testing.T) {
	path := writeBillsFile(t, `{"not": "an array"}`)

	_, err := loadBillsFile(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "parse bills file")
}

func TestLoadBillsFile_MissingFile(t *testing.T) {
	_, err := loadBillsFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read bills file")
}

func TestBillRowValues_MatchesColumnOrder(t *testing.T) {
	now := time.Now().UTC()
	rows := billRowValues([]model.Bill{{
		ID:           "b-1",
		ExternalID:   "ext-1",
		BillNumber:   "SB 42",
		Title:        "Transit Funding",
		Description:  "Allocates transit funds",
		GovtType:     "state",
		GovtSource:   "legislature",
		Status:       "introduced",
		Text:         []byte("bill text"),
		TextIsBinary: false,
		UpdatedAt:    now,
	}})

	require.Len(t, rows, 1)
	require.Len(t, rows[0], len(billColumns))
	assert.Equal(t, "b-1", rows[0][0])
	assert.Equal(t, "ext-1", rows[0][1])
	assert.Equal(t, "SB 42", rows[0][2])
	assert.Equal(t, now, rows[0][len(rows[0])-1])
}
