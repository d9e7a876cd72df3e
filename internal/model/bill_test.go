package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBillAnalysisInput(t *testing.T) {
	t.Parallel()

	t.Run("uses text when present", func(t *testing.T) {
		t.Parallel()
		b := Bill{Text: []byte("SECTION 1. Short title."), Description: "desc"}
		assert.Equal(t, "SECTION 1. Short title.", b.AnalysisInput())
	})

	t.Run("falls back to description when text missing", func(t *testing.T) {
		t.Parallel()
		b := Bill{Description: "An act relating to water districts."}
		assert.Equal(t, "An act relating to water districts.", b.AnalysisInput())
	})

	t.Run("falls back to description for binary text", func(t *testing.T) {
		t.Parallel()
		b := Bill{
			Text:         []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff},
			TextIsBinary: true,
			Description:  "PDF-only bill",
		}
		assert.Equal(t, "PDF-only bill", b.AnalysisInput())
	})

	t.Run("detects invalid utf8 even when flag unset", func(t *testing.T) {
		t.Parallel()
		b := Bill{Text: []byte{0xff, 0xfe, 0x00}, Description: "fallback"}
		assert.Equal(t, "fallback", b.AnalysisInput())
	})
}

func TestBillMetadata(t *testing.T) {
	t.Parallel()

	b := Bill{
		BillNumber: "HB 1234",
		Title:      "Relating to groundwater conservation districts",
		GovtType:   "state",
		GovtSource: "TX Legislature Online",
		Status:     "introduced",
	}
	meta := b.Metadata()
	assert.Len(t, meta, 5)
	assert.Equal(t, "Bill Number", meta[0].Label)
	assert.Equal(t, "HB 1234", meta[0].Value)
	assert.Equal(t, "Status", meta[4].Label)
}
