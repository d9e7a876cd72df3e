package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/legis-analyzer/internal/db"
	"github.com/sells-group/legis-analyzer/internal/model"
	"github.com/sells-group/legis-analyzer/internal/store"
)

var (
	importPath   string
	importAppend bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import bills from a JSON file",
	Long:  "Reads a JSON array of bills and upserts them into the store. On postgres the rows go through a bulk COPY upsert; --append skips conflict handling for initial loads.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		bills, err := loadBillsFile(importPath)
		if err != nil {
			return err
		}
		if len(bills) == 0 {
			zap.L().Info("no bills in input file")
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		var imported int64
		if ps, ok := st.(*store.PostgresStore); ok {
			imported, err = bulkImportBills(ctx, ps, bills, importAppend)
		} else {
			for _, b := range bills {
				if err = st.UpsertBill(ctx, b); err != nil {
					break
				}
				imported++
			}
		}
		if err != nil {
			return eris.Wrap(err, "import bills")
		}

		zap.L().Info("import complete",
			zap.Int64("imported", imported),
			zap.String("file", importPath),
		)
		return nil
	},
}

// loadBillsFile parses a JSON or YAML array of bills, filling in IDs and
// timestamps the source file may omit. Format follows the file extension.
func loadBillsFile(path string) ([]model.Bill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read bills file")
	}

	var bills []model.Bill
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &bills); err != nil {
			return nil, eris.Wrap(err, "parse bills file")
		}
	default:
		if err := json.Unmarshal(data, &bills); err != nil {
			return nil, eris.Wrap(err, "parse bills file")
		}
	}

	now := time.Now().UTC()
	for i := range bills {
		if bills[i].ID == "" {
			bills[i].ID = uuid.NewString()
		}
		if bills[i].UpdatedAt.IsZero() {
			bills[i].UpdatedAt = now
		}
	}
	return bills, nil
}

var billColumns = []string{
	"id", "external_id", "bill_number", "title", "description",
	"govt_type", "govt_source", "status", "text", "text_is_binary", "updated_at",
}

func billRowValues(bills []model.Bill) [][]any {
	rows := make([][]any, len(bills))
	for i, b := range bills {
		rows[i] = []any{
			b.ID, b.ExternalID, b.BillNumber, b.Title, b.Description,
			b.GovtType, b.GovtSource, b.Status, b.Text, b.TextIsBinary, b.UpdatedAt,
		}
	}
	return rows
}

func bulkImportBills(ctx context.Context, ps *store.PostgresStore, bills []model.Bill, appendOnly bool) (int64, error) {
	rows := billRowValues(bills)
	if appendOnly {
		return db.CopyFrom(ctx, ps.Pool(), "bills", billColumns, rows)
	}
	return db.BulkUpsert(ctx, ps.Pool(), db.UpsertConfig{
		Table:        "bills",
		Columns:      billColumns,
		ConflictKeys: []string{"id"},
	}, rows)
}

func init() {
	importCmd.Flags().StringVar(&importPath, "file", "", "path to JSON bills file (required)")
	importCmd.Flags().BoolVar(&importAppend, "append", false, "append-only COPY load (postgres, no conflict handling)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
