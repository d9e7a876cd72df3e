package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/legis-analyzer/internal/analysis"
	"github.com/sells-group/legis-analyzer/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start webhook server for analysis requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		mux := newServeMux(ctx, env.Store, env.Analyzer)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newServeMux builds the webhook routes. The background context outlives
// individual requests so async analyses survive client disconnects.
func newServeMux(bgCtx context.Context, st store.Store, analyzer *analysis.Analyzer) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /webhook/analyze", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			BillID string `json:"bill_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.BillID == "" {
			http.Error(w, `{"error":"bill_id is required"}`, http.StatusBadRequest)
			return
		}

		// Run analysis asynchronously
		go func() {
			rec, err := analyzer.Analyze(bgCtx, req.BillID)
			if err != nil {
				zap.L().Error("webhook analysis failed",
					zap.String("bill_id", req.BillID),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("webhook analysis complete",
				zap.String("bill_id", rec.BillID),
				zap.Int("version", rec.Version),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":  "accepted",
			"bill_id": req.BillID,
		})
	})

	mux.HandleFunc("GET /bills/{id}/analyses", func(w http.ResponseWriter, r *http.Request) {
		records, err := st.ListAnalyses(r.Context(), r.PathValue("id"))
		if err != nil {
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, records)
	})

	mux.HandleFunc("GET /bills/{id}/priority", func(w http.ResponseWriter, r *http.Request) {
		p, err := st.GetPriority(r.Context(), r.PathValue("id"))
		if err != nil {
			http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			return
		}
		if p == nil {
			http.Error(w, `{"error":"priority not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, p)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
