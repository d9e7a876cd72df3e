package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the configuration for a given run mode. Modes map to the
// top-level commands: "analyze", "batch", "serve", "migrate", "import".
func (c *Config) Validate(mode string) error {
	var problems []string

	needsStore := true
	needsModel := false
	switch mode {
	case "analyze", "batch", "serve":
		needsModel = true
	case "migrate", "import", "dlq", "versions", "estimate":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needsStore {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		case "sqlite":
			if c.Store.SQLitePath == "" {
				problems = append(problems, "store.sqlite_path is required for the sqlite driver")
			}
		default:
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
	}

	if needsModel {
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Anthropic.Model == "" {
			problems = append(problems, "anthropic.model is required")
		}
		if c.Anthropic.Temperature < 0 || c.Anthropic.Temperature > 1 {
			problems = append(problems, "anthropic.temperature must be between 0 and 1")
		}
		if c.Analysis.MaxContextTokens <= c.Analysis.SafetyBuffer {
			problems = append(problems, "analysis.max_context_tokens must exceed analysis.safety_buffer")
		}
	}

	if mode == "serve" && c.Server.Port <= 0 {
		problems = append(problems, "server.port must be > 0")
	}

	if mode == "batch" || mode == "serve" {
		if c.Batch.MaxConcurrentBills < 1 || c.Batch.MaxConcurrentBills > 50 {
			problems = append(problems, "batch.max_concurrent_bills must be between 1 and 50")
		}
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}
