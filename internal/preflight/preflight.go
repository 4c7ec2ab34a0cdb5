package preflight

import (
	"context"

	"cardsync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	if baseURL, err := cfg.CardServerBaseURL(); err != nil {
		results = append(results, Result{Name: cardServerCheck, Detail: err.Error()})
	} else {
		results = append(results, CheckCardServer(ctx, baseURL))
	}

	results = append(results, CheckStore(ctx, cfg))

	if cfg.Scanner.AgentURL != "" {
		results = append(results, CheckAgent(ctx, cfg.Scanner.AgentURL))
	}

	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
