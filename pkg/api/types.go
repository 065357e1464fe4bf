package api

import (
	"github.com/dd0wney/cluso-hydraulics/pkg/results"
)

// SolveResponse is the JSON body of a solve or result lookup
type SolveResponse struct {
	RunID       string              `json:"run_id"`
	Fingerprint string              `json:"fingerprint"`
	Cached      bool                `json:"cached"`
	Steps       int                 `json:"steps"`
	Unbalanced  int                 `json:"unbalanced"`
	Resilience  []float64           `json:"resilience,omitempty"`
	Simulation  *results.Simulation `json:"simulation"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// solveParams are the query parameters of POST /v1/solve
type solveParams struct {
	Steps  int    `validate:"min=0"`
	Format string `validate:"omitempty,oneof=json yaml archive csv"`
}
