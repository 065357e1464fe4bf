package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dd0wney/cluso-hydraulics/pkg/hydraulics"
	"github.com/dd0wney/cluso-hydraulics/pkg/inp"
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
	"github.com/dd0wney/cluso-hydraulics/pkg/results"
	"github.com/dd0wney/cluso-hydraulics/pkg/validation"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string, details ...string) {
	respondJSON(w, status, ErrorResponse{Error: msg, Details: details})
}

// parseSolveParams reads steps and format from the query string
func parseSolveParams(r *http.Request) (solveParams, error) {
	q := r.URL.Query()
	p := solveParams{Format: q.Get("format")}
	if v := q.Get("steps"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, errors.New("steps must be an integer")
		}
		p.Steps = n
	}
	if err := validation.Struct(&p); err != nil {
		return p, err
	}
	return p, nil
}

func format(p solveParams) results.Format {
	if p.Format == "" {
		return results.FormatJSON
	}
	f, _ := results.ParseFormat(p.Format)
	return f
}

// splitErrors flattens joined errors into messages
func splitErrors(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range j.Unwrap() {
				walk(inner)
			}
			return
		}
		out = append(out, e.Error())
	}
	walk(err)
	return out
}

// loadErrorStatus maps a loader error to a status code: malformed text is
// 400, a well-formed but inconsistent model is 422
func loadErrorStatus(err error) int {
	var pe *inp.ParseError
	var ve *network.ValidationError
	var ce *network.ConfigError
	switch {
	case errors.As(err, &pe):
		return http.StatusBadRequest
	case errors.As(err, &ve), errors.As(err, &ce):
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

// solveErrorStatus maps a simulation error to a status code
func solveErrorStatus(err error) int {
	var ce *hydraulics.ConvergenceError
	switch {
	case errors.As(err, &ce),
		errors.Is(err, hydraulics.ErrStatusOscillation),
		errors.Is(err, hydraulics.ErrSingularSystem):
		return http.StatusUnprocessableEntity
	case errors.Is(err, network.ErrMissingReference):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// errorDetails lists every violation or joined error
func errorDetails(err error) []string {
	var ve *network.ValidationError
	if errors.As(err, &ve) {
		out := make([]string, len(ve.Violations))
		for i, v := range ve.Violations {
			out[i] = v.Error()
		}
		return out
	}
	return splitErrors(err)
}
