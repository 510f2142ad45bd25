package model

import (
	"fmt"
	"strings"
)

// Failure records one reference (or document) that could not be processed
type Failure struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (f Failure) String() string {
	return f.Path + ": " + f.Message
}

// RewriteResult is the per-document outcome of a rewrite pass
type RewriteResult struct {
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failures  []Failure `json:"failures"`
}

// AddFailure appends a failure entry
func (r *RewriteResult) AddFailure(path string, err error) {
	r.Failures = append(r.Failures, Failure{Path: path, Message: err.Error()})
}

// Summary renders the user-facing one-line summary
func (r RewriteResult) Summary() string {
	return summaryLine(r.Succeeded, r.Total, r.Failures)
}

// AggregateResult sums rewrite results across a batch of documents
type AggregateResult struct {
	Documents int       `json:"documents"`
	Changed   int       `json:"changed"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failures  []Failure `json:"failures"`
}

// Merge folds one document's result into the aggregate
func (a *AggregateResult) Merge(r RewriteResult, changed bool) {
	a.Documents++
	if changed {
		a.Changed++
	}
	a.Total += r.Total
	a.Succeeded += r.Succeeded
	a.Failures = append(a.Failures, r.Failures...)
}

// Summary renders the user-facing one-line summary
func (a AggregateResult) Summary() string {
	return summaryLine(a.Succeeded, a.Total, a.Failures)
}

func summaryLine(succeeded, total int, failures []Failure) string {
	line := fmt.Sprintf("Downloaded %d/%d images.", succeeded, total)
	if len(failures) == 0 {
		return line
	}
	parts := make([]string, len(failures))
	for i, f := range failures {
		parts[i] = f.String()
	}
	return line + " Errors: " + strings.Join(parts, "; ")
}
