package models

import "time"

// TestResult is the outcome of one smoke-tested operation
type TestResult struct {
	// Operation details
	Path        string `json:"path"`
	Method      string `json:"method"`
	OperationID string `json:"operation_id"`

	// Test status; ErrorKind names the binding failure and FailedAfter the
	// last lifecycle state a failed call reached
	Passed      bool   `json:"passed"`
	Skipped     bool   `json:"skipped,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	FailedAfter string `json:"failed_after,omitempty"`

	// Response details
	StatusCode   int           `json:"status_code,omitempty"`
	MediaType    string        `json:"media_type,omitempty"`
	ResponseTime time.Duration `json:"response_time_ns"`

	// Validation details
	Violations []Violation `json:"violations,omitempty"`
}

// Violation is a schema failure at a JSON pointer inside a body
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// TestSummary represents the overall test results
type TestSummary struct {
	TotalTests int          `json:"total_tests"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
	Results    []TestResult `json:"results"`
}

// AddResult adds a test result to the summary
func (s *TestSummary) AddResult(result TestResult) {
	s.TotalTests++
	s.Results = append(s.Results, result)
	switch {
	case result.Skipped:
		s.Skipped++
	case result.Passed:
		s.Passed++
	default:
		s.Failed++
	}
}
