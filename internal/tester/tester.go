package tester

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moamenhredeen/oascall/internal/binding"
	"github.com/moamenhredeen/oascall/internal/generator"
	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/moamenhredeen/oascall/internal/schema"
)

// EventType represents the type of test event
type EventType int

const (
	// EventStarting indicates a test is about to start
	EventStarting EventType = iota
	// EventCompleted indicates a test has completed
	EventCompleted
)

// TestEvent represents an event during test execution
type TestEvent struct {
	Type      EventType
	Operation *models.Operation
	Result    *models.TestResult // nil for Starting events
	Index     int                // current test index (0-based)
	Total     int                // total number of tests
}

// OnTestEvent is a callback function for test events
type OnTestEvent func(event TestEvent)

// Tester smoke-tests operations by calling them with generated arguments
// and checking the response against the declared responses
type Tester struct {
	executor    *binding.Executor
	generator   *generator.Generator
	credentials binding.Credentials
}

// NewTester creates a tester that calls through executor
func NewTester(executor *binding.Executor, gen *generator.Generator, credentials binding.Credentials) *Tester {
	if gen == nil {
		gen = generator.NewGenerator()
	}
	return &Tester{
		executor:    executor,
		generator:   gen,
		credentials: credentials,
	}
}

// TestOperation tests a single API operation
func (t *Tester) TestOperation(ctx context.Context, op *models.Operation) models.TestResult {
	result := models.TestResult{
		Path:        op.Path,
		Method:      op.Method,
		OperationID: op.ID,
	}

	call, err := t.generator.GenerateCall(op)
	if err != nil {
		result.Skipped = true
		result.Error = fmt.Sprintf("cannot generate arguments: %v", err)
		return result
	}
	call.Credentials = t.credentials

	startTime := time.Now()
	res, err := t.executor.Call(ctx, op, call)
	result.ResponseTime = time.Since(startTime)

	if err != nil {
		recordFailure(&result, err)
		return result
	}

	result.StatusCode = res.StatusCode
	result.MediaType = res.MediaType
	result.Passed = true
	return result
}

// recordFailure classifies err into result
func recordFailure(result *models.TestResult, err error) {
	result.Error = err.Error()
	result.ErrorKind = binding.KindOf(err)

	var callErr *binding.CallError
	if errors.As(err, &callErr) {
		result.FailedAfter = callErr.State.String()
	}

	var respErr *binding.ResponseError
	if errors.As(err, &respErr) {
		result.StatusCode = respErr.StatusCode
	}

	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		for _, v := range verr.Violations {
			result.Violations = append(result.Violations, models.Violation{Path: v.Path, Message: v.Message})
		}
	}

	// an operation whose security cannot be applied is not a failure of the API
	if errors.Is(err, binding.ErrUnsupportedScheme) {
		result.Skipped = true
	}
}

// TestOperations tests multiple operations with optional live event reporting
func (t *Tester) TestOperations(ctx context.Context, operations []*models.Operation, onEvent OnTestEvent) models.TestSummary {
	summary := models.TestSummary{
		Results: make([]models.TestResult, 0, len(operations)),
	}
	total := len(operations)

	for i, op := range operations {
		if ctx.Err() != nil {
			break
		}

		// Report: test is starting
		if onEvent != nil {
			onEvent(TestEvent{Type: EventStarting, Operation: op, Index: i, Total: total})
		}

		result := t.TestOperation(ctx, op)
		summary.AddResult(result)

		// Report: test completed
		if onEvent != nil {
			onEvent(TestEvent{Type: EventCompleted, Operation: op, Result: &result, Index: i, Total: total})
		}
	}

	return summary
}
