package benchmarker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/moamenhredeen/oascall/internal/binding"
	"github.com/moamenhredeen/oascall/internal/generator"
	"github.com/moamenhredeen/oascall/internal/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// EventType represents the type of benchmark event
type EventType int

const (
	// EventWarmupStarting indicates warmup phase is starting for an endpoint
	EventWarmupStarting EventType = iota
	// EventWarmupProgress indicates warmup progress
	EventWarmupProgress
	// EventWarmupCompleted indicates warmup phase completed
	EventWarmupCompleted
	// EventBenchmarkStarting indicates benchmark is starting for an endpoint
	EventBenchmarkStarting
	// EventBenchmarkProgress indicates benchmark progress (periodic updates)
	EventBenchmarkProgress
	// EventBenchmarkCompleted indicates benchmark completed for an endpoint
	EventBenchmarkCompleted
)

// BenchmarkEvent represents an event during benchmark execution
type BenchmarkEvent struct {
	Type      EventType
	Operation *models.Operation
	Result    *models.BenchmarkResult // nil until completed
	Index     int                     // current endpoint index (0-based)
	Total     int                     // total number of endpoints
	Progress  int                     // current iteration count
	MaxIter   int                     // max iterations for this phase

	// Running stats (for progress events)
	RunningAvg    time.Duration
	RunningReqSec float64
	ErrorCount    int
}

// OnBenchmarkEvent is a callback function for benchmark events
type OnBenchmarkEvent func(event BenchmarkEvent)

// Config holds benchmark configuration
type Config struct {
	Iterations       int           // Number of requests per endpoint
	Concurrency      int           // Number of concurrent workers
	WarmupRuns       int           // Number of warmup iterations (discarded)
	RateLimit        float64       // Max requests per second (0 = unlimited)
	Timeout          time.Duration // Per-request timeout
	DisableKeepAlive bool          // Disable HTTP connection reuse
}

// DefaultConfig returns default benchmark configuration
func DefaultConfig() Config {
	return Config{
		Iterations:       100,
		Concurrency:      1,
		WarmupRuns:       5,
		RateLimit:        0,
		Timeout:          30 * time.Second,
		DisableKeepAlive: false,
	}
}

// Benchmarker repeatedly calls operations through a binding executor and
// aggregates latency, throughput and failure kinds
type Benchmarker struct {
	config      Config
	executor    *binding.Executor
	generator   *generator.Generator
	credentials binding.Credentials
	limiter     *rate.Limiter
}

// NewBenchmarker creates a benchmarker for the operations of spec.
// opts configure the executor, e.g. binding.WithBaseURL.
func NewBenchmarker(config Config, spec *models.Spec, credentials binding.Credentials, opts ...binding.Option) *Benchmarker {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}

	// Create HTTP transport with keepalive settings
	transport := &http.Transport{
		DisableKeepAlives:   config.DisableKeepAlive,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: config.Concurrency,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	client := &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}

	// Create rate limiter if configured
	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), max(1, int(config.RateLimit)))
	}

	return &Benchmarker{
		config:      config,
		executor:    binding.NewExecutor(spec, binding.NewHTTPTransport(client), opts...),
		generator:   generator.NewGenerator(),
		credentials: credentials,
		limiter:     limiter,
	}
}

// requestResult holds the result of a single request
type requestResult struct {
	Duration   time.Duration
	StatusCode int
	Error      string
	ErrorKind  string
}

// BenchmarkOperation benchmarks a single API operation.
// The call arguments are generated once and reused for every iteration.
func (b *Benchmarker) BenchmarkOperation(
	ctx context.Context,
	op *models.Operation,
	onEvent OnBenchmarkEvent,
	index, total int,
) (models.BenchmarkResult, error) {
	result := models.BenchmarkResult{
		Path:        op.Path,
		Method:      op.Method,
		OperationID: op.ID,
		Iterations:  b.config.Iterations,
		Concurrency: b.config.Concurrency,
		WarmupRuns:  b.config.WarmupRuns,
		StatusCodes: make(map[int]int),
		ErrorKinds:  make(map[string]int),
	}

	call, err := b.generator.GenerateCall(op)
	if err != nil {
		return result, fmt.Errorf("failed to generate arguments: %w", err)
	}
	call.Credentials = b.credentials

	// Bind once up front so unusable operations fail without sending anything
	if _, err := b.executor.Bind(op, call); err != nil {
		return result, fmt.Errorf("failed to build request: %w", err)
	}

	// Warmup phase
	if b.config.WarmupRuns > 0 && onEvent != nil {
		onEvent(BenchmarkEvent{
			Type:      EventWarmupStarting,
			Operation: op,
			Index:     index,
			Total:     total,
			MaxIter:   b.config.WarmupRuns,
		})
	}

	// Run warmup (single-threaded, no stats collection)
	for i := 0; i < b.config.WarmupRuns; i++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		b.executeRequest(ctx, op, call)

		if onEvent != nil && (i+1)%max(1, b.config.WarmupRuns/5) == 0 {
			onEvent(BenchmarkEvent{
				Type:      EventWarmupProgress,
				Operation: op,
				Index:     index,
				Total:     total,
				Progress:  i + 1,
				MaxIter:   b.config.WarmupRuns,
			})
		}
	}

	if b.config.WarmupRuns > 0 && onEvent != nil {
		onEvent(BenchmarkEvent{
			Type:      EventWarmupCompleted,
			Operation: op,
			Index:     index,
			Total:     total,
		})
	}

	// Benchmark phase
	if onEvent != nil {
		onEvent(BenchmarkEvent{
			Type:      EventBenchmarkStarting,
			Operation: op,
			Index:     index,
			Total:     total,
			MaxIter:   b.config.Iterations,
		})
	}

	startTime := time.Now()
	results, err := b.runConcurrentBenchmark(ctx, op, call, onEvent, index, total)
	result.TotalDuration = time.Since(startTime)
	if err != nil {
		return result, err
	}

	result = b.processResults(result, results)

	if onEvent != nil {
		onEvent(BenchmarkEvent{
			Type:      EventBenchmarkCompleted,
			Operation: op,
			Result:    &result,
			Index:     index,
			Total:     total,
		})
	}

	return result, nil
}

// runConcurrentBenchmark executes the benchmark with a pool of workers.
// Only completed iterations are returned when ctx is cancelled.
func (b *Benchmarker) runConcurrentBenchmark(
	ctx context.Context,
	op *models.Operation,
	call binding.Call,
	onEvent OnBenchmarkEvent,
	index, total int,
) ([]requestResult, error) {
	results := make([]requestResult, 0, b.config.Iterations)
	jobs := make(chan struct{}, b.config.Iterations)
	for i := 0; i < b.config.Iterations; i++ {
		jobs <- struct{}{}
	}
	close(jobs)

	var mu sync.Mutex
	var totalDuration time.Duration
	var errorCount int
	started := time.Now()

	// Progress reporting interval
	progressInterval := max(1, b.config.Iterations/20) // ~5% intervals

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < b.config.Concurrency; w++ {
		g.Go(func() error {
			for range jobs {
				if gctx.Err() != nil {
					return nil
				}

				if b.limiter != nil {
					if err := b.limiter.Wait(gctx); err != nil {
						return nil
					}
				}

				res := b.executeRequest(gctx, op, call)

				mu.Lock()
				results = append(results, res)
				totalDuration += res.Duration
				if res.Error != "" {
					errorCount++
				}
				completed := len(results)
				avgDuration := totalDuration / time.Duration(completed)
				currentErrorCount := errorCount
				mu.Unlock()

				// Report progress periodically
				if onEvent != nil && completed%progressInterval == 0 {
					var reqsPerSec float64
					if elapsed := time.Since(started).Seconds(); elapsed > 0 {
						reqsPerSec = float64(completed) / elapsed
					}

					onEvent(BenchmarkEvent{
						Type:          EventBenchmarkProgress,
						Operation:     op,
						Index:         index,
						Total:         total,
						Progress:      completed,
						MaxIter:       b.config.Iterations,
						RunningAvg:    avgDuration,
						RunningReqSec: reqsPerSec,
						ErrorCount:    currentErrorCount,
					})
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

// executeRequest performs one call and returns timing and the failure kind
func (b *Benchmarker) executeRequest(ctx context.Context, op *models.Operation, call binding.Call) requestResult {
	startTime := time.Now()
	res, err := b.executor.Call(ctx, op, call)
	result := requestResult{Duration: time.Since(startTime)}

	if err != nil {
		result.Error = err.Error()
		result.ErrorKind = binding.KindOf(err)
		if result.ErrorKind == "" {
			result.ErrorKind = "Unknown"
		}
		var respErr *binding.ResponseError
		if errors.As(err, &respErr) {
			result.StatusCode = respErr.StatusCode
		}
		return result
	}

	result.StatusCode = res.StatusCode
	return result
}

// processResults calculates statistics from raw results
func (b *Benchmarker) processResults(result models.BenchmarkResult, rawResults []requestResult) models.BenchmarkResult {
	if len(rawResults) == 0 {
		return result
	}

	var durations []time.Duration
	var totalDuration time.Duration
	errorSet := make(map[string]bool)

	for _, r := range rawResults {
		if r.Error != "" {
			result.ErrorCount++
			result.ErrorKinds[r.ErrorKind]++
			if len(result.SampleErrors) < 5 && !errorSet[r.Error] {
				result.SampleErrors = append(result.SampleErrors, r.Error)
				errorSet[r.Error] = true
			}
		} else {
			result.SuccessCount++
			durations = append(durations, r.Duration)
			totalDuration += r.Duration
		}

		if r.StatusCode > 0 {
			result.StatusCodes[r.StatusCode]++
		}
	}

	// Calculate timing stats (only from successful requests)
	if len(durations) > 0 {
		sort.Slice(durations, func(i, j int) bool {
			return durations[i] < durations[j]
		})

		result.MinTime = durations[0]
		result.MaxTime = durations[len(durations)-1]
		result.AvgTime = totalDuration / time.Duration(len(durations))
		result.P50Time = percentile(durations, 50)
		result.P90Time = percentile(durations, 90)
		result.P99Time = percentile(durations, 99)
	}

	// Calculate throughput
	if result.TotalDuration > 0 {
		result.RequestsPerSec = float64(len(rawResults)) / result.TotalDuration.Seconds()
	}

	// Calculate error rate
	result.ErrorRate = float64(result.ErrorCount) / float64(len(rawResults)) * 100

	return result
}

// percentile calculates the p-th percentile from sorted durations
func percentile(sorted []time.Duration, p int) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	index := float64(len(sorted)-1) * float64(p) / 100.0
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[lower]
	}

	// Linear interpolation
	weight := index - float64(lower)
	return time.Duration(float64(sorted[lower])*(1-weight) + float64(sorted[upper])*weight)
}

// BenchmarkOperations benchmarks multiple operations with live event reporting
func (b *Benchmarker) BenchmarkOperations(
	ctx context.Context,
	operations []*models.Operation,
	onEvent OnBenchmarkEvent,
) models.BenchmarkSummary {
	summary := models.BenchmarkSummary{
		Iterations:  b.config.Iterations,
		Concurrency: b.config.Concurrency,
		WarmupRuns:  b.config.WarmupRuns,
		Results:     make([]models.BenchmarkResult, 0, len(operations)),
	}

	startTime := time.Now()

	for i, op := range operations {
		if ctx.Err() != nil {
			break
		}

		result, err := b.BenchmarkOperation(ctx, op, onEvent, i, len(operations))
		if err != nil {
			result.SampleErrors = append(result.SampleErrors, err.Error())
			result.ErrorCount = result.Iterations
			result.ErrorRate = 100
			if kind := binding.KindOf(err); kind != "" {
				result.ErrorKinds[kind] += result.Iterations
			}
		}
		summary.AddResult(result)
	}

	summary.Finalize(time.Since(startTime))
	return summary
}
