package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/moamenhredeen/oascall/internal/binding"
	"github.com/moamenhredeen/oascall/internal/models"
	"go.yaml.in/yaml/v4"
)

// Format represents the output format type
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ExportTestSummary exports test results to the specified format
func ExportTestSummary(summary models.TestSummary, format Format, filePath string) error {
	return toFile(filePath, func(w io.Writer) error {
		return WriteTestSummary(w, summary, format)
	})
}

// WriteTestSummary writes test results to w
func WriteTestSummary(w io.Writer, summary models.TestSummary, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, summary)
	case FormatYAML:
		return writeYAML(w, summary)
	case FormatCSV:
		return exportTestCSV(w, summary)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// ExportBenchmarkSummary exports benchmark results to the specified format
func ExportBenchmarkSummary(summary models.BenchmarkSummary, format Format, filePath string) error {
	return toFile(filePath, func(w io.Writer) error {
		return WriteBenchmarkSummary(w, summary, format)
	})
}

// WriteBenchmarkSummary writes benchmark results to w
func WriteBenchmarkSummary(w io.Writer, summary models.BenchmarkSummary, format Format) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, summary)
	case FormatYAML:
		return writeYAML(w, summary)
	case FormatCSV:
		return exportBenchmarkCSV(w, summary)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// callResult is the printable form of a single call result
type callResult struct {
	Status    int                 `json:"status" yaml:"status"`
	MediaType string              `json:"media_type,omitempty" yaml:"media_type,omitempty"`
	Headers   map[string][]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body      any                 `json:"body,omitempty" yaml:"body,omitempty"`
}

// WriteResult writes the outcome of one call. CSV is not supported.
// Headers are included only when withHeaders is set.
func WriteResult(w io.Writer, result *binding.Result, format Format, withHeaders bool) error {
	out := callResult{
		Status:    result.StatusCode,
		MediaType: result.MediaType,
		Body:      result.Value,
	}
	if withHeaders {
		out.Headers = result.Header
	}

	switch format {
	case FormatJSON:
		return writeJSON(w, out)
	case FormatYAML:
		return writeYAML(w, out)
	default:
		return fmt.Errorf("unsupported format for call results: %s", format)
	}
}

// toFile runs write against stdout or the file at filePath
func toFile(filePath string, write func(io.Writer) error) error {
	w, closer, err := getWriter(filePath)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	return write(w)
}

// getWriter returns an io.Writer for output (stdout or file)
func getWriter(filePath string) (io.Writer, io.Closer, error) {
	if filePath == "" {
		return os.Stdout, nil, nil
	}

	f, err := os.Create(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	// round-trip through JSON so the json tags name the fields
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	doc, err := binding.ParseJSON(raw)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(yamlNumbers(doc))
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// yamlNumbers replaces json.Number values, which yaml would quote, with
// int64 or float64
func yamlNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = yamlNumbers(child)
		}
	case []any:
		for i, child := range t {
			t[i] = yamlNumbers(child)
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	}
	return v
}

// exportTestCSV exports test results as CSV
func exportTestCSV(w io.Writer, summary models.TestSummary) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	// Write header
	header := []string{
		"method", "path", "operation_id", "passed", "skipped", "status_code",
		"media_type", "response_time_ms", "error_kind", "failed_after", "error",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	// Write rows
	for _, r := range summary.Results {
		row := []string{
			r.Method,
			r.Path,
			r.OperationID,
			strconv.FormatBool(r.Passed),
			strconv.FormatBool(r.Skipped),
			strconv.Itoa(r.StatusCode),
			r.MediaType,
			fmt.Sprintf("%.2f", float64(r.ResponseTime.Microseconds())/1000),
			r.ErrorKind,
			r.FailedAfter,
			r.Error,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// exportBenchmarkCSV exports benchmark results as CSV
func exportBenchmarkCSV(w io.Writer, summary models.BenchmarkSummary) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	// Write header
	header := []string{
		"method", "path", "operation_id", "iterations", "concurrency",
		"min_ms", "max_ms", "avg_ms", "p50_ms", "p90_ms", "p99_ms",
		"requests_per_sec", "success_count", "error_count", "error_rate", "error_kinds",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	// Write rows
	for _, r := range summary.Results {
		row := []string{
			r.Method,
			r.Path,
			r.OperationID,
			strconv.Itoa(r.Iterations),
			strconv.Itoa(r.Concurrency),
			fmt.Sprintf("%.2f", float64(r.MinTime.Microseconds())/1000),
			fmt.Sprintf("%.2f", float64(r.MaxTime.Microseconds())/1000),
			fmt.Sprintf("%.2f", float64(r.AvgTime.Microseconds())/1000),
			fmt.Sprintf("%.2f", float64(r.P50Time.Microseconds())/1000),
			fmt.Sprintf("%.2f", float64(r.P90Time.Microseconds())/1000),
			fmt.Sprintf("%.2f", float64(r.P99Time.Microseconds())/1000),
			fmt.Sprintf("%.2f", r.RequestsPerSec),
			strconv.Itoa(r.SuccessCount),
			strconv.Itoa(r.ErrorCount),
			fmt.Sprintf("%.2f", r.ErrorRate),
			formatKinds(r.ErrorKinds),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// formatKinds renders kind counts as "Kind=n;Kind=n" in name order
func formatKinds(kinds map[string]int) string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + strconv.Itoa(kinds[name])
	}
	return strings.Join(parts, ";")
}

// ParseFormat parses a string into a Format, returning error if invalid
func ParseFormat(s string) (Format, error) {
	switch s {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("invalid format '%s': must be 'json', 'yaml' or 'csv'", s)
	}
}
