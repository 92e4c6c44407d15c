package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moamenhredeen/oascall/internal/binding"
	"github.com/moamenhredeen/oascall/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSummary() models.TestSummary {
	var s models.TestSummary
	s.AddResult(models.TestResult{
		Path: "/pets", Method: "get", OperationID: "listPets",
		Passed: true, StatusCode: 200, MediaType: "application/json", ResponseTime: 1500 * time.Microsecond,
	})
	s.AddResult(models.TestResult{
		Path: "/pets/{petId}", Method: "get", OperationID: "showPetById",
		Error: "schema violation", ErrorKind: "SchemaViolation", FailedAfter: "StatusMatched",
		Violations: []models.Violation{{Path: "/tag", Message: "got number, want string"}},
	})
	return s
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"json": FormatJSON, "yaml": FormatYAML, "yml": FormatYAML, "csv": FormatCSV} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestWriteTestSummaryJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTestSummary(&buf, testSummary(), FormatJSON))

	var decoded models.TestSummary
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 2, decoded.TotalTests)
	assert.Equal(t, 1, decoded.Failed)
	assert.Equal(t, "/tag", decoded.Results[1].Violations[0].Path)
}

func TestWriteTestSummaryYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTestSummary(&buf, testSummary(), FormatYAML))

	out := buf.String()
	assert.Contains(t, out, "total_tests: 2")
	assert.Contains(t, out, "error_kind: SchemaViolation")
}

func TestWriteTestSummaryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTestSummary(&buf, testSummary(), FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "error_kind", records[0][8])
	assert.Equal(t, []string{"get", "/pets", "listPets", "true", "false", "200", "application/json", "1.50", "", "", ""}, records[1])
	assert.Equal(t, "StatusMatched", records[2][9])
}

func TestWriteBenchmarkSummaryCSV(t *testing.T) {
	var s models.BenchmarkSummary
	s.AddResult(models.BenchmarkResult{
		Path: "/pets", Method: "get", OperationID: "listPets", Iterations: 4,
		ErrorCount: 3, ErrorKinds: map[string]int{"UnexpectedStatus": 2, "SchemaViolation": 1},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteBenchmarkSummary(&buf, s, FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "SchemaViolation=1;UnexpectedStatus=2", records[1][15])
}

func TestWriteResult(t *testing.T) {
	result := &binding.Result{
		StatusCode: 200,
		Header:     http.Header{"X-Next": {"/pets?page=2"}},
		MediaType:  "application/json",
		Value:      []any{map[string]any{"id": float64(1)}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResult(&buf, result, FormatJSON, false))
	assert.JSONEq(t, `{"status":200,"media_type":"application/json","body":[{"id":1}]}`, buf.String())

	buf.Reset()
	require.NoError(t, WriteResult(&buf, result, FormatJSON, true))
	assert.Contains(t, buf.String(), "X-Next")

	assert.Error(t, WriteResult(&buf, result, FormatCSV, false))
}

func TestWriteResultYAMLKeepsLargeIntegers(t *testing.T) {
	result := &binding.Result{
		StatusCode: 200,
		MediaType:  "application/json",
		Value:      map[string]any{"id": json.Number("9007199254740993"), "weight": json.Number("4.5")},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResult(&buf, result, FormatYAML, false))
	assert.Contains(t, buf.String(), "id: 9007199254740993")
	assert.Contains(t, buf.String(), "weight: 4.5")
	assert.Contains(t, buf.String(), "status: 200")
}

func TestExportTestSummaryToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, ExportTestSummary(testSummary(), FormatJSON, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"operation_id": "listPets"`)
}
