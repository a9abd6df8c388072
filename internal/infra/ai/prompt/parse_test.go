package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/docbatch/internal/domain/batches"
)

func TestParseAnalysis(t *testing.T) {
	raw := `{
  "summary": "two pricing issues found",
  "findings": [
    {
      "lens": "pricing_accuracy",
      "findings": [{"title": "rate mismatch", "severity": "high", "detail": "line 3 rate differs from PO"}],
      "detected_count": 2,
      "missed_count": 1,
      "accuracy": 0.85,
      "severity": {"critical": 0, "high": 1, "medium": 0, "low": 1, "total": 2},
      "evidence": ["line 3", "line 9"],
      "recommendations": ["re-verify against PO-1042"]
    }
  ]
}`

	analysis, err := ParseAnalysis(raw)
	require.NoError(t, err)

	assert.Equal(t, "two pricing issues found", analysis.Summary)
	require.Len(t, analysis.Findings, 1)

	f := analysis.Findings[0]
	assert.Equal(t, "pricing_accuracy", f.Lens)
	assert.Equal(t, 2, f.DetectedCount)
	assert.Equal(t, 1, f.MissedCount)
	require.NotNil(t, f.Accuracy)
	assert.InDelta(t, 0.85, *f.Accuracy, 0.001)
	assert.Equal(t, 1, f.Severity.High)
	assert.Equal(t, 2, f.Severity.Total)
	assert.JSONEq(t, `["line 3", "line 9"]`, string(f.Evidence))
}

func TestParseAnalysisInvalidJSON(t *testing.T) {
	_, err := ParseAnalysis("```json\n{}\n```")
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestParseAnalysisMissingLens(t *testing.T) {
	_, err := ParseAnalysis(`{"summary": "x", "findings": [{"detected_count": 1}]}`)
	assert.ErrorContains(t, err, "without a lens")
}

func TestLensesPerBatchType(t *testing.T) {
	assert.Contains(t, Lenses(domain.TypeContractReview), "pricing_accuracy")
	assert.Contains(t, Lenses(domain.TypeInvoiceAudit), "po_match")
	assert.Contains(t, Lenses(domain.TypeComplianceScreen), "regulatory_coverage")
	assert.Equal(t, []string{"general_review"}, Lenses(domain.BatchType("other")))
}

func TestGetUserPromptIncludesConfig(t *testing.T) {
	item := &domain.BatchItem{
		DocumentURL: "https://docs.example.com/inv-1.pdf",
		Config:      []byte(`{"po_number":"PO-1042"}`),
	}
	p := GetUserPrompt(item)
	assert.Contains(t, p, "https://docs.example.com/inv-1.pdf")
	assert.Contains(t, p, `"po_number":"PO-1042"`)
}
