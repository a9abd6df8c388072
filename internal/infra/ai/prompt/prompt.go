package prompt

import (
	"fmt"
	"strings"

	domain "github.com/bryanwahyu/docbatch/internal/domain/batches"
)

// Lenses returns the analytical lenses requested for a batch type. Each lens
// becomes one finding block in the model output.
func Lenses(t domain.BatchType) []string {
	switch t {
	case domain.TypeContractReview:
		return []string{"pricing_accuracy", "scope_alignment", "liability_terms"}
	case domain.TypeInvoiceAudit:
		return []string{"amount_validation", "po_match", "duplicate_detection"}
	case domain.TypeComplianceScreen:
		return []string{"regulatory_coverage", "classification_risk", "documentation_gaps"}
	}
	return []string{"general_review"}
}

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt(t domain.BatchType) string {
	return fmt.Sprintf(`You are a senior procurement document analyst. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Output must be a single JSON object.
- Produce one entry in "findings" per requested lens, in the order given.
- Use lowercase severity values: critical, high, medium, low.
- severity.total must equal critical + high + medium + low.
- detected_count is the number of issues found; missed_count the number of expected checks that could not be evaluated.
- accuracy, when you can estimate it, is a number between 0 and 1; otherwise null.
- Keep items concise. If the document content is not reachable, infer conservatively from the URL and configuration.

Requested lenses for this %s batch: %s

Schema (example with empty values):
{
  "summary": "<string>",
  "findings": [
    {
      "lens": "<string>",
      "findings": [{"title": "<string>", "severity": "<critical|high|medium|low>", "detail": "<string>"}],
      "detected_count": 0,
      "missed_count": 0,
      "accuracy": null,
      "severity": {"critical": 0, "high": 0, "medium": 0, "low": 0, "total": 0},
      "evidence": ["<string>"],
      "recommendations": ["<string>"]
    }
  ]
}`, t, strings.Join(Lenses(t), ", "))
}

// GetUserPrompt builds a compact user message around one batch item.
func GetUserPrompt(item *domain.BatchItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the document at this URL and respond with the JSON per schema. URL: %s", item.DocumentURL)
	if len(item.Config) > 0 {
		fmt.Fprintf(&b, "\nItem configuration: %s", string(item.Config))
	}
	return b.String()
}
