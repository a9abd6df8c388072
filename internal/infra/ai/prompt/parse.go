package prompt

import (
	"encoding/json"
	"fmt"

	domain "github.com/bryanwahyu/docbatch/internal/domain/batches"
)

// response mirrors the JSON schema the system prompt demands.
type response struct {
	Summary  string `json:"summary"`
	Findings []struct {
		Lens            string                `json:"lens"`
		Findings        json.RawMessage       `json:"findings"`
		DetectedCount   int                   `json:"detected_count"`
		MissedCount     int                   `json:"missed_count"`
		Accuracy        *float64              `json:"accuracy"`
		Severity        domain.SeverityCounts `json:"severity"`
		Evidence        json.RawMessage       `json:"evidence"`
		Recommendations json.RawMessage       `json:"recommendations"`
	} `json:"findings"`
}

// ParseAnalysis converts the raw model output into the domain analysis.
// Any schema violation is an analyzer failure for the calling item.
func ParseAnalysis(raw string) (*domain.Analysis, error) {
	var resp response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("model returned invalid JSON: %w", err)
	}

	out := &domain.Analysis{Summary: resp.Summary}
	for _, f := range resp.Findings {
		if f.Lens == "" {
			return nil, fmt.Errorf("model returned a finding without a lens")
		}
		out.Findings = append(out.Findings, &domain.Finding{
			Lens:            f.Lens,
			Findings:        f.Findings,
			DetectedCount:   f.DetectedCount,
			MissedCount:     f.MissedCount,
			Accuracy:        f.Accuracy,
			Severity:        f.Severity,
			Evidence:        f.Evidence,
			Recommendations: f.Recommendations,
		})
	}
	return out, nil
}
