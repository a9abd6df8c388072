package batches

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	domain "github.com/bryanwahyu/docbatch/internal/domain/batches"
)

// uploadReport pushes the serialized run summary to the report store.
// Best-effort: a failed upload is logged and the run result stands.
func (s *Service) uploadReport(ctx context.Context, batch *domain.Batch, summary domain.RunSummary) string {
	if s.Reports == nil {
		return ""
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		log.Printf("report marshal error batch=%s: %v", batch.ID, err)
		return ""
	}

	key := fmt.Sprintf("reports/%s/%s.json", batch.Type, batch.ID)
	url, err := s.Reports.UploadReport(ctx, key, payload)
	if err != nil {
		log.Printf("report upload error batch=%s: %v", batch.ID, err)
		return ""
	}
	return url
}
