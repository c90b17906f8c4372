package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tqminh/formextract-be/internal/jobqueue"
	"github.com/tqminh/formextract-be/internal/worker/domain"
)

// executeJob dispatches a descriptor to its handler and returns the result
// payload recorded on success
func (w *Worker) executeJob(ctx context.Context, d *jobqueue.Descriptor) (map[string]any, error) {
	switch d.JobType {
	case jobqueue.JobTypeUploadImage:
		var payload jobqueue.UploadImagePayload
		if err := json.Unmarshal(d.Payload, &payload); err != nil {
			return nil, domain.NewPermanent(domain.ErrKindInvalidPayload,
				fmt.Errorf("failed to decode upload_image payload: %w", err))
		}
		return w.handleUploadImage(ctx, &payload)

	case jobqueue.JobTypeExtractForm:
		var payload jobqueue.ExtractFormPayload
		if err := json.Unmarshal(d.Payload, &payload); err != nil {
			return nil, domain.NewPermanent(domain.ErrKindInvalidPayload,
				fmt.Errorf("failed to decode extract_form payload: %w", err))
		}
		return w.handleExtractForm(ctx, &payload)

	default:
		return nil, domain.NewPermanent(domain.ErrKindInvalidPayload,
			fmt.Errorf("no handler registered for job type %q", d.JobType))
	}
}
