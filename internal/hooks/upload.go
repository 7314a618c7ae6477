package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/artifacts/internal/ir"
)

// PortalMarker makes a note visible on the customer portal.
const PortalMarker = "*WEB*"

// Uploads records document uploads against artifacts.
type Uploads struct {
	store  RecordStore
	logger *slog.Logger
}

// NewUploads creates an Uploads hook over s. A nil logger uses slog.Default().
func NewUploads(s RecordStore, logger *slog.Logger) *Uploads {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploads{store: s, logger: logger}
}

// UploadResult reports what OnAnnotationCreated changed.
type UploadResult struct {
	ArtifactID  string `json:"artifact_id,omitempty"`
	MarkerAdded bool   `json:"marker_added"`
	NotArtifact bool   `json:"not_artifact,omitempty"`
}

// OnAnnotationCreated handles a newly attached annotation. When it belongs
// to an artifact, the artifact is flagged as uploaded with the annotation's
// creation time, and the note text gets the portal marker if it lacks one.
// Annotations on other record types are ignored.
func (u *Uploads) OnAnnotationCreated(ctx context.Context, annotationID string) (UploadResult, error) {
	note, err := u.store.Retrieve(ctx, ir.TypeAnnotation, annotationID,
		ir.FieldAnnotationObject, ir.FieldAnnotationText)
	if err != nil {
		return UploadResult{}, err
	}

	object, ok, err := note.Attributes.Ref(ir.FieldAnnotationObject)
	if err != nil {
		return UploadResult{}, fmt.Errorf("annotation %s: %w", annotationID, err)
	}
	if !ok || object.Type != ir.TypeArtifact {
		u.logger.Debug("annotation not attached to an artifact", "annotation", annotationID)
		return UploadResult{NotArtifact: true}, nil
	}

	err = u.store.Update(ctx, ir.Record{
		Type: ir.TypeArtifact,
		ID:   object.ID,
		Attributes: ir.Attributes{
			ir.FieldArtifactUpload:     ir.UploadStatusUploaded,
			ir.FieldArtifactUploadDate: ir.Text(note.CreatedOn.UTC().Format(time.RFC3339)),
		},
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("flag artifact %s: %w", object.ID, err)
	}
	result := UploadResult{ArtifactID: object.ID}

	text, _, err := note.Attributes.Text(ir.FieldAnnotationText)
	if err != nil {
		return result, fmt.Errorf("annotation %s: %w", annotationID, err)
	}
	if !strings.Contains(text, PortalMarker) {
		err = u.store.Update(ctx, ir.Record{
			Type:       ir.TypeAnnotation,
			ID:         annotationID,
			Attributes: ir.Attributes{ir.FieldAnnotationText: ir.Text(text + PortalMarker)},
		})
		if err != nil {
			return result, fmt.Errorf("mark annotation %s: %w", annotationID, err)
		}
		result.MarkerAdded = true
	}

	u.logger.Info("artifact upload recorded",
		"annotation", annotationID,
		"artifact", object.ID,
		"marker_added", result.MarkerAdded)
	return result, nil
}
