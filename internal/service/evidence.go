package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spec-kit/dispute-service/internal/domain"
	apperrors "github.com/spec-kit/dispute-service/pkg/util"
)

// EvidenceAttacher validates and records uploaded evidence references at
// filing time. The upload itself happens in the external storage collaborator;
// only the accepted references land on the dispute.
type EvidenceAttacher struct {
	maxImages int
}

// NewEvidenceAttacher constructs the attacher.
func NewEvidenceAttacher(maxImages int) *EvidenceAttacher {
	if maxImages <= 0 {
		maxImages = 10
	}
	return &EvidenceAttacher{maxImages: maxImages}
}

// Attach validates the references and records them onto the dispute.
func (a *EvidenceAttacher) Attach(dispute *domain.Dispute, images []domain.EvidenceRef, video *domain.EvidenceRef) error {
	if len(images) > a.maxImages {
		return apperrors.NewValidationError(
			fmt.Sprintf("at most %d evidence images allowed", a.maxImages),
			map[string]any{"count": len(images)},
		)
	}
	for i, image := range images {
		if err := validateEvidenceRef(image); err != nil {
			return apperrors.NewValidationError("invalid evidence image", map[string]any{
				"index":  i,
				"detail": err.Error(),
			})
		}
	}
	if video != nil {
		if err := validateEvidenceRef(*video); err != nil {
			return apperrors.NewValidationError("invalid evidence video", map[string]any{
				"detail": err.Error(),
			})
		}
	}

	dispute.EvidenceImages = images
	dispute.EvidenceVideo = video
	return nil
}

func validateEvidenceRef(ref domain.EvidenceRef) error {
	if strings.TrimSpace(ref.Name) == "" {
		return fmt.Errorf("name required")
	}
	parsed, err := url.Parse(ref.URL)
	if err != nil {
		return fmt.Errorf("malformed url")
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("url must be absolute http(s)")
	}
	return nil
}
