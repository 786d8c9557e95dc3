package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/dispute-service/internal/domain"
	apperrors "github.com/spec-kit/dispute-service/pkg/util"
)

func TestAttachEvidence(t *testing.T) {
	attacher := NewEvidenceAttacher(3)

	image := func(name string) domain.EvidenceRef {
		return domain.EvidenceRef{URL: "https://cdn.example.com/" + name, Name: name}
	}

	t.Run("records images and video", func(t *testing.T) {
		dispute := &domain.Dispute{}
		video := image("unboxing.mp4")
		err := attacher.Attach(dispute, []domain.EvidenceRef{image("a.jpg"), image("b.jpg")}, &video)
		require.NoError(t, err)
		assert.Len(t, dispute.EvidenceImages, 2)
		require.NotNil(t, dispute.EvidenceVideo)
		assert.Equal(t, "unboxing.mp4", dispute.EvidenceVideo.Name)
	})

	t.Run("enforces image cap", func(t *testing.T) {
		dispute := &domain.Dispute{}
		err := attacher.Attach(dispute, []domain.EvidenceRef{
			image("a.jpg"), image("b.jpg"), image("c.jpg"), image("d.jpg"),
		}, nil)
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
		assert.Empty(t, dispute.EvidenceImages)
	})

	t.Run("rejects missing name", func(t *testing.T) {
		dispute := &domain.Dispute{}
		err := attacher.Attach(dispute, []domain.EvidenceRef{{URL: "https://cdn.example.com/a.jpg"}}, nil)
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})

	t.Run("rejects relative urls", func(t *testing.T) {
		dispute := &domain.Dispute{}
		err := attacher.Attach(dispute, []domain.EvidenceRef{{URL: "/uploads/a.jpg", Name: "a.jpg"}}, nil)
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})

	t.Run("rejects non http schemes", func(t *testing.T) {
		dispute := &domain.Dispute{}
		video := domain.EvidenceRef{URL: "ftp://cdn.example.com/v.mp4", Name: "v.mp4"}
		err := attacher.Attach(dispute, nil, &video)
		assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
	})
}
