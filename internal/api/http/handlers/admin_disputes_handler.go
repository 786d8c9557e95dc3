package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dispute-service/internal/api/dto"
	"github.com/spec-kit/dispute-service/internal/auth"
	"github.com/spec-kit/dispute-service/internal/domain"
	"github.com/spec-kit/dispute-service/internal/service"
	apperrors "github.com/spec-kit/dispute-service/pkg/util"
)

// AdminDisputesHandler manages arbiter-facing dispute endpoints.
type AdminDisputesHandler struct {
	service *service.DisputeService
}

// NewAdminDisputesHandler constructs handler.
func NewAdminDisputesHandler(disputeService *service.DisputeService) *AdminDisputesHandler {
	return &AdminDisputesHandler{service: disputeService}
}

// ListDisputes GET /admin/disputes. Defaults to the escalated queue when no
// stage filter is given.
func (h *AdminDisputesHandler) ListDisputes(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Arbiter == nil {
		return apperrors.NewUnauthorized("arbiter required")
	}
	filter := parseDisputeQuery(c)
	if len(filter.Stages) == 0 {
		filter.Stages = []domain.DisputeStage{domain.StageAdminReview}
	}
	disputes, err := h.service.ListForAdmin(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.DisputeSummary, 0, len(disputes))
	for i := range disputes {
		items = append(items, disputeSummary(&disputes[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetDispute GET /admin/disputes/:id.
func (h *AdminDisputesHandler) GetDispute(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Arbiter == nil {
		return apperrors.NewUnauthorized("arbiter required")
	}
	detail, err := h.service.GetByID(c.Context(), principal.Arbiter.ID, domain.SubjectTypeArbiter, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": disputeDetail(detail)})
}

// ResolveDispute POST /admin/disputes/:id/resolve.
func (h *AdminDisputesHandler) ResolveDispute(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Arbiter == nil {
		return apperrors.NewUnauthorized("arbiter required")
	}
	var req dto.AdminResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Outcome == "" {
		return apperrors.NewValidationError("outcome required", nil)
	}

	dispute, err := h.service.AdminResolve(c.Context(), principal.Arbiter.ID, c.Params("id"),
		domain.ResolutionOutcome(req.Outcome), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": disputeSummary(dispute)})
}
