package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/dispute-service/internal/api/dto"
	"github.com/spec-kit/dispute-service/internal/auth"
	"github.com/spec-kit/dispute-service/internal/domain"
	"github.com/spec-kit/dispute-service/internal/service"
	apperrors "github.com/spec-kit/dispute-service/pkg/util"
)

// DisputesHandler manages marketplace-user dispute endpoints.
type DisputesHandler struct {
	service *service.DisputeService
}

// NewDisputesHandler constructs handler.
func NewDisputesHandler(disputeService *service.DisputeService) *DisputesHandler {
	return &DisputesHandler{service: disputeService}
}

// CheckEligibility GET /disputes/eligibility.
func (h *DisputesHandler) CheckEligibility(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	kind := domain.ReferenceKind(c.Query("reference_kind"))
	referenceID := c.Query("reference_id")
	if referenceID == "" {
		return apperrors.NewValidationError("reference_kind and reference_id required", nil)
	}

	eligibility, err := h.service.CheckEligibility(c.Context(), kind, referenceID, principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.EligibilityResponse{
		CanFile: eligibility.CanFile,
		Code:    string(eligibility.Code),
		Reason:  eligibility.Reason,
	}})
}

// FileDispute POST /disputes.
func (h *DisputesHandler) FileDispute(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.FileDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ReferenceKind == "" || req.ReferenceID == "" || req.Category == "" || req.Description == "" {
		return apperrors.NewValidationError("reference_kind, reference_id, category, description required", nil)
	}

	input := service.FileDisputeInput{
		ReferenceKind:  domain.ReferenceKind(req.ReferenceKind),
		ReferenceID:    req.ReferenceID,
		Category:       domain.DisputeCategory(req.Category),
		Description:    req.Description,
		EvidenceImages: evidenceRefs(req.EvidenceImages),
	}
	if req.EvidenceVideo != nil {
		input.EvidenceVideo = &domain.EvidenceRef{URL: req.EvidenceVideo.URL, Name: req.EvidenceVideo.Name}
	}

	dispute, err := h.service.File(c.Context(), principal.User.ID, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": disputeSummary(dispute)})
}

// ListDisputes GET /disputes.
func (h *DisputesHandler) ListDisputes(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	filter := parseDisputeQuery(c)
	disputes, err := h.service.ListForUser(c.Context(), principal.User.ID, filter)
	if err != nil {
		return err
	}
	items := make([]dto.DisputeSummary, 0, len(disputes))
	for i := range disputes {
		items = append(items, disputeSummary(&disputes[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetDispute GET /disputes/:id.
func (h *DisputesHandler) GetDispute(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	detail, err := h.service.GetByID(c.Context(), principal.User.ID, domain.SubjectTypeUser, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": disputeDetail(detail)})
}

// AcceptDispute POST /disputes/:id/accept.
func (h *DisputesHandler) AcceptDispute(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	dispute, err := h.service.AcceptDispute(c.Context(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": disputeSummary(dispute)})
}

// CancelDispute POST /disputes/:id/cancel.
func (h *DisputesHandler) CancelDispute(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	dispute, err := h.service.CancelDispute(c.Context(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": disputeSummary(dispute)})
}

// Escalate POST /disputes/:id/escalate.
func (h *DisputesHandler) Escalate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	dispute, err := h.service.Escalate(c.Context(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": disputeSummary(dispute)})
}

// OfferPartialRefund POST /disputes/:id/offer.
func (h *DisputesHandler) OfferPartialRefund(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.PartialRefundOfferRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	amount, err := parseDecimal(req.Amount, "amount")
	if err != nil {
		return err
	}
	percentage, err := parseDecimal(req.Percentage, "percentage")
	if err != nil {
		return err
	}

	dispute, err := h.service.OfferPartialRefund(c.Context(), principal.User.ID, c.Params("id"), amount, percentage)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": disputeSummary(dispute)})
}

// RespondToPartialRefund POST /disputes/:id/offer/respond.
func (h *DisputesHandler) RespondToPartialRefund(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.PartialRefundResponseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	dispute, err := h.service.RespondToPartialRefund(c.Context(), principal.User.ID, c.Params("id"), req.Accept)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": disputeSummary(dispute)})
}

func parseDisputeQuery(c *fiber.Ctx) service.DisputeListFilter {
	filter := service.DisputeListFilter{}
	if stageStr := c.Query("stage"); stageStr != "" {
		for _, part := range strings.Split(stageStr, ",") {
			filter.Stages = append(filter.Stages, domain.DisputeStage(strings.TrimSpace(part)))
		}
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.DisputeStatus(strings.TrimSpace(part)))
		}
	}
	if categoryStr := c.Query("category"); categoryStr != "" {
		for _, part := range strings.Split(categoryStr, ",") {
			filter.Categories = append(filter.Categories, domain.DisputeCategory(strings.TrimSpace(part)))
		}
	}
	if kindStr := c.Query("reference_kind"); kindStr != "" {
		kind := domain.ReferenceKind(kindStr)
		filter.ReferenceKind = &kind
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseDecimal(val *string, field string) (*decimal.Decimal, error) {
	if val == nil || strings.TrimSpace(*val) == "" {
		return nil, nil
	}
	parsed, err := decimal.NewFromString(strings.TrimSpace(*val))
	if err != nil {
		return nil, apperrors.NewValidationError("invalid decimal value", map[string]any{"field": field})
	}
	return &parsed, nil
}

func evidenceRefs(refs []dto.EvidenceRefRequest) []domain.EvidenceRef {
	out := make([]domain.EvidenceRef, 0, len(refs))
	for _, ref := range refs {
		out = append(out, domain.EvidenceRef{URL: ref.URL, Name: ref.Name})
	}
	return out
}

func offerResponse(offer *domain.PartialRefundOffer) *dto.PartialRefundOfferResponse {
	if offer == nil {
		return nil
	}
	resp := &dto.PartialRefundOfferResponse{
		Amount:      offer.Amount.StringFixed(2),
		Status:      string(offer.Status),
		OfferedBy:   offer.OfferedBy,
		OfferedAt:   offer.OfferedAt,
		RespondedAt: offer.RespondedAt,
	}
	if offer.Percentage != nil {
		pct := offer.Percentage.String()
		resp.Percentage = &pct
	}
	return resp
}

func disputeSummary(dispute *domain.Dispute) dto.DisputeSummary {
	return dto.DisputeSummary{
		ID:            dispute.ID,
		ExternalKey:   dispute.ExternalKey,
		Category:      dispute.Category,
		ReferenceKind: dispute.ReferenceKind,
		ReferenceID:   dispute.ReferenceID,
		Stage:         dispute.Stage,
		Status:        dispute.Status,
		Outcome:       dispute.Outcome,
		Offer:         offerResponse(dispute.Offer),
		CreatedAt:     dispute.CreatedAt,
		UpdatedAt:     dispute.UpdatedAt,
	}
}

func disputeDetail(detail *service.DisputeWithParties) dto.DisputeDetailResponse {
	dispute := detail.Dispute
	history := make([]dto.DisputeHistoryResponse, 0, len(detail.History))
	for _, entry := range detail.History {
		history = append(history, dto.DisputeHistoryResponse{
			ID:         entry.ID,
			ActorType:  entry.ActorType,
			ActorID:    entry.ActorID,
			ChangeType: entry.ChangeType,
			OldValue:   entry.OldValue,
			NewValue:   entry.NewValue,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return dto.DisputeDetailResponse{
		ID:               dispute.ID,
		ExternalKey:      dispute.ExternalKey,
		Category:         dispute.Category,
		ReferenceKind:    dispute.ReferenceKind,
		ReferenceID:      dispute.ReferenceID,
		Filer:            dto.PartyResponse{ID: detail.Filer.ID, Name: detail.Filer.Name},
		Accused:          dto.PartyResponse{ID: detail.Accused.ID, Name: detail.Accused.Name},
		Description:      dispute.Description,
		EvidenceImages:   dispute.EvidenceImages,
		EvidenceVideo:    dispute.EvidenceVideo,
		ConversationID:   dispute.ConversationID,
		Stage:            dispute.Stage,
		Status:           dispute.Status,
		Offer:            offerResponse(dispute.Offer),
		Outcome:          dispute.Outcome,
		ResolutionReason: dispute.ResolutionReason,
		ResolvedBy:       dispute.ResolvedBy,
		CreatedAt:        dispute.CreatedAt,
		UpdatedAt:        dispute.UpdatedAt,
		ResolvedAt:       dispute.ResolvedAt,
		History:          history,
	}
}
