package server

import (
	"strings"
	"time"

	"bizdir/internal/models"
	"bizdir/internal/service"

	"github.com/gofiber/fiber/v2"
)

type rejectRequest struct {
	Reason          string `json:"reason"`
	ReapplyDays     *int   `json:"reapply_days"`
	ExpectedVersion *int   `json:"expected_version"`
}

// PendingItem is one row of the admin review queue.
type PendingItem struct {
	Kind        models.ApprovableType `json:"kind"`
	ID          uint                  `json:"id"`
	OwnerID     uint                  `json:"owner_id"`
	SubmittedAt time.Time             `json:"submitted_at"`
	Version     int                   `json:"version"`
	Entry       models.Approvable     `json:"entry"`
}

// ApproveEntry handles POST /api/admin/approvals/:kind/:id/approve
// @Summary Approve a pending entry
// @Tags approvals
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param kind path string true "user, company, certification, experience or salesperson_profile"
// @Param id path int true "Entry ID"
// @Param request body object{expected_version=int} false "Optimistic concurrency guard"
// @Success 200 {object} object
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/approvals/{kind}/{id}/approve [post]
func (s *Server) ApproveEntry(c *fiber.Ctx) error {
	kind, err := s.parseKind(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		ExpectedVersion *int `json:"expected_version"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}

	entry, err := s.approvalService.Approve(c.UserContext(), currentActor(c), kind, id,
		service.TransitionOptions{ExpectedVersion: req.ExpectedVersion})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entry)
}

// RejectEntry handles POST /api/admin/approvals/:kind/:id/reject
// @Summary Reject an entry with a reason
// @Description Rejecting a salesperson application demotes the applicant and starts the reapply cooldown.
// @Tags approvals
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param kind path string true "Approvable kind"
// @Param id path int true "Entry ID"
// @Param request body object{reason=string,reapply_days=int,expected_version=int} true "Rejection"
// @Success 200 {object} object
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /admin/approvals/{kind}/{id}/reject [post]
func (s *Server) RejectEntry(c *fiber.Ctx) error {
	kind, err := s.parseKind(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req rejectRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	entry, err := s.approvalService.Reject(c.UserContext(), currentActor(c), kind, id, req.Reason,
		service.TransitionOptions{ExpectedVersion: req.ExpectedVersion, ReapplyDays: req.ReapplyDays})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entry)
}

// GetPendingApprovals handles GET /api/admin/approvals/pending?kind=
// @Summary Review queue
// @Description Pending entries, oldest submission first. kind accepts a comma-separated list.
// @Tags approvals
// @Security BearerAuth
// @Produce json
// @Param kind query string false "Filter by kind"
// @Success 200 {array} PendingItem
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/approvals/pending [get]
func (s *Server) GetPendingApprovals(c *fiber.Ctx) error {
	var kinds []models.ApprovableType
	for _, raw := range strings.Split(c.Query("kind"), ",") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		kind, err := models.ParseApprovableType(raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest, err)
		}
		kinds = append(kinds, kind)
	}

	entries, err := s.approvalService.ListPending(c.UserContext(), kinds...)
	if err != nil {
		return respondError(c, err)
	}

	items := make([]PendingItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, PendingItem{
			Kind:        e.ApprovableType(),
			ID:          e.ApprovableID(),
			OwnerID:     e.OwnerID(),
			SubmittedAt: e.SubmittedAt(),
			Version:     e.RowVersion(),
			Entry:       e,
		})
	}
	return c.JSON(items)
}

// GetApprovalHistory handles GET /api/admin/approvals/:kind/:id/history
// @Summary Decision history of one entry
// @Tags approvals
// @Security BearerAuth
// @Produce json
// @Param kind path string true "Approvable kind"
// @Param id path int true "Entry ID"
// @Success 200 {array} models.ApprovalLog
// @Router /admin/approvals/{kind}/{id}/history [get]
func (s *Server) GetApprovalHistory(c *fiber.Ctx) error {
	kind, err := s.parseKind(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	entries, err := s.approvalService.History(c.UserContext(), kind, id)
	if err != nil {
		return respondError(c, err)
	}
	if entries == nil {
		entries = []models.ApprovalLog{}
	}
	return c.JSON(entries)
}

// GetApprovalStats handles GET /api/admin/approvals/stats
// @Summary Pending counts per kind
// @Tags approvals
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{total=int}
// @Router /admin/approvals/stats [get]
func (s *Server) GetApprovalStats(c *fiber.Ctx) error {
	counts, err := s.approvalService.PendingCounts(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}

	pending := make(map[string]int64, len(models.ApprovableTypes()))
	var total int64
	for _, kind := range models.ApprovableTypes() {
		pending[string(kind)] = counts[kind]
		total += counts[kind]
	}
	return c.JSON(fiber.Map{
		"pending": pending,
		"total":   total,
	})
}
