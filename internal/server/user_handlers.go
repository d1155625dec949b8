package server

import (
	"bizdir/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetMe handles GET /api/me
// @Summary Current account
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Router /me [get]
func (s *Server) GetMe(c *fiber.Ctx) error {
	user, err := s.userRepo.GetByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateMe handles PUT /api/me. Contact details never reopen a salesperson
// application; reapplying goes through /api/salesperson/apply.
// @Summary Update account contact details
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.UserPatch true "Changed fields"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /me [put]
func (s *Server) UpdateMe(c *fiber.Ctx) error {
	var patch models.UserPatch
	if err := parseBody(c, &patch); err != nil {
		return nil
	}

	userID := currentUserID(c)
	updated, err := s.approvalService.Resubmit(c.UserContext(), userID, models.ApprovableUser, userID, &patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}
