package server

import (
	"bizdir/internal/models"
	"bizdir/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ApplySalesperson handles POST /api/salesperson/apply
// @Summary Apply for the salesperson role
// @Description Files a salesperson application. Rejected applicants must wait for the reapply date.
// @Tags salesperson
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body service.ApplyInput true "Application"
// @Success 200 {object} service.SalespersonStatus
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /salesperson/apply [post]
func (s *Server) ApplySalesperson(c *fiber.Ctx) error {
	var in service.ApplyInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}

	status, err := s.salespersonService.Apply(c.UserContext(), currentUserID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(status)
}

// GetSalespersonStatus handles GET /api/salesperson/status
// @Summary Salesperson application status
// @Tags salesperson
// @Security BearerAuth
// @Produce json
// @Success 200 {object} service.SalespersonStatus
// @Router /salesperson/status [get]
func (s *Server) GetSalespersonStatus(c *fiber.Ctx) error {
	status, err := s.salespersonService.Status(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(status)
}

// GetMyProfile handles GET /api/salesperson/profile
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.myProfile(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// CreateProfile handles POST /api/salesperson/profile
// @Summary Create the caller's salesperson profile
// @Tags salesperson
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body service.ProfileInput true "Profile"
// @Success 201 {object} models.SalespersonProfile
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /salesperson/profile [post]
func (s *Server) CreateProfile(c *fiber.Ctx) error {
	var in service.ProfileInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}

	profile, err := s.listingService.CreateProfile(c.UserContext(), currentUserID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(profile)
}

// UpdateMyProfile handles PUT /api/salesperson/profile. Substantive edits
// send the profile back to review.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	profile, err := s.myProfile(c)
	if err != nil {
		return respondError(c, err)
	}

	var patch models.SalespersonProfilePatch
	if err := parseBody(c, &patch); err != nil {
		return nil
	}

	updated, err := s.listingService.Update(c.UserContext(), currentUserID(c),
		models.ApprovableSalespersonProfile, profile.ApprovableID(), &patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}

// DeleteMyProfile handles DELETE /api/salesperson/profile
func (s *Server) DeleteMyProfile(c *fiber.Ctx) error {
	profile, err := s.myProfile(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := s.listingService.Delete(c.UserContext(), currentUserID(c),
		models.ApprovableSalespersonProfile, profile.ApprovableID()); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) myProfile(c *fiber.Ctx) (models.Approvable, error) {
	userID := currentUserID(c)
	profiles, err := s.listingService.ListMine(c.UserContext(), userID, models.ApprovableSalespersonProfile)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, models.NewNotFoundError("Salesperson profile for user", userID)
	}
	return profiles[0], nil
}
