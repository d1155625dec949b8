package server

import (
	"bizdir/internal/models"
	"bizdir/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateCompany handles POST /api/companies
// @Summary Register a company
// @Description The company enters the review queue and is not listed until approved.
// @Tags companies
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body service.CompanyInput true "Company"
// @Success 201 {object} models.Company
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /companies [post]
func (s *Server) CreateCompany(c *fiber.Ctx) error {
	var in service.CompanyInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	company, err := s.listingService.CreateCompany(c.UserContext(), currentUserID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(company)
}

// CreateCertification handles POST /api/certifications
// @Summary Claim a certification
// @Tags certifications
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body service.CertificationInput true "Certification"
// @Success 201 {object} models.Certification
// @Failure 422 {object} models.ErrorResponse
// @Router /certifications [post]
func (s *Server) CreateCertification(c *fiber.Ctx) error {
	var in service.CertificationInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	cert, err := s.listingService.CreateCertification(c.UserContext(), currentUserID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(cert)
}

// CreateExperience handles POST /api/experiences
// @Summary Add a work-history entry
// @Tags experiences
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body service.ExperienceInput true "Experience"
// @Success 201 {object} models.Experience
// @Failure 422 {object} models.ErrorResponse
// @Router /experiences [post]
func (s *Server) CreateExperience(c *fiber.Ctx) error {
	var in service.ExperienceInput
	if err := parseBody(c, &in); err != nil {
		return nil
	}
	exp, err := s.listingService.CreateExperience(c.UserContext(), currentUserID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(exp)
}

// listMine serves GET on a content collection: the caller's entries in every status.
func (s *Server) listMine(kind models.ApprovableType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entries, err := s.listingService.ListMine(c.UserContext(), currentUserID(c), kind)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entries)
	}
}

func (s *Server) getListing(kind models.ApprovableType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}
		entry, err := s.listingService.Get(c.UserContext(), currentUserID(c), kind, id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entry)
	}
}

// updateListing decodes the kind's patch and routes it through resubmission.
func (s *Server) updateListing(kind models.ApprovableType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}
		patch, err := models.NewPatch(kind)
		if err != nil {
			return respondError(c, err)
		}
		if err := parseBody(c, patch); err != nil {
			return nil
		}

		updated, err := s.listingService.Update(c.UserContext(), currentUserID(c), kind, id, patch)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(updated)
	}
}

func (s *Server) deleteListing(kind models.ApprovableType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := s.parseID(c, "id")
		if err != nil {
			return nil
		}
		if err := s.listingService.Delete(c.UserContext(), currentUserID(c), kind, id); err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetDirectoryCompanies handles GET /api/directory/companies
// @Summary Approved companies
// @Tags directory
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.Company
// @Router /directory/companies [get]
func (s *Server) GetDirectoryCompanies(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	companies, err := s.listingService.DirectoryCompanies(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(companies)
}

// GetDirectorySalespeople handles GET /api/directory/salespeople
// @Summary Approved salespeople
// @Tags directory
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} service.SalespersonCard
// @Router /directory/salespeople [get]
func (s *Server) GetDirectorySalespeople(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	cards, err := s.listingService.DirectorySalespeople(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(cards)
}
