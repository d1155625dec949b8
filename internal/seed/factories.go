// Package seed provides helpers to create demo data for the directory
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"bizdir/internal/models"
	"bizdir/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "Demo-Password-1"

var industries = []string{
	"HVAC", "Plumbing", "Electrical", "Roofing", "Commercial Cleaning",
	"Industrial Supply", "Logistics", "Office Equipment", "Security Systems",
	"Solar", "Landscaping", "Medical Devices", "Packaging", "Software",
}

var certificationIssuers = []string{
	"National Association of Sales Professionals",
	"Board of Trade",
	"Institute of Supply Management",
	"Chamber of Commerce",
	"Manufacturers' Agents National Association",
}

// Factory builds directory entities with realistic fake data. Builders never
// touch the database; CreateUser persists accounts directly.
type Factory struct {
	db     *gorm.DB
	opts   Options
	faker  *gofakeit.Faker
	rng    *rand.Rand
	hash   string
	nextID uint
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	//nolint:gosec // Weak random number generator is fine for seeding
	return &Factory{
		db:     db,
		opts:   opts,
		faker:  gofakeit.New(seed),
		rng:    rand.New(rand.NewSource(seed)),
		nextID: 1000,
	}
}

func (f *Factory) passwordHash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return "", err
	}
	f.hash = string(hashed)
	return f.hash, nil
}

// BuildUser constructs a general account. seq keeps emails unique.
func (f *Factory) BuildUser(seq int, overrides ...func(*models.User)) *models.User {
	first, last := f.faker.FirstName(), f.faker.LastName()
	user := &models.User{
		Name:  first + " " + last,
		Email: strings.ToLower(fmt.Sprintf("%s.%s.%d@example.test", first, last, seq)),
		Phone: f.faker.Phone(),
		Role:  models.RoleUser,
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

// CreateUser builds and persists a user with the demo password.
func (f *Factory) CreateUser(seq int, overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(seq, overrides...)
	hash, err := f.passwordHash()
	if err != nil {
		return nil, err
	}
	user.Password = hash

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s <%s>", user.Name, user.Email)
		return user, nil
	}
	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildCompany returns a company registration. seq keeps tax ids unique.
func (f *Factory) BuildCompany(seq int) service.CompanyInput {
	addr := f.faker.Address()
	name := f.faker.Company()
	return service.CompanyInput{
		Name:        name,
		TaxID:       fmt.Sprintf("%02d-%07d", f.rng.Intn(100), seq),
		Industry:    industries[f.rng.Intn(len(industries))],
		Address:     addr.Address,
		Phone:       f.faker.Phone(),
		Website:     "https://" + slug(name) + ".example",
		Description: f.faker.Sentence(14),
	}
}

// BuildCertification returns a credential claim with file metadata only.
func (f *Factory) BuildCertification() service.CertificationInput {
	issued := f.faker.DateRange(time.Now().AddDate(-8, 0, 0), time.Now().AddDate(0, -1, 0))
	expires := issued.AddDate(3, 0, 0)
	file := strings.ToLower(f.faker.LetterN(6))
	return service.CertificationInput{
		Name:         "Certified " + f.faker.JobDescriptor() + " Sales Specialist",
		Issuer:       certificationIssuers[f.rng.Intn(len(certificationIssuers))],
		CredentialID: strings.ToUpper(f.faker.Numerify("CRT-######")),
		IssuedAt:     &issued,
		ExpiresAt:    &expires,
		FileName:     file + ".pdf",
		FileMime:     "application/pdf",
	}
}

// BuildExperience returns a work-history entry; roughly a third are current.
func (f *Factory) BuildExperience() service.ExperienceInput {
	start := f.faker.DateRange(time.Now().AddDate(-20, 0, 0), time.Now().AddDate(-1, 0, 0))
	in := service.ExperienceInput{
		Company:     f.faker.Company(),
		Position:    f.faker.JobTitle(),
		StartDate:   start,
		Description: f.faker.Sentence(12),
	}
	if f.rng.Intn(3) != 0 {
		end := f.faker.DateRange(start.AddDate(0, 3, 0), time.Now())
		in.EndDate = &end
	}
	return in
}

// BuildApplication returns a salesperson application for user.
func (f *Factory) BuildApplication(user *models.User) service.ApplyInput {
	regions := []string{f.faker.State(), f.faker.State()}
	return service.ApplyInput{
		FullName:       user.Name,
		Phone:          user.Phone,
		Bio:            f.faker.Paragraph(1, 3, 10, " "),
		Specialties:    strings.Join([]string{industries[f.rng.Intn(len(industries))], industries[f.rng.Intn(len(industries))]}, ", "),
		ServiceRegions: strings.Join(regions, ", "),
	}
}

// RejectionReason picks a plausible moderator note.
func (f *Factory) RejectionReason() string {
	reasons := []string{
		"Tax id does not match public records",
		"Certificate scan is unreadable",
		"Company website is unreachable",
		"Please provide a licence number",
		"Duplicate of an existing listing",
	}
	return reasons[f.rng.Intn(len(reasons))]
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "company"
	}
	return b.String()
}

// roll reports true with probability p.
func (f *Factory) roll(p float64) bool {
	return f.rng.Float64() < p
}

// between returns an int in [lo, hi].
func (f *Factory) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + f.rng.Intn(hi-lo+1)
}
