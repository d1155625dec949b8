package seed

import (
	"context"
	"fmt"
	"log"
	"strings"

	"bizdir/internal/database"
	"bizdir/internal/models"
	"bizdir/internal/rbac"
	"bizdir/internal/reapply"
	"bizdir/internal/repository"
	"bizdir/internal/service"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewerEmail is the admin account that signs seeded decisions.
const ReviewerEmail = "reviewer@example.test"

// Options configuration for the seeder
type Options struct {
	NumUsers int
	// ApplyRatio is the share of users that apply to become salespeople.
	ApplyRatio float64
	// ApproveRatio and RejectRatio split the pending queue; the rest stays pending.
	ApproveRatio float64
	RejectRatio  float64
	ShouldClean  bool
	SkipBcrypt   bool
	DryRun       bool
	// RandomSeed makes runs reproducible when non-zero.
	RandomSeed int64
}

// DefaultOptions returns the preset used by cmd/seed.
func DefaultOptions() Options {
	return Options{
		NumUsers:     20,
		ApplyRatio:   0.4,
		ApproveRatio: 0.6,
		RejectRatio:  0.15,
	}
}

// Summary reports what a run created and decided.
type Summary struct {
	Users    int
	Created  map[models.ApprovableType]int
	Approved int
	Rejected int
	Pending  int
}

// Seeder drives the real services so seeded rows carry consistent approval
// state and audit history.
type Seeder struct {
	db        *gorm.DB
	opts      Options
	factory   *Factory
	approvals *service.ApprovalService
	sales     *service.SalespersonService
	listings  *service.ListingService
}

// NewSeeder creates a new Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	store := repository.NewStore(db)
	approvals := service.NewApprovalService(store, service.ApprovalConfig{ReapplyDays: reapply.DefaultCooldownDays})
	return &Seeder{
		db:        db,
		opts:      opts,
		factory:   NewFactory(db, opts),
		approvals: approvals,
		sales:     service.NewSalespersonService(store, nil, nil),
		listings:  service.NewListingService(store, approvals, nil),
	}
}

// Run populates the database with demo data.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	log.Printf("🌱 Starting database seeding with %d users...", s.opts.NumUsers)
	sum := &Summary{Created: make(map[models.ApprovableType]int)}

	if s.opts.ShouldClean && !s.opts.DryRun {
		if err := clearData(s.db); err != nil {
			return nil, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	if s.opts.DryRun {
		return s.plan(sum)
	}

	reviewer, err := s.ensureReviewer()
	if err != nil {
		return nil, fmt.Errorf("failed to create reviewer: %w", err)
	}

	for i := 0; i < s.opts.NumUsers; i++ {
		user, err := s.factory.CreateUser(i)
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		sum.Users++
		if err := s.populate(ctx, user, i, sum); err != nil {
			return nil, err
		}
	}
	log.Printf("✓ %d users created", sum.Users)

	if err := s.decide(ctx, rbac.ActorFromUser(reviewer), sum); err != nil {
		return nil, err
	}
	log.Printf("✓ %d approved, %d rejected, %d left pending", sum.Approved, sum.Rejected, sum.Pending)

	log.Println("🎉 Database seeding completed successfully!")
	return sum, nil
}

func (s *Seeder) populate(ctx context.Context, user *models.User, seq int, sum *Summary) error {
	f := s.factory
	for n := f.between(0, 2); n > 0; n-- {
		if _, err := s.listings.CreateCompany(ctx, user.ID, f.BuildCompany(seq*10+n)); err != nil {
			return fmt.Errorf("failed to create company: %w", err)
		}
		sum.Created[models.ApprovableCompany]++
	}
	for n := f.between(0, 2); n > 0; n-- {
		if _, err := s.listings.CreateCertification(ctx, user.ID, f.BuildCertification()); err != nil {
			return fmt.Errorf("failed to create certification: %w", err)
		}
		sum.Created[models.ApprovableCertification]++
	}
	for n := f.between(1, 3); n > 0; n-- {
		if _, err := s.listings.CreateExperience(ctx, user.ID, f.BuildExperience()); err != nil {
			return fmt.Errorf("failed to create experience: %w", err)
		}
		sum.Created[models.ApprovableExperience]++
	}
	if f.roll(s.opts.ApplyRatio) {
		if _, err := s.sales.Apply(ctx, user.ID, f.BuildApplication(user)); err != nil {
			return fmt.Errorf("failed to file application: %w", err)
		}
		sum.Created[models.ApprovableUser]++
		sum.Created[models.ApprovableSalespersonProfile]++
	}
	return nil
}

// decide walks the queue oldest first and approves or rejects a share of it.
func (s *Seeder) decide(ctx context.Context, reviewer rbac.Actor, sum *Summary) error {
	pending, err := s.approvals.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending entries: %w", err)
	}
	for _, entry := range pending {
		kind, id := entry.ApprovableType(), entry.ApprovableID()
		r := s.factory.rng.Float64()
		switch {
		case r < s.opts.ApproveRatio:
			if _, err := s.approvals.Approve(ctx, reviewer, kind, id, service.TransitionOptions{}); err != nil {
				return fmt.Errorf("failed to approve %s %d: %w", kind, id, err)
			}
			sum.Approved++
		case r < s.opts.ApproveRatio+s.opts.RejectRatio:
			reason := s.factory.RejectionReason()
			if _, err := s.approvals.Reject(ctx, reviewer, kind, id, reason, service.TransitionOptions{}); err != nil {
				return fmt.Errorf("failed to reject %s %d: %w", kind, id, err)
			}
			sum.Rejected++
		default:
			sum.Pending++
		}
	}
	return nil
}

// plan builds everything in memory and reports the counts without writing.
func (s *Seeder) plan(sum *Summary) (*Summary, error) {
	f := s.factory
	for i := 0; i < s.opts.NumUsers; i++ {
		user, err := f.CreateUser(i)
		if err != nil {
			return nil, err
		}
		sum.Users++
		for n := f.between(0, 2); n > 0; n-- {
			in := f.BuildCompany(i*10 + n)
			log.Printf("[dry-run] company %q (%s) for user %d", in.Name, in.TaxID, user.ID)
			sum.Created[models.ApprovableCompany]++
		}
		sum.Created[models.ApprovableCertification] += f.between(0, 2)
		sum.Created[models.ApprovableExperience] += f.between(1, 3)
		if f.roll(s.opts.ApplyRatio) {
			sum.Created[models.ApprovableUser]++
			sum.Created[models.ApprovableSalespersonProfile]++
		}
	}
	log.Printf("[dry-run] %d users planned, nothing written", sum.Users)
	return sum, nil
}

// ensureReviewer upserts the admin account used to sign seeded decisions.
func (s *Seeder) ensureReviewer() (*models.User, error) {
	hash, err := s.factory.passwordHash()
	if err != nil {
		return nil, err
	}
	reviewer := models.User{
		Name:     "Directory Reviewer",
		Email:    ReviewerEmail,
		Password: hash,
		Role:     models.RoleAdmin,
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
	}).Create(&reviewer).Error; err != nil {
		return nil, err
	}
	if err := s.db.Where("email = ?", ReviewerEmail).First(&reviewer).Error; err != nil {
		return nil, err
	}
	return &reviewer, nil
}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	persistent := database.PersistentModels()
	if db.Dialector.Name() == "postgres" {
		tables := make([]string, 0, len(persistent))
		for _, m := range persistent {
			stmt := &gorm.Statement{DB: db}
			if err := stmt.Parse(m); err != nil {
				return err
			}
			tables = append(tables, stmt.Schema.Table)
		}
		return db.Exec("TRUNCATE TABLE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE").Error
	}
	for i := len(persistent) - 1; i >= 0; i-- {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(persistent[i]).Error; err != nil {
			return err
		}
	}
	return nil
}
