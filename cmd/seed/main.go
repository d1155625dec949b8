// Command main fills the directory database with demo owners, listings and
// moderation history.
package main

import (
	"context"
	"flag"
	"log"
	"sort"

	"bizdir/internal/config"
	"bizdir/internal/database"
	"bizdir/internal/models"
	"bizdir/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()

	numUsers := flag.Int("users", defaults.NumUsers, "Number of owners to create")
	applyRatio := flag.Float64("apply", defaults.ApplyRatio, "Share of owners that apply to become salespeople")
	approveRatio := flag.Float64("approve", defaults.ApproveRatio, "Share of pending entries to approve")
	rejectRatio := flag.Float64("reject", defaults.RejectRatio, "Share of pending entries to reject")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Build the data set in memory without writing")
	fast := flag.Bool("fast", false, "Use the minimum bcrypt cost for demo passwords")
	randomSeed := flag.Int64("seed", 0, "Random seed for reproducible runs (0 picks one)")
	flag.Parse()

	if *approveRatio+*rejectRatio > 1 {
		log.Fatalf("-approve plus -reject must not exceed 1 (got %.2f)", *approveRatio+*rejectRatio)
	}

	log.Println("🌱 Directory Seeder")
	log.Println("===================")
	log.Printf("Target: %d owners, apply=%.2f approve=%.2f reject=%.2f clean=%v dry-run=%v\n",
		*numUsers, *applyRatio, *approveRatio, *rejectRatio, *shouldClean, *dryRun)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close() }()

	opts := seed.Options{
		NumUsers:     *numUsers,
		ApplyRatio:   *applyRatio,
		ApproveRatio: *approveRatio,
		RejectRatio:  *rejectRatio,
		ShouldClean:  *shouldClean,
		SkipBcrypt:   *fast,
		DryRun:       *dryRun,
		RandomSeed:   *randomSeed,
	}

	sum, err := seed.NewSeeder(db, opts).Run(context.Background())
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	kinds := make([]string, 0, len(sum.Created))
	for kind := range sum.Created {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		log.Printf("  %-20s %d", kind, sum.Created[models.ApprovableType(kind)])
	}

	if *dryRun {
		return
	}
	log.Println("✨ All done! Your database is now populated with demo data.")
	log.Printf("📧 All demo owners have the password: %s", seed.DemoPassword)
	log.Printf("🛡️  Pending entries can be reviewed as %s", seed.ReviewerEmail)
}
