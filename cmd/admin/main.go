// Package main provides admin management utilities for the directory.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"bizdir/internal/cache"
	"bizdir/internal/config"
	"bizdir/internal/database"
	"bizdir/internal/repository"
	"bizdir/internal/service"
)

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  admin promote <user_id>     - Grant the admin role")
	fmt.Println("  admin demote <user_id>      - Revoke the admin role")
	fmt.Println("  admin list-admins           - List all admins")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close() }()

	// Role changes must evict the API's cached copy of the account.
	cache.InitRedis(cfg.RedisURL)
	defer func() { _ = cache.Close() }()

	users := service.NewUserService(repository.NewStore(db))
	ctx := context.Background()

	switch command := os.Args[1]; command {
	case "promote", "demote":
		if len(os.Args) < 3 {
			fmt.Printf("Usage: admin %s <user_id>\n", command)
			os.Exit(1)
		}
		id, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil || id == 0 {
			fmt.Printf("Invalid user ID %q\n", os.Args[2])
			os.Exit(1)
		}
		if command == "promote" {
			err = promote(ctx, os.Stdout, users, uint(id))
		} else {
			err = demote(ctx, os.Stdout, users, uint(id))
		}
		if err != nil {
			log.Fatalf("%s failed: %v", command, err)
		}

	case "list-admins":
		if err := listAdmins(ctx, os.Stdout, users); err != nil {
			log.Fatalf("Failed to fetch admins: %v", err)
		}

	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func promote(ctx context.Context, out io.Writer, users *service.UserService, id uint) error {
	user, changed, err := users.SetAdmin(ctx, id, true)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintf(out, "User %s (ID: %d) is already an admin\n", user.Name, user.ID)
		return nil
	}
	fmt.Fprintf(out, "✅ Promoted %s (ID: %d) to admin\n", user.Name, user.ID)
	return nil
}

func demote(ctx context.Context, out io.Writer, users *service.UserService, id uint) error {
	user, changed, err := users.SetAdmin(ctx, id, false)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintf(out, "User %s (ID: %d) is not an admin\n", user.Name, user.ID)
		return nil
	}
	fmt.Fprintf(out, "✅ Demoted %s (ID: %d) to %s\n", user.Name, user.ID, user.Role)
	return nil
}

func listAdmins(ctx context.Context, out io.Writer, users *service.UserService) error {
	admins, err := users.ListAdmins(ctx)
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		fmt.Fprintln(out, "No admins found in the system")
		return nil
	}

	fmt.Fprintln(out, "\n📋 Current Admins:")
	fmt.Fprintln(out, "─────────────────────────────────────")
	for _, admin := range admins {
		fmt.Fprintf(out, "ID: %d | Name: %s | Email: %s\n", admin.ID, admin.Name, admin.Email)
	}
	fmt.Fprintln(out, "─────────────────────────────────────")
	return nil
}
