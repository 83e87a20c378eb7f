package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"lab-management-platform/internal/config"
	"lab-management-platform/internal/database"
	"lab-management-platform/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/migrate/main.go [up|down|status]")
		os.Exit(1)
	}

	command := os.Args[1]
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.NewLogger(cfg)
	migrator := database.NewMigrator(cfg, appLogger)

	switch command {
	case "up":
		fmt.Printf("Migrating %s store...\n", cfg.Store.Driver)
		if err := migrator.Up(ctx); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		fmt.Println("Migrations completed successfully")

	case "down":
		fmt.Println("Dropping store tables...")
		if err := migrator.Down(ctx); err != nil {
			log.Fatalf("Failed to rollback migrations: %v", err)
		}
		fmt.Println("Migrations rolled back successfully")

	case "status":
		st, err := database.NewStore(ctx, cfg, appLogger)
		if err != nil {
			log.Fatalf("Store unavailable: %v", err)
		}
		defer st.Close()

		fmt.Printf("Store status:\n")
		fmt.Printf("  Driver: %s\n", cfg.Store.Driver)
		fmt.Printf("  Max transaction items: %d\n", st.MaxTransactItems())
		fmt.Println("Store is reachable")

	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Available commands: up, down, status")
		os.Exit(1)
	}
}
