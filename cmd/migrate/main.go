package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"checklist/config"
	"checklist/database"
	"checklist/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("Failed to connect", "error", err)
	}
	defer db.Close()

	names, err := database.MigrationNames()
	if err != nil {
		log.Fatal("Failed to read migrations", "error", err)
	}
	log.Info("Embedded migrations", "count", len(names))

	applied, err := db.Migrate(ctx)
	if err != nil {
		log.Fatal("Migration failed", "error", err)
	}

	for _, name := range applied {
		fmt.Printf("✓ %s\n", name)
	}
	if len(applied) == 0 {
		fmt.Println("Database is up to date")
		return
	}
	fmt.Println("\nAll migrations completed!")
}
