package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/localmind/backend/internal/config"
	"github.com/localmind/backend/internal/database"
	"github.com/localmind/backend/internal/logger"
	"github.com/localmind/backend/internal/models"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "up":
		runMigrationsUp()
	case "status":
		showStatus()
	default:
		fmt.Println("Usage: migrate [up|status]")
		fmt.Println("  up     - Create or update the conversation and message tables")
		fmt.Println("  status - Show which tables exist and how many rows they hold")
		os.Exit(1)
	}
}

func connect() {
	// MigrateDB logs through the shared logger
	if err := logger.Initialize(getEnv("LOG_LEVEL", "info"), ""); err != nil {
		log.Fatalf("❌ Failed to initialize logger: %v", err)
	}

	cfg, err := config.LoadDatabase()
	if err != nil {
		log.Fatalf("❌ Invalid database configuration: %v", err)
	}

	log.Printf("🔄 Connecting to %s database...", cfg.Driver)
	if err := database.Initialize(cfg, false); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	log.Println("✅ Database connected")
}

func runMigrationsUp() {
	connect()
	defer database.Close()

	log.Println("📈 Running migrations...")
	if err := database.Migrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ All migrations completed successfully!")
}

func showStatus() {
	connect()
	defer database.Close()

	migrator := database.DB.Migrator()
	for _, table := range []struct {
		name  string
		model any
	}{
		{"conversations", &models.Conversation{}},
		{"messages", &models.Message{}},
	} {
		if !migrator.HasTable(table.model) {
			log.Printf("⚠️  %s: missing (run 'migrate up')", table.name)
			continue
		}
		var count int64
		if err := database.DB.Model(table.model).Count(&count).Error; err != nil {
			log.Printf("❌ %s: %v", table.name, err)
			continue
		}
		log.Printf("✅ %s: %d rows", table.name, count)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
