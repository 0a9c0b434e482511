package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/localmind/backend/internal/auth"
	"github.com/localmind/backend/internal/config"
	"github.com/localmind/backend/internal/database"
	"github.com/localmind/backend/internal/logger"
	"github.com/localmind/backend/internal/repository"
	"github.com/localmind/backend/internal/seed"
	"go.uber.org/zap"
)

func usage() {
	fmt.Println("Usage: seed [seed|wipe|token] <uid>")
	fmt.Println("  seed  - Create fake conversations owned by uid")
	fmt.Println("  wipe  - Remove every conversation and message owned by uid")
	fmt.Println("  token - Print a development bearer token for uid (AUTH_MODE=jwt only)")
	os.Exit(1)
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using system environment variables")
	}

	if len(os.Args) < 3 || os.Args[2] == "" {
		usage()
	}
	command, uid := os.Args[1], os.Args[2]

	if err := logger.Initialize(getEnv("LOG_LEVEL", "info"), ""); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	cfg, err := config.Load()
	if err != nil {
		logger.FatalWithFields("Failed to load configuration", err)
	}

	switch command {
	case "seed":
		seedUser(cfg, uid)
	case "wipe":
		wipeUser(cfg, uid)
	case "token":
		printToken(cfg, uid)
	default:
		usage()
	}
}

func openRepo(cfg *config.Config) repository.ConversationRepository {
	if err := database.Initialize(cfg.Database, false); err != nil {
		logger.FatalWithFields("Failed to connect to database", err)
	}
	if err := database.Migrate(); err != nil {
		logger.FatalWithFields("Failed to run migrations", err)
	}
	return repository.NewConversationRepository(database.DB)
}

func seedUser(cfg *config.Config, uid string) {
	repo := openRepo(cfg)
	defer database.Close()

	convs, err := seed.NewSeeder(repo, 0).Seed(context.Background(), uid)
	if err != nil {
		logger.FatalWithFields("Seeding failed", err)
	}
	logger.Log.Info("Seeding complete", logger.WithUserID(uid), zap.Int("conversations", len(convs)))
}

func wipeUser(cfg *config.Config, uid string) {
	repo := openRepo(cfg)
	defer database.Close()

	if _, err := seed.NewSeeder(repo, 0).Wipe(context.Background(), uid); err != nil {
		logger.FatalWithFields("Wipe failed", err)
	}
}

func printToken(cfg *config.Config, uid string) {
	if cfg.Auth.Mode != config.AuthModeJWT {
		logger.Log.Fatal("Development tokens need AUTH_MODE=jwt", zap.String("auth_mode", cfg.Auth.Mode))
	}
	token, err := auth.NewHMACVerifier(cfg.Auth.JWTSecret).IssueToken(auth.Identity{UID: uid}, 24*time.Hour)
	if err != nil {
		logger.FatalWithFields("Failed to issue token", err)
	}
	fmt.Println(token)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
