// Command chargers-token mints bearer tokens for local testing against chargers-service.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	libconfig "chargehub/backend/libs/config"
	"chargehub/backend/services/chargers-service/internal/auth"
	"chargehub/backend/services/chargers-service/internal/config"
)

func main() {
	userFlag := flag.String("user", "", "user id (random when empty)")
	role := flag.String("role", "", "role claim, e.g. operator")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to jwt.ttl)")
	flag.Parse()

	if err := run(*userFlag, *role, *ttl); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(user, role string, ttl time.Duration) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	cfg := config.Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return err
	}
	if cfg.JWT.Secret == "" {
		return errors.New("CHARGERS_JWT_SECRET is not set")
	}
	if ttl <= 0 {
		ttl = cfg.JWT.TTL
	}

	userID := uuid.New()
	if user != "" {
		parsed, err := uuid.Parse(user)
		if err != nil {
			return fmt.Errorf("invalid -user: %w", err)
		}
		userID = parsed
	}

	token, err := auth.NewTokenService(cfg.JWT.Secret, ttl).GenerateToken(userID, role)
	if err != nil {
		return err
	}
	fmt.Printf("user_id=%s\n%s\n", userID, token)
	return nil
}
