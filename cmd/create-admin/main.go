package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"github.com/jsonify/chess-club-2/internal/config"
	"github.com/jsonify/chess-club-2/internal/crypto"
	"github.com/jsonify/chess-club-2/internal/database"
	"github.com/jsonify/chess-club-2/internal/model"
	"github.com/jsonify/chess-club-2/internal/repository"
)

func main() {
	email := flag.String("email", "admin@club.local", "login email for the new user")
	password := flag.String("password", "dev-password", "initial password")
	firstName := flag.String("first-name", "Club", "first name")
	lastName := flag.String("last-name", "Admin", "last name")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	store := repository.NewStore(pool)

	if _, err := store.GetUserByEmail(ctx, *email); err == nil {
		fmt.Println("user already exists:", *email)
		return
	} else if !errors.Is(err, pgx.ErrNoRows) {
		log.Fatalf("user lookup failed: %v", err)
	}

	hash, err := crypto.HashPassword(*password)
	if err != nil {
		log.Fatalf("password hash failed: %v", err)
	}

	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        *email,
		PasswordHash: hash,
		FirstName:    *firstName,
		LastName:     *lastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := store.CreateUser(ctx, user); err != nil {
		log.Fatalf("user insert failed: %v", err)
	}

	fmt.Println("user created:", *email)
}
