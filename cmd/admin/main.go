// Package main provides account role utilities for the village portal.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"sigede/internal/config"
	"sigede/internal/database"
	"sigede/internal/models"
	"sigede/internal/repository"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin/main.go set-role <user_id> <warga|kadus|admin>  - Change a user's role")
		fmt.Println("  go run ./cmd/admin/main.go list <warga|kadus|admin>                - List users with a role")
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
	users := repository.NewUserRepository(db)
	ctx := context.Background()

	command := os.Args[1]

	switch command {
	case "set-role":
		if len(os.Args) < 4 {
			fmt.Println("Usage: go run ./cmd/admin/main.go set-role <user_id> <warga|kadus|admin>")
			os.Exit(1)
		}
		setRole(ctx, users, os.Args[2], os.Args[3])

	case "list":
		role := string(models.RoleAdmin)
		if len(os.Args) >= 3 {
			role = os.Args[2]
		}
		listRole(ctx, users, role)

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func parseRole(raw string) models.UserRole {
	role := models.UserRole(raw)
	if !role.Valid() {
		fmt.Printf("Unknown role %q (want warga, kadus or admin)\n", raw)
		os.Exit(1)
	}
	return role
}

func setRole(ctx context.Context, users repository.UserRepository, rawID, rawRole string) {
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		fmt.Printf("Invalid user ID %q\n", rawID)
		os.Exit(1)
	}
	role := parseRole(rawRole)

	user, err := users.SetRole(ctx, uint(id), role)
	if err != nil {
		if models.HasCode(err, models.CodeNotFound) {
			fmt.Printf("User with ID %s not found\n", rawID)
			os.Exit(1)
		}
		log.Fatalf("Failed to change role: %v", err)
	}

	fmt.Printf("✅ %s (ID: %d) is now %s\n", user.Username, user.ID, user.Role)
}

func listRole(ctx context.Context, users repository.UserRepository, rawRole string) {
	role := parseRole(rawRole)
	list, err := users.ListByRole(ctx, role, 500, 0)
	if err != nil {
		log.Fatalf("Failed to fetch users: %v", err)
	}

	if len(list) == 0 {
		fmt.Printf("No %s accounts found\n", role)
		return
	}

	fmt.Printf("\n📋 %s accounts:\n", role)
	fmt.Println("─────────────────────────────────────")
	for _, u := range list {
		fmt.Printf("ID: %d | Username: %s | Email: %s | Name: %s\n", u.ID, u.Username, u.Email, u.DisplayName)
	}
	fmt.Println("─────────────────────────────────────")
}
