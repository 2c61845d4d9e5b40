// seed-admin creates or updates the administrator profile and user, and optionally a congregation.
// The administrator profile holds every capability, including access to all congregations.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	ADMIN_PASSWORD=... go run ./cmd/seed-admin -congregation "Sede" -phone "11 91234-5678"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tesouraria/church_backend/config"
	"github.com/tesouraria/church_backend/models"
)

func main() {
	username := flag.String("username", envOr("ADMIN_USERNAME", "tesourariaAdmin"), "admin username")
	name := flag.String("name", envOr("ADMIN_NAME", "Administrador"), "admin display name")
	congregation := flag.String("congregation", "", "congregation to create (optional)")
	phone := flag.String("phone", "", "congregation phone, validated for region BR (optional)")
	timezone := flag.String("timezone", config.DefaultTimezone(), "congregation timezone")
	migrate := flag.Bool("migrate", false, "run AutoMigrate before seeding")
	flag.Parse()

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "ADMIN_PASSWORD is required")
		os.Exit(2)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if *migrate {
		models.MigrateTable()
	}

	result, err := models.SeedAdmin(ctx, db, models.SeedAdminInput{
		Username:          *username,
		Password:          password,
		Name:              *name,
		CongregationName:  *congregation,
		CongregationPhone: *phone,
		Timezone:          *timezone,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed admin: %v\n", err)
		os.Exit(1)
	}

	// the cached principal would keep the old capabilities until it expires
	if os.Getenv("REDIS_ADDRESS") != "" {
		config.ConnectRedisWithRetry()
		_ = models.ClearPrincipalCache(ctx, *username)
	}

	action := "Updated"
	if result.UserCreated {
		action = "Created"
	}
	fmt.Printf("%s admin user: username=%q profile_id=%d\n", action, *username, result.ProfileId)
	if result.CongregationId > 0 {
		fmt.Printf("Congregation id=%d linked to %q\n", result.CongregationId, *username)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
