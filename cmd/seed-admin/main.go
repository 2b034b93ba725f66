// seed-admin creates the lookup rows a fresh database needs and creates or
// updates the console admin (user type "Admin").
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	ADMIN_EMAIL=admin@example.com ADMIN_PASSWORD=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultAdminEmail = "admin@hrcrm.local"
	adminFirstName    = "HR"
	adminLastName     = "Admin"
)

var (
	seedUserTypes = []string{"Admin", "Recruiter", "Interviewer"}
	seedPositions = []string{"Manager", "Executive", "Intern"}
	seedGenders   = []string{"Male", "Female", "Other"}
)

func seedLookups[T any](db *gorm.DB, names []string, build func(name string) T) error {
	for _, name := range names {
		row := build(name)
		if err := db.Where("name = ?", name).FirstOrCreate(&row).Error; err != nil {
			return fmt.Errorf("seed %q: %w", name, err)
		}
	}
	return nil
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if err := models.MigrateTable(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "Seed")
	ctx = utils.SetIsAdminInContext(ctx, true)
	db = db.WithContext(ctx)

	if err := seedLookups(db, seedUserTypes, func(n string) models.UserType { return models.UserType{Lookup: models.Lookup{Name: n}} }); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := seedLookups(db, seedPositions, func(n string) models.Position { return models.Position{Lookup: models.Lookup{Name: n}} }); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := seedLookups(db, seedGenders, func(n string) models.Gender { return models.Gender{Lookup: models.Lookup{Name: n}} }); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	email := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	if email == "" {
		email = defaultAdminEmail
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if len(password) < 6 {
		fmt.Fprintln(os.Stderr, "ADMIN_PASSWORD must be at least 6 characters")
		os.Exit(2)
	}

	var adminType models.UserType
	if err := db.Where("name = ?", "Admin").Take(&adminType).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup admin user type: %v\n", err)
		os.Exit(1)
	}
	var position models.Position
	if err := db.Where("name = ?", "Manager").Take(&position).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup position: %v\n", err)
		os.Exit(1)
	}

	hashed, err := utils.HashPasswordString(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err = db.Where("email = ?", email).Take(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			FirstName:  adminFirstName,
			LastName:   adminLastName,
			Email:      email,
			Password:   hashed,
			UserTypeId: adminType.ID,
			PositionId: &position.ID,
			IsActive:   true,
		}
		if err := db.Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: email=%q\n", email)
		return
	}

	if err := db.Model(&existing).Updates(map[string]any{
		"password":     hashed,
		"user_type_id": adminType.ID,
		"is_active":    true,
		"is_deleted":   false,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	if err := existing.DestroyAllSessions(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to clear sessions: %v\n", err)
	}
	fmt.Printf("Updated admin user: email=%q\n", email)
}
