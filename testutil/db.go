// Package testutil wires an in-memory database into the global config for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"gorm.io/gorm"
)

// SetupDB installs a fresh migrated sqlite database, disables redis and pins the
// bucketing timezone to loc (UTC when nil). Globals are restored on cleanup.
func SetupDB(t testing.TB, loc *time.Location) *gorm.DB {
	t.Helper()
	if loc == nil {
		loc = time.UTC
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), config.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection keeps the in-memory database alive and shared
	sqlDB.SetMaxOpenConns(1)

	prevDB := config.GetDB()
	prevRedis := config.GetRedisDB()
	config.SetDB(db)
	config.SetRedisDB(nil)
	config.SetLocation(loc)
	t.Cleanup(func() {
		config.SetDB(prevDB)
		config.SetRedisDB(prevRedis)
		config.SetLocation(nil)
		_ = sqlDB.Close()
	})

	if err := models.MigrateTable(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedUser creates the lookup rows and one active user, returning the user id.
func SeedUser(t testing.TB, db *gorm.DB, first, last, email string) int {
	t.Helper()
	ut := models.UserType{Lookup: models.Lookup{Name: "Recruiter"}}
	if err := db.Where("name = ?", ut.Name).FirstOrCreate(&ut).Error; err != nil {
		t.Fatalf("seed user type: %v", err)
	}
	pos := models.Position{Lookup: models.Lookup{Name: "Executive"}}
	if err := db.Where("name = ?", pos.Name).FirstOrCreate(&pos).Error; err != nil {
		t.Fatalf("seed position: %v", err)
	}
	u := models.User{
		FirstName:  first,
		LastName:   last,
		Email:      email,
		Password:   "x",
		UserTypeId: ut.ID,
		PositionId: &pos.ID,
		IsActive:   true,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u.ID
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Day parses a YYYY-MM-DD date as midnight UTC.
func Day(t testing.TB, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse day %q: %v", s, err)
	}
	return d
}
