package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSettings_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	if err := os.WriteFile(path, []byte("app:\n  company_name: Acme\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := loadSettings(path)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.App.Timezone != "Asia/Kolkata" {
		t.Fatalf("expected default timezone, got %q", s.App.Timezone)
	}
	if s.App.CompanyName != "Acme" {
		t.Fatalf("expected file value Acme, got %q", s.App.CompanyName)
	}
	if s.Mail.Port != 465 {
		t.Fatalf("expected default mail port 465, got %d", s.Mail.Port)
	}
}

func TestLoadSettings_EnvOverride(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "UTC")
	t.Setenv("MAIL_PORT", "587")
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	if err := os.WriteFile(path, []byte("app:\n  timezone: Asia/Kolkata\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := loadSettings(path)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.App.Timezone != "UTC" || s.Mail.Port != 587 {
		t.Fatalf("env override not applied: %+v", s)
	}
}

func TestLoadSettings_BadTimezone(t *testing.T) {
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	if err := os.WriteFile(path, []byte("app: {}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadSettings(path); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}
