package utils

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"9876543210", "+919876543210", false},
		{"+91 98765 43210", "+919876543210", false},
		{"", "", false},
		{"12345", "", true},
		{"not a phone", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if tc.wantErr {
			if !IsValidationError(err) {
				t.Fatalf("NormalizePhone(%q) expected validation error, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("NormalizePhone(%q) expected %q, got %q (%v)", tc.in, tc.want, got, err)
		}
	}
}

func TestIsValidEmail(t *testing.T) {
	if !IsValidEmail(" hr@college.edu.in ") {
		t.Fatalf("expected valid email")
	}
	if IsValidEmail("hr@college") || IsValidEmail("") {
		t.Fatalf("expected invalid email")
	}
}

func TestValidationError(t *testing.T) {
	err := NewFieldError("followUpResponse", "must be one of %d values", 5)
	if err.Error() != "followUpResponse: must be one of 5 values" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	wrapped := errors.Join(errors.New("context"), err)
	if !IsValidationError(wrapped) {
		t.Fatalf("wrapped validation error not detected")
	}
	if IsValidationError(ErrorRecordNotFound) {
		t.Fatalf("not found is not a validation error")
	}
}

func TestExtractObjectKeyFromURL(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_BASE_URL", "")
	cases := map[string]string{
		"users/4/photo.jpg": "users/4/photo.jpg",
		"gs://hr-bucket/jd/company-jd.pdf":                         "jd/company-jd.pdf",
		"https://storage.googleapis.com/hr-bucket/users/4/a.png":   "users/4/a.png",
		"https://hr-bucket.storage.googleapis.com/users/4/a.png":   "users/4/a.png",
		"https://example.com/other.png":                            "",
		"../etc/passwd":                                            "",
	}
	for in, want := range cases {
		if got := ExtractObjectKeyFromURL(in); got != want {
			t.Fatalf("ExtractObjectKeyFromURL(%q) expected %q, got %q", in, want, got)
		}
	}
}

func TestOneOf(t *testing.T) {
	if !OneOf("  Selected ", "selected", "rejected") {
		t.Fatalf("expected match")
	}
	if OneOf("selectedd", "selected") {
		t.Fatalf("unexpected match")
	}
}
