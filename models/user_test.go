package models_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/testutil"
	"github.com/mmdatafocus/hrcrm_backend/utils"
)

func seedLookups(t *testing.T, ctx context.Context) (int, int) {
	t.Helper()
	ut, err := models.CreateLookup[models.UserType](ctx, &models.NewLookup{Name: "Admin"})
	if err != nil {
		t.Fatalf("CreateLookup user type: %v", err)
	}
	pos, err := models.CreateLookup[models.Position](ctx, &models.NewLookup{Name: "Lead"})
	if err != nil {
		t.Fatalf("CreateLookup position: %v", err)
	}
	return ut.ID, pos.ID
}

func TestCreateUserAndLogin(t *testing.T) {
	db := testutil.SetupDB(t, time.UTC)
	ctx := context.Background()
	typeID, posID := seedLookups(t, ctx)

	input := &models.NewUser{FirstName: "Asha", LastName: "Rao", Email: " Asha@Example.com ", Password: "secret1", Type: typeID, Position: posID}
	user, err := models.CreateUser(ctx, input)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Email != "asha@example.com" {
		t.Fatalf("email should be normalized, got %q", user.Email)
	}

	var queued int64
	if err := db.Model(&models.MailOutbox{}).Where("kind = ? AND reference_id = ?", models.MailKindWelcome, user.ID).Count(&queued).Error; err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if queued != 1 {
		t.Fatalf("expected one welcome mail queued, got %d", queued)
	}

	dup := &models.NewUser{FirstName: "A", LastName: "B", Email: "asha@example.com", Password: "secret1", Type: typeID, Position: posID}
	if _, err := models.CreateUser(ctx, dup); !utils.IsValidationError(err) {
		t.Fatalf("expected duplicate email validation error, got %v", err)
	}
	badType := &models.NewUser{FirstName: "A", LastName: "B", Email: "b@example.com", Password: "secret1", Type: typeID + 10, Position: posID}
	if _, err := models.CreateUser(ctx, badType); err == nil || err.Error() != "Invalid user type" {
		t.Fatalf("expected 'Invalid user type', got %v", err)
	}

	if _, err := models.Login(ctx, "asha@example.com", "wrong"); !errors.Is(err, models.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	info, err := models.Login(ctx, "ASHA@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !info.IsFirstLogin || info.Token == "" || info.UserType != "Admin" {
		t.Fatalf("unexpected login info: %+v", info)
	}
	claims, err := utils.ClaimsFromToken(info.Token)
	if err != nil || claims.ID != user.ID {
		t.Fatalf("token should carry user id %d: %+v %v", user.ID, claims, err)
	}

	again, err := models.Login(ctx, "asha@example.com", "secret1")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if again.IsFirstLogin {
		t.Fatalf("second login should not be the first")
	}

	logoutCtx := utils.SetTokenInContext(utils.SetUserIdInContext(ctx, user.ID), again.Token)
	if ok, err := models.Logout(logoutCtx); err != nil || !ok {
		t.Fatalf("Logout: %v", err)
	}
	got, err := models.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.LastLogoutAt == nil || !got.HasLoggedIn {
		t.Fatalf("login bookkeeping missing: %+v", got)
	}
}

func TestUpdateAndDeleteUser(t *testing.T) {
	testutil.SetupDB(t, time.UTC)
	ctx := context.Background()
	typeID, posID := seedLookups(t, ctx)

	user, err := models.CreateUser(ctx, &models.NewUser{FirstName: "Asha", LastName: "Rao", Email: "asha@example.com", Password: "secret1", Type: typeID, Position: posID})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := models.UpdateUser(ctx, user.ID, &models.UpdateUserInput{}); !utils.IsValidationError(err) {
		t.Fatalf("expected 'No fields to update', got %v", err)
	}
	if _, err := models.UpdateUser(ctx, user.ID, &models.UpdateUserInput{Gender: testutil.Ptr(999)}); err == nil || err.Error() != "Invalid gender" {
		t.Fatalf("expected 'Invalid gender', got %v", err)
	}
	updated, err := models.UpdateUser(ctx, user.ID, &models.UpdateUserInput{LastName: testutil.Ptr("Iyer"), IsActive: testutil.Ptr(false)})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if updated.FullName() != "Asha Iyer" || updated.IsActive {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if _, err := models.Login(ctx, "asha@example.com", "secret1"); !errors.Is(err, models.ErrUserDisabled) {
		t.Fatalf("disabled user should not log in, got %v", err)
	}

	if _, err := models.DeleteUser(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := models.GetUser(ctx, user.ID); err != utils.ErrorRecordNotFound {
		t.Fatalf("deleted user should be hidden, got %v", err)
	}
	byIds, err := models.GetUsersByIds(ctx, []int{user.ID, user.ID})
	if err != nil || len(byIds) != 1 {
		t.Fatalf("batch lookup should still find deleted users: %d %v", len(byIds), err)
	}
}
