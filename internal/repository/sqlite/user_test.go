package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/membership-ledger/internal/apperror"
	"github.com/sakif/membership-ledger/internal/model"
	"github.com/sakif/membership-ledger/internal/repository"
)

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	user := createTestUser(t, db, "MYC0001", nil)

	if user.Status != model.StatusPending {
		t.Errorf("Status = %q, want %q", user.Status, model.StatusPending)
	}
	if user.CreatedAt.IsZero() || user.JoiningDate.IsZero() {
		t.Error("CreateUser() did not set timestamps")
	}

	found, err := db.GetUserByID(context.Background(), "MYC0001")
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.Email != "MYC0001@example.com" {
		t.Errorf("Email = %q, want %q", found.Email, "MYC0001@example.com")
	}
	if found.ParentUserID != nil {
		t.Errorf("ParentUserID = %v, want nil", *found.ParentUserID)
	}
	if found.PasswordHash == "" {
		t.Error("PasswordHash was not persisted")
	}
}

func TestCreateUser_OpensPendingPayment(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "MYC0001", nil)

	payment, err := db.GetPaymentByUserID(context.Background(), "MYC0001")
	if err != nil {
		t.Fatalf("GetPaymentByUserID() error = %v", err)
	}
	if payment.TotalAmount != 0 {
		t.Errorf("TotalAmount = %d, want 0", payment.TotalAmount)
	}
	if payment.Status != model.StatusPending {
		t.Errorf("Status = %q, want %q", payment.Status, model.StatusPending)
	}
}

func TestCreateUser_Conflicts(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(u *model.User)
		wantField string
	}{
		{
			name:      "duplicate user id",
			mutate:    func(u *model.User) { u.UserID = "MYC0001" },
			wantField: "userId",
		},
		{
			name:      "duplicate email",
			mutate:    func(u *model.User) { u.Email = "MYC0001@example.com" },
			wantField: "email",
		},
		{
			name:      "duplicate mobile",
			mutate:    func(u *model.User) { u.Mobile = "555-MYC0001" },
			wantField: "mobile",
		},
		{
			name:      "duplicate referral code",
			mutate:    func(u *model.User) { u.ReferralCode = "REFMYC0001" },
			wantField: "referralCode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			createTestUser(t, db, "MYC0001", nil)

			user := &model.User{
				UserID:       "MYC0002",
				Name:         "Second",
				Email:        "second@example.com",
				Mobile:       "555-0002",
				PasswordHash: "hash",
				ReferralCode: "REF2222ZZ",
			}
			tt.mutate(user)

			err := db.CreateUser(context.Background(), user)
			if !errors.Is(err, apperror.ErrConflict) {
				t.Fatalf("CreateUser() error = %v, want ErrConflict", err)
			}
			if !errors.Is(err, apperror.ErrPersistence) {
				t.Errorf("conflict should also match ErrPersistence, got %v", err)
			}

			var appErr *apperror.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("error is not *AppError: %T", err)
			}
			if appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
		})
	}
}

func TestCreateUser_ConflictLeavesNoPayment(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "MYC0001", nil)

	dup := &model.User{
		UserID:       "MYC0002",
		Name:         "Dup",
		Email:        "MYC0001@example.com",
		Mobile:       "555-0002",
		PasswordHash: "hash",
		ReferralCode: "REF2222ZZ",
	}
	if err := db.CreateUser(context.Background(), dup); err == nil {
		t.Fatal("CreateUser() should have failed on duplicate email")
	}

	_, err := db.GetPaymentByUserID(context.Background(), "MYC0002")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetPaymentByUserID() error = %v, want ErrNotFound", err)
	}
}

func TestCreateUser_UnknownParent(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		UserID:       "MYC0001",
		Name:         "Orphan",
		Email:        "orphan@example.com",
		Mobile:       "555-0001",
		PasswordHash: "hash",
		ReferralCode: "REF1111AA",
		ParentUserID: strPtr("MYC0999"),
	}
	err := db.CreateUser(context.Background(), user)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("CreateUser() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "MYC0404")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestGetUserByEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "MYC0001", nil)

	found, err := db.GetUserByEmail(context.Background(), "MYC0001@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if found.UserID != "MYC0001" {
		t.Errorf("UserID = %q, want %q", found.UserID, "MYC0001")
	}

	_, err = db.GetUserByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestReferralCodeLookup(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "MYC0001", nil)
	ctx := context.Background()

	owner, err := db.GetUserByReferralCode(ctx, "REFMYC0001")
	if err != nil {
		t.Fatalf("GetUserByReferralCode() error = %v", err)
	}
	if owner.UserID != "MYC0001" {
		t.Errorf("UserID = %q, want %q", owner.UserID, "MYC0001")
	}

	exists, err := db.ReferralCodeExists(ctx, "REFMYC0001")
	if err != nil {
		t.Fatalf("ReferralCodeExists() error = %v", err)
	}
	if !exists {
		t.Error("ReferralCodeExists() = false for an assigned code")
	}

	exists, err = db.ReferralCodeExists(ctx, "REF0000XX")
	if err != nil {
		t.Fatalf("ReferralCodeExists() error = %v", err)
	}
	if exists {
		t.Error("ReferralCodeExists() = true for an unassigned code")
	}

	_, err = db.GetUserByReferralCode(ctx, "REF0000XX")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByReferralCode() error = %v, want ErrNotFound", err)
	}
}

func TestLatestUserID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	latest, err := db.LatestUserID(ctx)
	if err != nil {
		t.Fatalf("LatestUserID() on empty db error = %v", err)
	}
	if latest != "" {
		t.Errorf("LatestUserID() = %q, want empty", latest)
	}

	createTestUser(t, db, "MYC0002", nil)
	createTestUser(t, db, "MYC0010", nil)
	createTestUser(t, db, "MYC0003", nil)

	latest, err = db.LatestUserID(ctx)
	if err != nil {
		t.Fatalf("LatestUserID() error = %v", err)
	}
	if latest != "MYC0010" {
		t.Errorf("LatestUserID() = %q, want %q", latest, "MYC0010")
	}
}

// =========================================================================
// LIST / UPDATE / DELETE TESTS
// =========================================================================

func TestListUsers_OrderAndPagination(t *testing.T) {
	db := newTestDB(t)
	for _, id := range []string{"MYC0003", "MYC0001", "MYC0002"} {
		createTestUser(t, db, id, nil)
	}

	all, err := db.ListUsers(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListUsers() returned %d users, want 3", len(all))
	}
	for i, want := range []string{"MYC0001", "MYC0002", "MYC0003"} {
		if all[i].UserID != want {
			t.Errorf("users[%d] = %q, want %q", i, all[i].UserID, want)
		}
	}

	page, err := db.ListUsers(context.Background(), repository.ListOptions{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListUsers() page error = %v", err)
	}
	if len(page) != 1 || page[0].UserID != "MYC0002" {
		t.Errorf("page = %+v, want only MYC0002", page)
	}
}

func TestUpdateUser(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "MYC0001", nil)

	user.Name = "Renamed"
	user.Coins = 250
	user.EmailVerified = true
	user.Position = strPtr("left")
	if err := db.UpdateUser(context.Background(), user); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	found, err := db.GetUserByID(context.Background(), "MYC0001")
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.Name != "Renamed" || found.Coins != 250 || !found.EmailVerified {
		t.Errorf("update not persisted: %+v", found)
	}
	if found.Position == nil || *found.Position != "left" {
		t.Errorf("Position = %v, want left", found.Position)
	}
}

func TestUpdateUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateUser(context.Background(), &model.User{UserID: "MYC0404"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateUser() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateUser_EmailConflict(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "MYC0001", nil)
	second := createTestUser(t, db, "MYC0002", nil)

	second.Email = "MYC0001@example.com"
	err := db.UpdateUser(context.Background(), second)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("UpdateUser() error = %v, want ErrConflict", err)
	}
}

func TestDeleteUser_DetachesDependents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "MYC0001", nil)
	createTestUser(t, db, "MYC0002", strPtr("MYC0001"))

	if err := db.DeleteUser(ctx, "MYC0001"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}

	if _, err := db.GetUserByID(ctx, "MYC0001"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("deleted user still readable: %v", err)
	}

	referee, err := db.GetUserByID(ctx, "MYC0002")
	if err != nil {
		t.Fatalf("GetUserByID() referee error = %v", err)
	}
	if referee.ParentUserID != nil {
		t.Errorf("ParentUserID = %q, want nil after referrer deleted", *referee.ParentUserID)
	}

	// The deleted user's payment survives with a NULL owner.
	var orphaned int
	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE user_id IS NULL`).Scan(&orphaned)
	if err != nil {
		t.Fatalf("counting orphaned payments: %v", err)
	}
	if orphaned != 1 {
		t.Errorf("orphaned payments = %d, want 1", orphaned)
	}
}

func TestDeleteUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.DeleteUser(context.Background(), "MYC0404")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteUser() error = %v, want ErrNotFound", err)
	}
}
