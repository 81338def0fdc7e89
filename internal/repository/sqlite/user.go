package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/membership-ledger/internal/apperror"
	"github.com/sakif/membership-ledger/internal/model"
	"github.com/sakif/membership-ledger/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `user_id, name, email, mobile, password_hash, position, coins,
	email_verified, referral_code, parent_user_id, status, is_admin,
	joining_date, active_date, created_at, updated_at`

// jsonField maps a constrained column to the API field name reported in conflicts.
var jsonField = map[string]string{
	"user_id":       "userId",
	"referral_code": "referralCode",
	"email":         "email",
	"mobile":        "mobile",
	"trans_id":      "transId",
}

func fieldFor(column string) string {
	if f, ok := jsonField[column]; ok {
		return f
	}
	return column
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	var referralCode sql.NullString
	err := row.Scan(
		&u.UserID,
		&u.Name,
		&u.Email,
		&u.Mobile,
		&u.PasswordHash,
		&u.Position,
		&u.Coins,
		&u.EmailVerified,
		&referralCode,
		&u.ParentUserID,
		&u.Status,
		&u.IsAdmin,
		&u.JoiningDate,
		&u.ActiveDate,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.ReferralCode = referralCode.String
	return &u, nil
}

// CreateUser inserts a user and its opening payment record in one transaction.
//
// The opening payment starts at total 0 with status "pending"; the reward
// ledger needs it to exist before it can activate or credit anything.
//
// A UNIQUE violation is returned as apperror.Conflict naming the field, so the
// registrar can tell an allocation race (userId, referralCode) from a
// duplicate email or mobile.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.JoiningDate.IsZero() {
		user.JoiningDate = now
	}
	if user.ActiveDate.IsZero() {
		user.ActiveDate = now
	}
	if user.Status == "" {
		user.Status = model.StatusPending
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning user insert: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.UserID,
		user.Name,
		user.Email,
		user.Mobile,
		user.PasswordHash,
		user.Position,
		user.Coins,
		user.EmailVerified,
		user.ReferralCode,
		user.ParentUserID,
		user.Status,
		user.IsAdmin,
		user.JoiningDate,
		user.ActiveDate,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			return apperror.Conflict("user", fieldFor(column))
		}
		if foreignKeyViolation(err) {
			return apperror.NotFound("user", deref(user.ParentUserID))
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.UserID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payments (user_id, total_amount, status, created_at, updated_at)
		 VALUES (?, 0, ?, ?, ?)`,
		user.UserID, model.StatusPending, now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting opening payment for %s: %w", user.UserID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing user %s: %w", user.UserID, err)
	}
	return nil
}

// GetUserByID retrieves a user by user_id.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	return getUserByID(ctx, db.conn, userID)
}

func getUserByID(ctx context.Context, q querier, userID string) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", userID)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", userID, err)
	}
	return u, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// GetUserByReferralCode finds the owner of an exact referral code.
func (db *DB) GetUserByReferralCode(ctx context.Context, code string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE referral_code = ?`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("referral code", code)
		}
		return nil, fmt.Errorf("sqlite: getting user by referral code %s: %w", code, err)
	}
	return u, nil
}

func (db *DB) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE referral_code = ?)`, code,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking referral code %s: %w", code, err)
	}
	return exists, nil
}

// LatestUserID returns the highest user_id in string-descending order.
//
// String order only tracks numeric order while every ID has the same width
// ("MYC9999" sorts after "MYC10000"); the allocator accepts that limitation.
func (db *DB) LatestUserID(ctx context.Context) (string, error) {
	var userID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id FROM users ORDER BY user_id DESC LIMIT 1`,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("sqlite: reading latest user id: %w", err)
	}
	return userID, nil
}

// ListUsers returns users ordered by user_id, which is registration order.
func (db *DB) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	limit, offset := clampPage(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY user_id ASC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}

// UpdateUser writes the mutable profile columns and the coin balance.
//
// Identity (user_id), referral_code, parent_user_id and status are not
// touched here: status only changes through the ledger transaction.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET name = ?, email = ?, mobile = ?, position = ?, email_verified = ?,
		     coins = ?, updated_at = ?
		 WHERE user_id = ?`,
		user.Name,
		user.Email,
		user.Mobile,
		user.Position,
		user.EmailVerified,
		user.Coins,
		user.UpdatedAt,
		user.UserID,
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			return apperror.Conflict("user", fieldFor(column))
		}
		return fmt.Errorf("sqlite: updating user %s: %w", user.UserID, err)
	}

	return expectOneRow(result, "user", user.UserID)
}

// DeleteUser removes a user. Referees keep their rows with parent_user_id
// set to NULL, and the user's payment and transactions are detached the same way.
func (db *DB) DeleteUser(ctx context.Context, userID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM users WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", userID, err)
	}
	return expectOneRow(result, "user", userID)
}

// expectOneRow turns "0 rows affected" into apperror.NotFound.
func expectOneRow(result sql.Result, resource, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

func clampPage(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
