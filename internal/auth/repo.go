package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-clinic/meridian/internal/platform/db"
	"github.com/meridian-clinic/meridian/internal/shared"
)

// Repository defines persistence operations for the auth module.
// Uniqueness of email and atomicity of the token-consuming updates are
// delegated to the store.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	Create(ctx context.Context, account *Account) error
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time, ip, ua string) error
	SetResetToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error
	ConsumeResetToken(ctx context.Context, token, newPasswordHash string, now time.Time) (bool, error)
	ConsumeVerificationToken(ctx context.Context, token string) (bool, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id, name, email, password_hash, phone, date_of_birth, address,
	insurance_provider, insurance_policy, role, is_active, email_verified,
	email_verification_token, reset_token, reset_token_expires, last_login_at,
	created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		a            Account
		role         string
		phone        pgtype.Text
		dob          pgtype.Date
		address      pgtype.Text
		insProvider  pgtype.Text
		insPolicy    pgtype.Text
		verifToken   pgtype.Text
		resetToken   pgtype.Text
		resetExpires pgtype.Timestamptz
		lastLogin    pgtype.Timestamptz
		createdAt    pgtype.Timestamptz
		updatedAt    pgtype.Timestamptz
	)
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &phone, &dob, &address,
		&insProvider, &insPolicy, &role, &a.IsActive, &a.EmailVerified,
		&verifToken, &resetToken, &resetExpires, &lastLogin, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	a.Role = Role(role)
	a.Phone = phone.String
	a.Address = address.String
	a.InsuranceProvider = insProvider.String
	a.InsurancePolicy = insPolicy.String
	a.VerificationToken = verifToken.String
	a.ResetToken = resetToken.String
	if dob.Valid {
		d := dob.Time
		a.DateOfBirth = &d
	}
	if resetExpires.Valid {
		t := resetExpires.Time
		a.ResetTokenExpires = &t
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		a.LastLoginAt = &t
	}
	a.CreatedAt = createdAt.Time
	a.UpdatedAt = updatedAt.Time
	return &a, nil
}

// FindByEmail fetches an account by its normalized email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, email))
}

// FindByID fetches an account by identifier.
func (r *PGRepository) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

// Create persists a new account. A concurrent insert with the same email
// surfaces as shared.ErrEmailTaken via the unique constraint.
func (r *PGRepository) Create(ctx context.Context, account *Account) error {
	const query = `INSERT INTO accounts (
		id, name, email, password_hash, phone, date_of_birth, address,
		insurance_provider, insurance_policy, role, is_active, email_verified,
		email_verification_token, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`
	_, err := r.pool.Exec(ctx, query,
		account.ID, account.Name, account.Email, account.PasswordHash,
		nullText(account.Phone), nullDate(account.DateOfBirth), nullText(account.Address),
		nullText(account.InsuranceProvider), nullText(account.InsurancePolicy),
		string(account.Role), account.IsActive, account.EmailVerified,
		nullText(account.VerificationToken),
		pgtype.Timestamptz{Time: account.CreatedAt.UTC(), Valid: true},
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrEmailTaken
		}
		return err
	}
	return nil
}

// RecordLogin stamps last_login_at and appends a login audit event in a
// single transaction.
func (r *PGRepository) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time, ip, ua string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const stamp = `UPDATE accounts SET last_login_at = $2, updated_at = $2 WHERE id = $1`
		if _, err := tx.Exec(ctx, stamp, id, pgtype.Timestamptz{Time: at.UTC(), Valid: true}); err != nil {
			return err
		}
		const audit = `INSERT INTO login_events (account_id, ip, user_agent, created_at) VALUES ($1, $2, $3, $4)`
		_, err := tx.Exec(ctx, audit, id, nullText(ip), nullText(ua),
			pgtype.Timestamptz{Time: at.UTC(), Valid: true})
		return err
	})
}

// SetResetToken stores a new reset token, superseding any outstanding one.
func (r *PGRepository) SetResetToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error {
	const query = `UPDATE accounts
		SET reset_token = $2, reset_token_expires = $3, updated_at = now()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, token,
		pgtype.Timestamptz{Time: expires.UTC(), Valid: true})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ConsumeResetToken replaces the password hash and clears the reset token
// in one statement, so the old password and the token are never both
// valid. It reports whether a live token matched.
func (r *PGRepository) ConsumeResetToken(ctx context.Context, token, newPasswordHash string, now time.Time) (bool, error) {
	const query = `UPDATE accounts
		SET password_hash = $2, reset_token = NULL, reset_token_expires = NULL, updated_at = $3
		WHERE reset_token = $1 AND reset_token_expires > $3`
	tag, err := r.pool.Exec(ctx, query, token, newPasswordHash,
		pgtype.Timestamptz{Time: now.UTC(), Valid: true})
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ConsumeVerificationToken marks the email verified and clears the
// single-use token. It reports whether the token matched an account.
func (r *PGRepository) ConsumeVerificationToken(ctx context.Context, token string) (bool, error) {
	const query = `UPDATE accounts
		SET email_verified = TRUE, email_verification_token = NULL, updated_at = now()
		WHERE email_verification_token = $1`
	tag, err := r.pool.Exec(ctx, query, token)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func nullDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

var _ Repository = (*PGRepository)(nil)
