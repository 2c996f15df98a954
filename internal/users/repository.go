package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medistock/medistock/internal/platform/db"
	"github.com/medistock/medistock/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Taken(ctx context.Context, email, mobile string) (emailTaken, mobileTaken bool, err error)
	FindByLogin(ctx context.Context, identifier string) (User, error)
	GetPharmacy(ctx context.Context, pharmacyID string) (Pharmacy, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository writes inside a registration transaction.
type TxRepository interface {
	InsertPharmacy(ctx context.Context, p Pharmacy) (Pharmacy, error)
	InsertUser(ctx context.Context, u User) (User, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Taken reports whether the email or mobile already belong to a user.
func (r *Repository) Taken(ctx context.Context, email, mobile string) (bool, bool, error) {
	var emailTaken, mobileTaken bool
	err := r.pool.QueryRow(ctx, `SELECT
  EXISTS(SELECT 1 FROM users WHERE email = $1),
  EXISTS(SELECT 1 FROM users WHERE mobile = $2)`, email, mobile).Scan(&emailTaken, &mobileTaken)
	if err != nil {
		return false, false, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	return emailTaken, mobileTaken, nil
}

// FindByLogin fetches a user by email or mobile.
func (r *Repository) FindByLogin(ctx context.Context, identifier string) (User, error) {
	var u User
	var pharmacyID *string
	err := r.pool.QueryRow(ctx, `SELECT id, name, email, mobile, password_hash, pharmacy_id, role, banned, created_at
FROM users WHERE email = $1 OR mobile = $1 LIMIT 1`, identifier).
		Scan(&u.ID, &u.Name, &u.Email, &u.Mobile, &u.PasswordHash, &pharmacyID, &u.Role, &u.Banned, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	if pharmacyID != nil {
		u.PharmacyID = *pharmacyID
	}
	return u, nil
}

// GetPharmacy loads a pharmacy by its public id.
func (r *Repository) GetPharmacy(ctx context.Context, pharmacyID string) (Pharmacy, error) {
	var p Pharmacy
	err := r.pool.QueryRow(ctx, `SELECT id, pharmacy_id, name, slug, created_at FROM pharmacies WHERE pharmacy_id = $1`, pharmacyID).
		Scan(&p.ID, &p.PharmacyID, &p.Name, &p.Slug, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Pharmacy{}, shared.ErrNotFound
		}
		return Pharmacy{}, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	return p, nil
}

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

func (t txRepo) InsertPharmacy(ctx context.Context, p Pharmacy) (Pharmacy, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO pharmacies (pharmacy_id, name, slug, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		p.PharmacyID, p.Name, p.Slug, p.CreatedAt).Scan(&p.ID)
	if err != nil {
		return Pharmacy{}, writeError(err)
	}
	return p, nil
}

func (t txRepo) InsertUser(ctx context.Context, u User) (User, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO users (name, email, mobile, password_hash, pharmacy_id, role, banned, created_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8) RETURNING id`,
		u.Name, u.Email, u.Mobile, u.PasswordHash, u.PharmacyID, u.Role, u.Banned, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		return User{}, writeError(err)
	}
	return u, nil
}

func writeError(err error) error {
	if shared.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", shared.ErrConflict, err)
	}
	return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
}
