package expenses

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/medistock/medistock/internal/shared"
)

// Repository persists expenses.
type Repository interface {
	Insert(ctx context.Context, e Expense) (Expense, error)
	List(ctx context.Context, pharmacyID string, window *shared.TimeWindow) ([]Expense, error)
	Delete(ctx context.Context, pharmacyID, code string) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL expense repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, e Expense) (Expense, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO expenses (code, pharmacy_id, title, amount, created_at)
VALUES ($1, $2, $3, $4::numeric, $5) RETURNING id`,
		e.Code, e.PharmacyID, e.Title, e.Amount.String(), e.CreatedAt).Scan(&e.ID)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Expense{}, fmt.Errorf("%w: expense code already used", shared.ErrConflict)
		}
		return Expense{}, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	return e, nil
}

func (r *repository) List(ctx context.Context, pharmacyID string, window *shared.TimeWindow) ([]Expense, error) {
	query := `SELECT id, code, pharmacy_id, title, amount::text, created_at FROM expenses WHERE pharmacy_id = $1`
	args := []any{pharmacyID}
	if window != nil {
		query += ` AND created_at BETWEEN $2 AND $3`
		args = append(args, window.From, window.To)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		var (
			e      Expense
			amount string
		)
		if err := rows.Scan(&e.ID, &e.Code, &e.PharmacyID, &e.Title, &amount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("%w: amount %q: %v", shared.ErrPersistence, amount, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	return out, nil
}

func (r *repository) Delete(ctx context.Context, pharmacyID, code string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM expenses WHERE code = $1 AND pharmacy_id = $2`, code, pharmacyID)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: Expense not found", shared.ErrNotFound)
	}
	return nil
}
