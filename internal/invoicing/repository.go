package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/medistock/medistock/internal/platform/db"
	"github.com/medistock/medistock/internal/shared"
)

// Store is the write surface used by settlement.
type Store interface {
	InsertInvoice(ctx context.Context, inv Invoice) (int64, error)
	// ApplyStockDeltas adjusts stock for each delta and reports how many rows
	// were modified. Rows outside pharmacyID never match.
	ApplyStockDeltas(ctx context.Context, pharmacyID string, deltas []StockDelta) (int64, error)
	DeleteInvoice(ctx context.Context, kind Kind, id int64) error
}

// RepositoryPort abstracts repository usage for the settlement service.
type RepositoryPort interface {
	Store
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error
}

// QueryRepository serves invoice lookups.
type QueryRepository interface {
	GetInvoice(ctx context.Context, pharmacyID string, kind Kind, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, pharmacyID string, kind Kind, window *shared.TimeWindow, page shared.Page) ([]Invoice, int, error)
}

// StockReader exposes current stock for background reconciliation.
type StockReader interface {
	MedicineStocks(ctx context.Context, pharmacyID string, ids []int64) (map[int64]int64, error)
	NegativeStock(ctx context.Context) ([]NegativeStock, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Repository implements every invoicing port on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	store
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, store: store{q: pool}}
}

// WithTx runs fn with a Store bound to a single transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, store{q: tx})
	})
}

type store struct {
	q querier
}

func (s store) InsertInvoice(ctx context.Context, inv Invoice) (int64, error) {
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return 0, fmt.Errorf("%w: encode items: %v", shared.ErrInvalidInput, err)
	}
	var id int64
	err = s.q.QueryRow(ctx, `INSERT INTO invoices (kind, pharmacy_id, items, sub_total, discount, final_total, status, customer_contact, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9::bigint, 0), $10) RETURNING id`,
		string(inv.Kind), inv.PharmacyID, items, inv.SubTotal, inv.Discount, inv.FinalTotal,
		string(inv.Status), inv.CustomerContact, inv.CreatedBy, inv.CreatedAt).Scan(&id)
	if err != nil {
		return 0, persistence(err)
	}
	return id, nil
}

func (s store) ApplyStockDeltas(ctx context.Context, pharmacyID string, deltas []StockDelta) (int64, error) {
	batch := &pgx.Batch{}
	for _, d := range deltas {
		batch.Queue(`UPDATE medicines SET stock = stock + $1 WHERE id = $2 AND pharmacy_id = $3`, d.Delta, d.MedicineID, pharmacyID)
	}
	br := s.q.SendBatch(ctx, batch)
	var modified int64
	for range deltas {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return modified, persistence(err)
		}
		modified += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return modified, persistence(err)
	}
	return modified, nil
}

func (s store) DeleteInvoice(ctx context.Context, kind Kind, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM invoices WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return persistence(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const invoiceColumns = `i.id, i.kind, i.pharmacy_id, i.items, i.sub_total::text, i.discount::text, i.final_total::text,
COALESCE(i.status, ''), COALESCE(i.customer_contact, ''), COALESCE(i.created_by, 0), i.created_at, u.email`

// GetInvoice loads an invoice with its creator's email when the creator still exists.
func (r *Repository) GetInvoice(ctx context.Context, pharmacyID string, kind Kind, id int64) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+`
FROM invoices i LEFT JOIN users u ON u.id = i.created_by
WHERE i.pharmacy_id = $1 AND i.kind = $2 AND i.id = $3`, pharmacyID, string(kind), id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, fmt.Errorf("%w: invoice", shared.ErrNotFound)
		}
		return Invoice{}, persistence(err)
	}
	return inv, nil
}

// ListInvoices returns one page of invoices in insertion order.
func (r *Repository) ListInvoices(ctx context.Context, pharmacyID string, kind Kind, window *shared.TimeWindow, page shared.Page) ([]Invoice, int, error) {
	where := ` WHERE i.pharmacy_id = $1 AND i.kind = $2`
	args := []any{pharmacyID, string(kind)}
	if window != nil {
		args = append(args, window.From, window.To)
		where += ` AND i.created_at >= $` + strconv.Itoa(len(args)-1) + ` AND i.created_at <= $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices i`+where, args...).Scan(&total); err != nil {
		return nil, 0, persistence(err)
	}

	query := `SELECT ` + invoiceColumns + ` FROM invoices i LEFT JOIN users u ON u.id = i.created_by` + where + ` ORDER BY i.id ASC`
	if page.Paginated() {
		args = append(args, page.Limit, page.Offset())
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, persistence(err)
	}
	defer rows.Close()

	invoices := make([]Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, persistence(err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, persistence(err)
	}
	return invoices, total, nil
}

// MedicineStocks returns the current stock for ids within a pharmacy.
func (r *Repository) MedicineStocks(ctx context.Context, pharmacyID string, ids []int64) (map[int64]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, stock FROM medicines WHERE pharmacy_id = $1 AND id = ANY($2)`, pharmacyID, ids)
	if err != nil {
		return nil, persistence(err)
	}
	defer rows.Close()
	out := make(map[int64]int64, len(ids))
	for rows.Next() {
		var id, stock int64
		if err := rows.Scan(&id, &stock); err != nil {
			return nil, persistence(err)
		}
		out[id] = stock
	}
	if err := rows.Err(); err != nil {
		return nil, persistence(err)
	}
	return out, nil
}

// NegativeStock lists medicines with stock below zero across all pharmacies.
func (r *Repository) NegativeStock(ctx context.Context) ([]NegativeStock, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, pharmacy_id, title, stock FROM medicines WHERE stock < 0 ORDER BY pharmacy_id, id`)
	if err != nil {
		return nil, persistence(err)
	}
	defer rows.Close()
	var out []NegativeStock
	for rows.Next() {
		var n NegativeStock
		if err := rows.Scan(&n.MedicineID, &n.PharmacyID, &n.Title, &n.Stock); err != nil {
			return nil, persistence(err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence(err)
	}
	return out, nil
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv                       Invoice
		kind, status              string
		items                     []byte
		subTotal, discount, final string
		email                     *string
	)
	if err := row.Scan(&inv.ID, &kind, &inv.PharmacyID, &items, &subTotal, &discount, &final,
		&status, &inv.CustomerContact, &inv.CreatedBy, &inv.CreatedAt, &email); err != nil {
		return Invoice{}, err
	}
	inv.Kind = Kind(kind)
	inv.Status = Status(status)
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return Invoice{}, fmt.Errorf("decode items: %w", err)
	}
	var err error
	if inv.SubTotal, err = decimal.NewFromString(subTotal); err != nil {
		return Invoice{}, err
	}
	if inv.Discount, err = decimal.NewFromString(discount); err != nil {
		return Invoice{}, err
	}
	if inv.FinalTotal, err = decimal.NewFromString(final); err != nil {
		return Invoice{}, err
	}
	if email != nil {
		inv.CreatedByInfo = &CreatorInfo{Email: *email}
	}
	return inv, nil
}

func persistence(err error) error {
	if errors.Is(err, shared.ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
}
