package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/medistock/medistock/internal/shared"
)

// Repository persists catalog records. Every read is filtered by pharmacy.
type Repository interface {
	ReferenceExists(ctx context.Context, kind Kind, pharmacyID, name string) (bool, error)
	InsertReference(ctx context.Context, ref Reference) (Reference, error)
	ListReferences(ctx context.Context, kind Kind, pharmacyID string, filters ListFilters) ([]Reference, int, error)
	GetReference(ctx context.Context, kind Kind, pharmacyID string, id int64) (Reference, error)
	DeleteReference(ctx context.Context, kind Kind, id int64) error

	MedicineExists(ctx context.Context, pharmacyID, name, dosageForm, strength string) (bool, error)
	InsertMedicine(ctx context.Context, med Medicine) (Medicine, error)
	ListMedicines(ctx context.Context, pharmacyID string, filters MedicineFilters) ([]Medicine, int, error)
	MedicineTotals(ctx context.Context, pharmacyID string, filters MedicineFilters) (Totals, error)
	GetMedicine(ctx context.Context, pharmacyID string, id int64) (Medicine, error)
	// DeleteMedicine removes the row and reports the pharmacy it belonged to.
	DeleteMedicine(ctx context.Context, id int64) (string, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a PostgreSQL-backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) ReferenceExists(ctx context.Context, kind Kind, pharmacyID, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM catalog_references WHERE kind = $1 AND pharmacy_id = $2 AND name = $3)`,
		string(kind), pharmacyID, name).Scan(&exists)
	if err != nil {
		return false, persistence(err)
	}
	return exists, nil
}

func (r *repository) InsertReference(ctx context.Context, ref Reference) (Reference, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO catalog_references (kind, pharmacy_id, name, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		string(ref.Kind), ref.PharmacyID, ref.Name, ref.CreatedAt).Scan(&ref.ID)
	if err != nil {
		return Reference{}, persistence(err)
	}
	return ref, nil
}

func (r *repository) ListReferences(ctx context.Context, kind Kind, pharmacyID string, filters ListFilters) ([]Reference, int, error) {
	where := ` WHERE kind = $1 AND pharmacy_id = $2`
	args := []any{string(kind), pharmacyID}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += ` AND name ILIKE $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM catalog_references`+where, args...).Scan(&total); err != nil {
		return nil, 0, persistence(err)
	}

	query := `SELECT id, kind, name, pharmacy_id, created_at FROM catalog_references` + where + ` ORDER BY name ASC, id ASC`
	query, args = paginate(query, args, filters.Page)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, persistence(err)
	}
	defer rows.Close()

	refs := make([]Reference, 0)
	for rows.Next() {
		var ref Reference
		var k string
		if err := rows.Scan(&ref.ID, &k, &ref.Name, &ref.PharmacyID, &ref.CreatedAt); err != nil {
			return nil, 0, persistence(err)
		}
		ref.Kind = Kind(k)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, persistence(err)
	}
	return refs, total, nil
}

func (r *repository) GetReference(ctx context.Context, kind Kind, pharmacyID string, id int64) (Reference, error) {
	var ref Reference
	var k string
	err := r.db.QueryRow(ctx, `SELECT id, kind, name, pharmacy_id, created_at FROM catalog_references WHERE kind = $1 AND pharmacy_id = $2 AND id = $3`,
		string(kind), pharmacyID, id).Scan(&ref.ID, &k, &ref.Name, &ref.PharmacyID, &ref.CreatedAt)
	if err != nil {
		return Reference{}, notFoundOr(err)
	}
	ref.Kind = Kind(k)
	return ref, nil
}

func (r *repository) DeleteReference(ctx context.Context, kind Kind, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM catalog_references WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return persistence(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) MedicineExists(ctx context.Context, pharmacyID, name, dosageForm, strength string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM medicines WHERE pharmacy_id = $1 AND name = $2 AND dosage_form = $3 AND strength = $4)`,
		pharmacyID, name, dosageForm, strength).Scan(&exists)
	if err != nil {
		return false, persistence(err)
	}
	return exists, nil
}

func (r *repository) InsertMedicine(ctx context.Context, med Medicine) (Medicine, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO medicines (title, name, strength, dosage_form, company, group_name, category, purchase_price, sell_price, stock, pharmacy_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		med.Title, med.Name, med.Strength, med.DosageForm, med.Company, med.Group, string(med.Category),
		med.PurchasePrice, med.SellPrice, med.Stock, med.PharmacyID, med.CreatedAt).Scan(&med.ID)
	if err != nil {
		return Medicine{}, persistence(err)
	}
	return med, nil
}

const medicineColumns = `id, title, name, strength, dosage_form, company, group_name, category, purchase_price::text, sell_price::text, stock, pharmacy_id, created_at`

func (r *repository) ListMedicines(ctx context.Context, pharmacyID string, filters MedicineFilters) ([]Medicine, int, error) {
	where, args := medicineWhere(pharmacyID, filters)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM medicines`+where, args...).Scan(&total); err != nil {
		return nil, 0, persistence(err)
	}

	query := `SELECT ` + medicineColumns + ` FROM medicines` + where + ` ORDER BY ` + medicineOrder(filters.SortPrice, filters.StockLeft)
	query, args = paginate(query, args, filters.Page)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, persistence(err)
	}
	defer rows.Close()

	meds := make([]Medicine, 0)
	for rows.Next() {
		med, err := scanMedicine(rows)
		if err != nil {
			return nil, 0, persistence(err)
		}
		meds = append(meds, med)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, persistence(err)
	}
	return meds, total, nil
}

func (r *repository) MedicineTotals(ctx context.Context, pharmacyID string, filters MedicineFilters) (Totals, error) {
	where, args := medicineWhere(pharmacyID, filters)
	var purchase, sales string
	err := r.db.QueryRow(ctx, `SELECT COALESCE(SUM(stock * purchase_price), 0)::text, COALESCE(SUM(stock * sell_price), 0)::text FROM medicines`+where,
		args...).Scan(&purchase, &sales)
	if err != nil {
		return Totals{}, persistence(err)
	}
	var totals Totals
	if totals.Purchase, err = decimal.NewFromString(purchase); err != nil {
		return Totals{}, persistence(err)
	}
	if totals.Sales, err = decimal.NewFromString(sales); err != nil {
		return Totals{}, persistence(err)
	}
	return totals, nil
}

func (r *repository) GetMedicine(ctx context.Context, pharmacyID string, id int64) (Medicine, error) {
	row := r.db.QueryRow(ctx, `SELECT `+medicineColumns+` FROM medicines WHERE pharmacy_id = $1 AND id = $2`, pharmacyID, id)
	med, err := scanMedicine(row)
	if err != nil {
		return Medicine{}, notFoundOr(err)
	}
	return med, nil
}

func (r *repository) DeleteMedicine(ctx context.Context, id int64) (string, error) {
	var pharmacyID string
	err := r.db.QueryRow(ctx, `DELETE FROM medicines WHERE id = $1 RETURNING pharmacy_id`, id).Scan(&pharmacyID)
	if err != nil {
		return "", notFoundOr(err)
	}
	return pharmacyID, nil
}

func medicineWhere(pharmacyID string, filters MedicineFilters) (string, []any) {
	where := ` WHERE pharmacy_id = $1`
	args := []any{pharmacyID}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += ` AND title ILIKE $` + strconv.Itoa(len(args))
	}
	if filters.Company != "" {
		args = append(args, filters.Company)
		where += ` AND company = $` + strconv.Itoa(len(args))
	}
	if filters.Group != "" {
		args = append(args, filters.Group)
		where += ` AND group_name = $` + strconv.Itoa(len(args))
	}
	if filters.Category != "" {
		args = append(args, filters.Category)
		where += ` AND category = $` + strconv.Itoa(len(args))
	}
	return where, args
}

// medicineOrder resolves the sort clause; a stock sort overrides a price sort.
func medicineOrder(sortPrice, stockLeft string) string {
	switch strings.ToLower(stockLeft) {
	case "high":
		return "stock DESC, id ASC"
	case "low":
		return "stock ASC, id ASC"
	}
	switch strings.ToLower(sortPrice) {
	case "high":
		return "sell_price DESC, id ASC"
	case "low":
		return "sell_price ASC, id ASC"
	}
	return "name ASC, id ASC"
}

func paginate(query string, args []any, page shared.Page) (string, []any) {
	if !page.Paginated() {
		return query, args
	}
	args = append(args, page.Limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))
	args = append(args, page.Offset())
	query += ` OFFSET $` + strconv.Itoa(len(args))
	return query, args
}

func scanMedicine(row pgx.Row) (Medicine, error) {
	var med Medicine
	var category, purchase, sell string
	if err := row.Scan(&med.ID, &med.Title, &med.Name, &med.Strength, &med.DosageForm, &med.Company, &med.Group,
		&category, &purchase, &sell, &med.Stock, &med.PharmacyID, &med.CreatedAt); err != nil {
		return Medicine{}, err
	}
	med.Category = Category(category)
	var err error
	if med.PurchasePrice, err = decimal.NewFromString(purchase); err != nil {
		return Medicine{}, fmt.Errorf("parse purchase price: %w", err)
	}
	if med.SellPrice, err = decimal.NewFromString(sell); err != nil {
		return Medicine{}, fmt.Errorf("parse sell price: %w", err)
	}
	return med, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	return persistence(err)
}

func persistence(err error) error {
	if shared.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", shared.ErrConflict, err)
	}
	return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
}
