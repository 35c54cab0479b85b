package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vostok-rest/backoffice/db"
)

// PostgresInvoiceTemplateRepository implements InvoiceTemplateRepository
// against invoice_templates.
type PostgresInvoiceTemplateRepository struct {
	pg *db.PostgresDB
}

func NewPostgresInvoiceTemplateRepository(pg *db.PostgresDB) *PostgresInvoiceTemplateRepository {
	return &PostgresInvoiceTemplateRepository{pg: pg}
}

func (r *PostgresInvoiceTemplateRepository) Create(ctx context.Context, tpl *InvoiceTemplate) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	return r.pg.Exec(ctx, `
		INSERT INTO invoice_templates (id, name, supplier_id, store_id, items, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		tpl.ID, tpl.Name, tpl.SupplierID, tpl.StoreID, tpl.Items, tpl.CreatedBy)
}

func (r *PostgresInvoiceTemplateRepository) Get(ctx context.Context, id string) (*InvoiceTemplate, error) {
	var tpl InvoiceTemplate
	err := r.pg.QueryRow(ctx, `
		SELECT id, name, supplier_id, store_id, items, created_by
		FROM invoice_templates WHERE id = $1`, id).
		Scan(&tpl.ID, &tpl.Name, &tpl.SupplierID, &tpl.StoreID, &tpl.Items, &tpl.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice template %s: %w", id, err)
	}
	return &tpl, nil
}

func (r *PostgresInvoiceTemplateRepository) ListByStore(ctx context.Context, storeID string) ([]InvoiceTemplate, error) {
	rows, err := r.pg.Query(ctx, `
		SELECT id, name, supplier_id, store_id, items, created_by
		FROM invoice_templates WHERE store_id = $1 ORDER BY created_at DESC`, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice templates for store %s: %w", storeID, err)
	}
	defer rows.Close()

	var out []InvoiceTemplate
	for rows.Next() {
		var tpl InvoiceTemplate
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.SupplierID, &tpl.StoreID, &tpl.Items, &tpl.CreatedBy); err != nil {
			return nil, fmt.Errorf("failed to scan invoice template row: %w", err)
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

// PostgresProductRequestRepository implements ProductRequestRepository
// against product_requests.
type PostgresProductRequestRepository struct {
	pg *db.PostgresDB
}

func NewPostgresProductRequestRepository(pg *db.PostgresDB) *PostgresProductRequestRepository {
	return &PostgresProductRequestRepository{pg: pg}
}

func (r *PostgresProductRequestRepository) Create(ctx context.Context, req *ProductRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return r.pg.Exec(ctx, `
		INSERT INTO product_requests (id, requested_by, store_id, product_name, quantity, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		req.ID, req.RequestedBy, req.StoreID, req.ProductName, req.Quantity.String(), req.Status)
}

func (r *PostgresProductRequestRepository) Get(ctx context.Context, id string) (*ProductRequest, error) {
	var req ProductRequest
	var quantity string
	var resolvedBy *string
	err := r.pg.QueryRow(ctx, `
		SELECT id, requested_by, store_id, product_name, quantity, status, resolved_by
		FROM product_requests WHERE id = $1`, id).
		Scan(&req.ID, &req.RequestedBy, &req.StoreID, &req.ProductName, &quantity, &req.Status, &resolvedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to get product request %s: %w", id, err)
	}
	if resolvedBy != nil {
		req.ResolvedBy = *resolvedBy
	}
	qty, err := decimal.NewFromString(quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to parse product request quantity: %w", err)
	}
	req.Quantity = qty
	return &req, nil
}

func (r *PostgresProductRequestRepository) UpdateStatus(ctx context.Context, id, status, resolvedBy string) error {
	return r.pg.Exec(ctx, `
		UPDATE product_requests SET status = $2, resolved_by = $3, resolved_at = now()
		WHERE id = $1`, id, status, nullIfEmpty(resolvedBy))
}
