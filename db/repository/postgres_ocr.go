package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/vostok-rest/backoffice/db"
)

// OCRItem is one extracted invoice line, carrying the rate-unknown quirk
// field spec.md §5 documents: a VAT rate of "22%" may appear that isn't
// in the mapping table, and that must never by itself read as a
// sum-mismatch data-quality problem.
type OCRItem struct {
	ProductName string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	VATRate     *decimal.Decimal
	RateUnknown bool
}

// OCRDocument is one staged extraction awaiting operator review before
// becoming a live invoice.
type OCRDocument struct {
	ID            string
	UploadedBy    string
	StoreID       string
	RawPayload    []byte
	DeclaredTotal *decimal.Decimal
	ComputedTotal *decimal.Decimal
	RateUnknown   bool
	Items         []OCRItem
}

// OCRDocumentRepository stages OCR-extracted invoices for operator review.
type OCRDocumentRepository interface {
	Create(ctx context.Context, doc *OCRDocument) error
	Get(ctx context.Context, id string) (*OCRDocument, error)
	Delete(ctx context.Context, id string) error
}

// PostgresOCRDocumentRepository implements OCRDocumentRepository against
// ocr_documents/ocr_items.
type PostgresOCRDocumentRepository struct {
	pg *db.PostgresDB
}

func NewPostgresOCRDocumentRepository(pg *db.PostgresDB) *PostgresOCRDocumentRepository {
	return &PostgresOCRDocumentRepository{pg: pg}
}

func (r *PostgresOCRDocumentRepository) Create(ctx context.Context, doc *OCRDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	return r.pg.RunInTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO ocr_documents (id, uploaded_by, store_id, raw_payload, declared_total, computed_total, rate_unknown)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			doc.ID, doc.UploadedBy, doc.StoreID, doc.RawPayload, decimalPtrString(doc.DeclaredTotal), decimalPtrString(doc.ComputedTotal), doc.RateUnknown)
		if err != nil {
			return fmt.Errorf("failed to insert ocr document: %w", err)
		}

		for _, item := range doc.Items {
			_, err := tx.Exec(ctx, `
				INSERT INTO ocr_items (id, document_id, product_name, quantity, unit_price, vat_rate, rate_unknown)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				uuid.NewString(), doc.ID, item.ProductName, item.Quantity.String(), item.UnitPrice.String(), decimalPtrString(item.VATRate), item.RateUnknown)
			if err != nil {
				return fmt.Errorf("failed to insert ocr item: %w", err)
			}
		}
		return nil
	})
}

func (r *PostgresOCRDocumentRepository) Get(ctx context.Context, id string) (*OCRDocument, error) {
	var doc OCRDocument
	var declaredTotal, computedTotal *string
	err := r.pg.QueryRow(ctx, `
		SELECT id, uploaded_by, store_id, raw_payload, declared_total, computed_total, rate_unknown
		FROM ocr_documents WHERE id = $1`, id).
		Scan(&doc.ID, &doc.UploadedBy, &doc.StoreID, &doc.RawPayload, &declaredTotal, &computedTotal, &doc.RateUnknown)
	if err != nil {
		return nil, fmt.Errorf("failed to get ocr document %s: %w", id, err)
	}
	if doc.DeclaredTotal, err = decimalPtrFromString(declaredTotal); err != nil {
		return nil, err
	}
	if doc.ComputedTotal, err = decimalPtrFromString(computedTotal); err != nil {
		return nil, err
	}

	rows, err := r.pg.Query(ctx, `
		SELECT product_name, quantity, unit_price, vat_rate, rate_unknown
		FROM ocr_items WHERE document_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list ocr items for document %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var item OCRItem
		var quantity, unitPrice string
		var vatRate *string
		if err := rows.Scan(&item.ProductName, &quantity, &unitPrice, &vatRate, &item.RateUnknown); err != nil {
			return nil, fmt.Errorf("failed to scan ocr item row: %w", err)
		}
		if item.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("failed to parse ocr item quantity: %w", err)
		}
		if item.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("failed to parse ocr item unit price: %w", err)
		}
		if item.VATRate, err = decimalPtrFromString(vatRate); err != nil {
			return nil, err
		}
		doc.Items = append(doc.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *PostgresOCRDocumentRepository) Delete(ctx context.Context, id string) error {
	return r.pg.RunInTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM ocr_items WHERE document_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete ocr items for document %s: %w", id, err)
		}
		_, err := tx.Exec(ctx, `DELETE FROM ocr_documents WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete ocr document %s: %w", id, err)
		}
		return nil
	})
}

func decimalPtrString(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func decimalPtrFromString(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse decimal %q: %w", *s, err)
	}
	return &d, nil
}
