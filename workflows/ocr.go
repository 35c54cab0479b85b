package workflows

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vostok-rest/backoffice/common"
	"github.com/vostok-rest/backoffice/db/repository"
)

// ExtractedDocument is one supplier invoice the OCR pipeline recovered
// from a photo.
type ExtractedDocument struct {
	Supplier string
	Items    []repository.OCRItem
	Total    decimal.Decimal
}

// ExtractionResult is everything one photo produced.
type ExtractionResult struct {
	Documents []ExtractedDocument
	Warnings  []string
}

// OCRExtractor is the opaque photo → structured-document boundary spec.md
// §9/§5 treats as an external collaborator: one method, no further
// contract about how the extraction happens.
type OCRExtractor interface {
	Extract(ctx context.Context, photo []byte) (ExtractionResult, error)
}

// OCR stages extracted invoices for operator review (Upload) and removes
// rejected ones (Discard). It has no step that submits a staged document
// to the POS as an incoming invoice.
type OCR struct {
	extractor OCRExtractor
	documents repository.OCRDocumentRepository
}

func NewOCR(extractor OCRExtractor, documents repository.OCRDocumentRepository) *OCR {
	return &OCR{extractor: extractor, documents: documents}
}

// Upload runs the extractor on a photo and stages each recovered
// document for review, flagging a sum mismatch only when no line item on
// the document is rate-unknown — the VAT-22%-unknown quirk spec.md
// documents must not by itself read as a data-quality problem.
func (w *OCR) Upload(ctx context.Context, uploadedBy, storeID string, photo []byte) ([]*repository.OCRDocument, []string, error) {
	result, err := w.extractor.Extract(ctx, photo)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract ocr document: %w", err)
	}

	warnings := append([]string{}, result.Warnings...)
	var staged []*repository.OCRDocument

	for _, extracted := range result.Documents {
		computed := sumItems(extracted.Items)
		rateUnknown := anyRateUnknown(extracted.Items)

		if !rateUnknown && !common.AmountsEqual(computed, extracted.Total, common.DefaultAmountTolerance) {
			warnings = append(warnings, fmt.Sprintf("%s: declared total %s does not match computed total %s", extracted.Supplier, extracted.Total, computed))
		}

		declared := extracted.Total
		doc := &repository.OCRDocument{
			UploadedBy:    uploadedBy,
			StoreID:       storeID,
			DeclaredTotal: &declared,
			ComputedTotal: &computed,
			RateUnknown:   rateUnknown,
			Items:         extracted.Items,
		}
		if err := w.documents.Create(ctx, doc); err != nil {
			return staged, warnings, fmt.Errorf("failed to stage ocr document: %w", err)
		}
		staged = append(staged, doc)
	}

	return staged, warnings, nil
}

// Discard removes a staged document the operator rejected without
// turning it into an invoice.
func (w *OCR) Discard(ctx context.Context, id string) error {
	return w.documents.Delete(ctx, id)
}

func sumItems(items []repository.OCRItem) decimal.Decimal {
	sums := make([]decimal.Decimal, 0, len(items))
	for _, item := range items {
		sums = append(sums, item.Quantity.Mul(item.UnitPrice))
	}
	return common.SumDecimals(sums)
}

func anyRateUnknown(items []repository.OCRItem) bool {
	for _, item := range items {
		if item.RateUnknown {
			return true
		}
	}
	return false
}
