package cli

import (
	"context"
	"fmt"

	"github.com/vostok-rest/backoffice/workflows"
)

// unconfiguredOCRExtractor implements workflows.OCRExtractor for a
// deployment that hasn't wired a real vendor yet. The photo-to-document
// boundary is an opaque external collaborator the upload handler talks
// to through this interface alone, so swapping in a real vendor client
// later is a matter of satisfying workflows.OCRExtractor, not touching
// the OCR workflow itself.
type unconfiguredOCRExtractor struct{}

func newUnconfiguredOCRExtractor() workflows.OCRExtractor {
	return unconfiguredOCRExtractor{}
}

func (unconfiguredOCRExtractor) Extract(ctx context.Context, photo []byte) (workflows.ExtractionResult, error) {
	return workflows.ExtractionResult{}, fmt.Errorf("ocr extraction is not configured for this deployment")
}
