package pos

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/vostok-rest/backoffice/upstream/httpx"
)

// submitRetryPolicy is the idempotent-submission retry spec.md §4.7.2
// allows only because the document UUID is the idempotency key: two
// retries after the first attempt, 2s/5s backoff.
var submitRetryPolicy = httpx.RetryPolicy{Delays: []time.Duration{2 * time.Second, 5 * time.Second}}

// WriteoffDocument is the XML body for a stock write-off submission.
type WriteoffDocument struct {
	DocumentUUID string
	StoreID      string
	AccountID    string
	Comment      string
	Items        []DocumentItem
}

// DocumentItem is one line of a write-off, invoice, or transfer document.
type DocumentItem struct {
	ProductID string
	Quantity  string // decimal.Decimal.String() — kept as string at the wire boundary
}

// InvoiceDocument is the XML body for an outgoing invoice submission.
type InvoiceDocument struct {
	DocumentUUID string
	StoreID      string
	SupplierID   string
	Status       string
	Items        []DocumentItem
}

// TransferDocument is the XML body for an internal stock transfer,
// used by the nightly negative-consumable compensation job.
type TransferDocument struct {
	DocumentUUID string
	FromStoreID  string
	ToStoreID    string
	Items        []DocumentItem
}

// SendWriteoff submits a write-off document. Submission goes through the
// shared httpx loop only with the explicit, bounded submitRetryPolicy,
// keyed by doc.DocumentUUID so a retried POST never creates a duplicate
// POS document.
func (c *Client) SendWriteoff(ctx context.Context, doc WriteoffDocument) error {
	body := buildDocumentXML("writeoffDocument", doc.DocumentUUID, doc.StoreID, doc.AccountID, doc.Comment, doc.Items)
	return c.submitDocument(ctx, "/resto/api/documents/writeoff", body)
}

// SendOutgoingInvoice submits an outgoing invoice document.
func (c *Client) SendOutgoingInvoice(ctx context.Context, doc InvoiceDocument) error {
	body := buildDocumentXML("outgoingInvoice", doc.DocumentUUID, doc.StoreID, doc.SupplierID, doc.Status, doc.Items)
	return c.submitDocument(ctx, "/resto/api/documents/invoice", body)
}

// SendInternalTransfer submits an internal stock transfer, used by the
// nightly negative-consumable compensation workflow.
func (c *Client) SendInternalTransfer(ctx context.Context, doc TransferDocument) error {
	body := buildDocumentXML("internalTransfer", doc.DocumentUUID, doc.FromStoreID, doc.ToStoreID, "", doc.Items)
	return c.submitDocument(ctx, "/resto/api/documents/transfer", body)
}

func (c *Client) submitDocument(ctx context.Context, path string, body []byte) error {
	tok, err := c.token(ctx, false)
	if err != nil {
		return err
	}

	req := httpx.Request{
		Method:  "POST",
		URL:     c.cfg.BaseURL + path + "?key=" + tok,
		Headers: map[string]string{"Content-Type": "application/xml"},
		Body:    body,
		Policy:  submitRetryPolicy,
	}
	resp, err := c.hc.Execute(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to submit document to %s: %w", path, err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("POS rejected document at %s: HTTP %d", path, resp.StatusCode)
	}
	return nil
}

// documentItemXML is one line item, shared by all three document shapes.
type documentItemXML struct {
	ProductID string `xml:"productId"`
	Amount    string `xml:"amount"`
}

// documentXML is the common write-off/invoice/transfer document shape.
// XMLName is set per call since the three document kinds share every
// field but the root element name.
type documentXML struct {
	XMLName        xml.Name
	DocumentNumber string            `xml:"documentNumber"`
	StoreID        string            `xml:"storeId"`
	AccountID      string            `xml:"accountId"`
	Comment        string            `xml:"comment"`
	Items          []documentItemXML `xml:"items>item"`
}

// buildDocumentXML marshals via encoding/xml rather than string
// concatenation, so a reason, author name, or product id containing
// '&', '<', or '>' (e.g. "spoilage & waste") can't produce a malformed
// document the POS endpoint rejects.
func buildDocumentXML(root, docUUID, a, b, comment string, items []DocumentItem) []byte {
	doc := documentXML{
		XMLName:        xml.Name{Local: root},
		DocumentNumber: docUUID,
		StoreID:        a,
		AccountID:      b,
		Comment:        comment,
	}
	for _, item := range items {
		doc.Items = append(doc.Items, documentItemXML{ProductID: item.ProductID, Amount: item.Quantity})
	}
	body, _ := xml.Marshal(doc) // every field is a plain string; Marshal cannot fail here
	return body
}

// FetchStockBalances fetches the current stock balance report.
func (c *Client) FetchStockBalances(ctx context.Context, storeID string) ([]RawRecord, error) {
	return c.fetchXML(ctx, "/resto/api/reports/balance/stores?store="+storeID, "row")
}

// FetchOlapByPreset fetches a server-saved OLAP aggregation report by id.
func (c *Client) FetchOlapByPreset(ctx context.Context, presetID string) ([]RawRecord, error) {
	return c.fetchXML(ctx, "/resto/api/reports/olap/byPreset?id="+presetID, "row")
}

// FetchOlapTransactions fetches raw OLAP transaction rows for the given
// grouping and filter (used by the nightly negative-consumable report,
// grouped by Account.Name x Product.TopParent).
func (c *Client) FetchOlapTransactions(ctx context.Context, groupBy, filterTopParent string) ([]RawRecord, error) {
	return c.fetchXML(ctx, "/resto/api/reports/olap/transactions?groupBy="+groupBy+"&topParent="+filterTopParent, "row")
}
