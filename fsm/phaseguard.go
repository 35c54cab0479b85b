package fsm

import "fmt"

// Phase is a named FSM state. Each workflow (write-off, invoice,
// authorisation, product request) defines its own Phase constants and
// ValidTransitions table; PhaseGuard is generic over that table so every
// workflow shares one validated-transition mechanism instead of
// reimplementing it.
type Phase string

// ValidTransitions maps a phase to the set of phases reachable from it in
// one step. An entry absent from the map, or a target not present in its
// slice, is an invalid transition.
type ValidTransitions map[Phase][]Phase

// PhaseGuard validates that a workflow's FSM only moves along the edges
// its transition table allows — an invalid "Approve" from "rejected" is
// rejected here, at the table, rather than surfacing as a runtime surprise
// deep inside a handler.
type PhaseGuard struct {
	transitions ValidTransitions
}

// NewPhaseGuard builds a guard for the given transition table.
func NewPhaseGuard(transitions ValidTransitions) *PhaseGuard {
	return &PhaseGuard{transitions: transitions}
}

// CanTransition reports whether from → to is an allowed edge.
func (g *PhaseGuard) CanTransition(from, to Phase) bool {
	targets, ok := g.transitions[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

// Validate returns an error naming the invalid edge if from → to is not
// allowed; nil otherwise. Workflow handlers call this before committing a
// phase change to a Session.
func (g *PhaseGuard) Validate(from, to Phase) error {
	if !g.CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %q to %q", from, to)
	}
	return nil
}

// IsTerminal reports whether phase has no outgoing edges in this table —
// a workflow that reaches a terminal phase is done and its session can be
// cleaned up.
func (g *PhaseGuard) IsTerminal(phase Phase) bool {
	targets, ok := g.transitions[phase]
	return !ok || len(targets) == 0
}

// Write-off authoring/approval phases (spec.md §4.7.2).
const (
	WriteoffStore     Phase = "store"
	WriteoffAccount   Phase = "account"
	WriteoffReason    Phase = "reason"
	WriteoffItems     Phase = "items"
	WriteoffQuantity  Phase = "quantity"
	WriteoffPending   Phase = "pending_review"
	WriteoffApproved  Phase = "approved"
	WriteoffRejected  Phase = "rejected"
	WriteoffCancelled Phase = "cancelled"
)

// WriteoffTransitions is the authoring → review → terminal table for the
// write-off workflow.
var WriteoffTransitions = ValidTransitions{
	WriteoffStore:    {WriteoffAccount, WriteoffCancelled},
	WriteoffAccount:  {WriteoffReason, WriteoffCancelled},
	WriteoffReason:   {WriteoffItems, WriteoffCancelled},
	WriteoffItems:    {WriteoffQuantity, WriteoffPending, WriteoffCancelled},
	WriteoffQuantity: {WriteoffItems, WriteoffCancelled},
	WriteoffPending:  {WriteoffApproved, WriteoffRejected, WriteoffCancelled},
}

// Authorisation phases (spec.md §4.7.1).
const (
	AuthPending    Phase = "pending"
	AuthAskName    Phase = "ask_last_name"
	AuthChoose     Phase = "choose_match"
	AuthRestaurant Phase = "choose_restaurant"
	AuthBound      Phase = "bound"
)

// AuthorisationTransitions is the employee-binding table.
var AuthorisationTransitions = ValidTransitions{
	AuthPending:    {AuthAskName},
	AuthAskName:    {AuthChoose, AuthAskName},
	AuthChoose:     {AuthRestaurant, AuthAskName},
	AuthRestaurant: {AuthBound},
}

// Invoice/product-request phases (spec.md §4.7.3).
const (
	InvoiceStore     Phase = "store"
	InvoiceSupplier  Phase = "supplier_search"
	InvoiceItems     Phase = "items"
	InvoiceTemplate  Phase = "template_name"
	InvoiceQuantity  Phase = "quantity_entry"
	InvoiceSubmitted Phase = "submitted"
	InvoiceCancelled Phase = "cancelled"
)

// InvoiceTransitions is the invoice/product-request authoring table.
var InvoiceTransitions = ValidTransitions{
	InvoiceStore:    {InvoiceSupplier, InvoiceCancelled},
	InvoiceSupplier: {InvoiceItems, InvoiceCancelled},
	InvoiceItems:    {InvoiceTemplate, InvoiceQuantity, InvoiceCancelled},
	InvoiceTemplate: {InvoiceSubmitted, InvoiceCancelled},
	InvoiceQuantity: {InvoiceSubmitted, InvoiceItems, InvoiceCancelled},
}
