// Package webhook handles inbound cloud POS events: StopListUpdate,
// DeliveryOrderUpdate/Closed, TableOrderUpdate/Closed. Dispatch is a
// handler-map lookup by event class, adapted from the teacher's
// coordinator.Coordinator dispatch table with the outbound websocket loop
// removed — these events arrive as inbound HTTP, not over a persistent
// connection this service maintains.
package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/vostok-rest/backoffice/common"
)

// Event is one decoded webhook payload, tagged by its class.
type Event struct {
	Class string
	Raw   json.RawMessage
}

// Handler processes one event class.
type Handler func(e Event) error

// SignatureVerifier checks the shared-secret header against the raw body.
type SignatureVerifier interface {
	VerifyWebhookSignature(body []byte, authTokenHeader string) bool
}

// Dispatcher routes decoded webhook events to per-class handlers.
type Dispatcher struct {
	verifier SignatureVerifier
	handlers map[string]Handler
}

// NewDispatcher builds a Dispatcher that authenticates every request via
// verifier before routing it.
func NewDispatcher(verifier SignatureVerifier) *Dispatcher {
	return &Dispatcher{verifier: verifier, handlers: make(map[string]Handler)}
}

// On registers a handler for an event class ("StopListUpdate",
// "DeliveryOrderUpdate", "DeliveryOrderClosed", "TableOrderUpdate",
// "TableOrderClosed").
func (d *Dispatcher) On(class string, h Handler) {
	d.handlers[class] = h
}

type inboundEnvelope struct {
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
}

// EchoHandler returns an echo.HandlerFunc that verifies the shared-secret
// header, decodes the envelope, and dispatches to the matching handler.
// Unknown event classes are acknowledged (200) but otherwise ignored,
// since the cloud system may add payload classes this service doesn't
// need to act on yet.
func (d *Dispatcher) EchoHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		defer c.Request().Body.Close()
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.String(http.StatusBadRequest, "failed to read body")
		}

		authHeader := c.Request().Header.Get("X-Vendor-Auth-Token")
		if d.verifier != nil && !verifySignature(d.verifier, body, authHeader) {
			return c.String(http.StatusUnauthorized, "invalid signature")
		}

		var envelope inboundEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			return c.String(http.StatusBadRequest, "malformed payload")
		}

		h, ok := d.handlers[envelope.EventType]
		if !ok {
			return c.NoContent(http.StatusOK)
		}

		if err := h(Event{Class: envelope.EventType, Raw: envelope.Payload}); err != nil {
			common.Logger.WithFields(common.ErrorFields(err, envelope.EventType)).Error("webhook handler failed")
			return c.String(http.StatusInternalServerError, "handler failed")
		}
		return c.NoContent(http.StatusOK)
	}
}

func verifySignature(v SignatureVerifier, body []byte, authHeader string) bool {
	if authHeader == "" {
		return false
	}
	return v.VerifyWebhookSignature(body, authHeader)
}
