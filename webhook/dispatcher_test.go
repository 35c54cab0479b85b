package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier struct{ valid bool }

func (f *fakeVerifier) VerifyWebhookSignature(body []byte, authTokenHeader string) bool {
	return f.valid
}

func postWebhook(t *testing.T, d *Dispatcher, authHeader string, envelope interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(envelope)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("X-Vendor-Auth-Token", authHeader)
	}
	rec := httptest.NewRecorder()

	e := echo.New()
	c := e.NewContext(req, rec)
	_ = d.EchoHandler()(c)
	return rec
}

func TestDispatcher_RejectsMissingSignature(t *testing.T) {
	d := NewDispatcher(&fakeVerifier{valid: false})
	rec := postWebhook(t, d, "", map[string]interface{}{"eventType": "StopListUpdate"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDispatcher_RejectsInvalidSignature(t *testing.T) {
	d := NewDispatcher(&fakeVerifier{valid: false})
	rec := postWebhook(t, d, "bad-token", map[string]interface{}{"eventType": "StopListUpdate"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDispatcher_RoutesToRegisteredHandler(t *testing.T) {
	d := NewDispatcher(&fakeVerifier{valid: true})
	var received Event
	d.On("StopListUpdate", func(e Event) error {
		received = e
		return nil
	})

	rec := postWebhook(t, d, "good-token", map[string]interface{}{
		"eventType": "StopListUpdate",
		"payload":   map[string]interface{}{"terminalGroupId": "tg-1"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "StopListUpdate", received.Class)
	assert.Contains(t, string(received.Raw), "tg-1")
}

func TestDispatcher_UnknownEventClassIsAcknowledged(t *testing.T) {
	d := NewDispatcher(&fakeVerifier{valid: true})
	rec := postWebhook(t, d, "good-token", map[string]interface{}{"eventType": "SomethingNew"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDispatcher_HandlerErrorReturns500(t *testing.T) {
	d := NewDispatcher(&fakeVerifier{valid: true})
	d.On("StopListUpdate", func(e Event) error {
		return assert.AnError
	})

	rec := postWebhook(t, d, "good-token", map[string]interface{}{"eventType": "StopListUpdate"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
