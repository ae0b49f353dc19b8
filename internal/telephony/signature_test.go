package telephony

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestValidSignature(t *testing.T) {
	params := url.Values{
		"CallSid": {"CA1234567890ABCDE"},
		"Digits":  {"1234"},
		"To":      {"+18005551212"},
	}
	const u = "https://mycompany.com/myapp.php?foo=1&bar=2"
	sig := ComputeSignature("12345", u, params)

	if !ValidSignature("12345", u, params, sig) {
		t.Fatalf("expected signature to validate")
	}
	if ValidSignature("54321", u, params, sig) {
		t.Fatalf("wrong token must not validate")
	}
	params.Set("Digits", "9999")
	if ValidSignature("12345", u, params, sig) {
		t.Fatalf("tampered params must not validate")
	}
	if ValidSignature("12345", u, params, "") {
		t.Fatalf("missing signature must not validate")
	}
}

func TestSignatureMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/twilio/call-status", SignatureMiddleware("tok", "https://crm.example.com"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	body := "CallSid=CA1&CallStatus=completed"
	params, _ := url.ParseQuery(body)
	sig := ComputeSignature("tok", "https://crm.example.com/webhooks/twilio/call-status?UserId=sp-1", params)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/call-status?UserId=sp-1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(headerTwilioSignature, sig)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhooks/twilio/call-status?UserId=sp-1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(headerTwilioSignature, "bogus")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}
