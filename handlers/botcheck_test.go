package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func setupBotCheckTest(t *testing.T, verifier http.HandlerFunc) (*gin.Engine, *httptest.Server) {
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))

	var upstream *httptest.Server
	checkURL := ""
	secret := "test-botcheck-secret"
	if verifier != nil {
		upstream = httptest.NewServer(verifier)
		checkURL = upstream.URL
	} else {
		secret = ""
	}

	handler := NewBotCheckHandler(nil, checkURL, secret, logger)
	router := gin.New()
	router.POST("/botcheck", handler.Verify)
	return router, upstream
}

func TestBotCheck_DevBypassWithoutSecret(t *testing.T) {
	router, _ := setupBotCheckTest(t, nil)

	w := postJSON(router, "/botcheck", map[string]string{"token": "anything"})
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestBotCheck_MissingToken(t *testing.T) {
	router, _ := setupBotCheckTest(t, nil)

	w := postJSON(router, "/botcheck", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestBotCheck_UpstreamAccepts(t *testing.T) {
	router, upstream := setupBotCheckTest(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("Failed to parse verifier form: %v", err)
		}
		if r.PostForm.Get("response") != "tok_123" {
			t.Errorf("Expected challenge token forwarded, got %q", r.PostForm.Get("response"))
		}
		if r.PostForm.Get("remoteip") == "" {
			t.Error("Expected client IP forwarded")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true}`))
	})
	defer upstream.Close()

	w := postJSON(router, "/botcheck", map[string]string{"token": "tok_123"})
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBotCheck_UpstreamRejects(t *testing.T) {
	router, upstream := setupBotCheckTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "error-codes": ["invalid-input-response"]}`))
	})
	defer upstream.Close()

	w := postJSON(router, "/botcheck", map[string]string{"token": "tok_bad"})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d: %s", w.Code, w.Body.String())
	}
}
