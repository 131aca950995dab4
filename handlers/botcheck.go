package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DeoTime/localys/circuitbreaker"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type BotCheckHandler struct {
	client   *http.Client
	breaker  *circuitbreaker.CircuitBreaker
	checkURL string
	secret   string
	logger   *zap.Logger
}

func NewBotCheckHandler(client *http.Client, checkURL, secret string, logger *zap.Logger) *BotCheckHandler {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &BotCheckHandler{
		client:   client,
		breaker:  circuitbreaker.New(5, 30*time.Second),
		checkURL: checkURL,
		secret:   secret,
		logger:   logger,
	}
}

type botCheckRequest struct {
	Token string `json:"token" binding:"required"`
}

type verifierResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify forwards a challenge token to the upstream verifier along with the
// client IP. Without a configured secret the check passes unconditionally,
// which is the local-development mode.
func (h *BotCheckHandler) Verify(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "BotCheck")
	defer span.End()

	var req botCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	if h.secret == "" {
		c.JSON(http.StatusOK, gin.H{"success": true, "bypass": true})
		return
	}

	var verdict verifierResponse
	err := h.breaker.Execute(ctx, func() error {
		return h.callVerifier(ctx, req.Token, c.ClientIP(), &verdict)
	})
	if err != nil {
		span.RecordError(err)
		if err == circuitbreaker.ErrCircuitOpen {
			h.logger.Warn("Bot-check verifier circuit open")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Verification temporarily unavailable"})
			return
		}
		h.logger.Error("Bot-check verifier call failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Verification failed"})
		return
	}

	span.SetAttributes(attribute.Bool("botcheck.success", verdict.Success))
	if !verdict.Success {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "errors": verdict.ErrorCodes})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *BotCheckHandler) callVerifier(ctx context.Context, token, remoteIP string, verdict *verifierResponse) error {
	form := url.Values{}
	form.Set("secret", h.secret)
	form.Set("response", token)
	form.Set("remoteip", remoteIP)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.checkURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(verdict)
}
