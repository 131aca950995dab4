package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DeoTime/localys/payments"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/IBM/sarama/mocks"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const webhookSecret = "whsec_test"

func setupWebhookTest(t *testing.T) (*WebhookHandler, sqlmock.Sqlmock, *mocks.SyncProducer, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	producer := mocks.NewSyncProducer(t, nil)

	handler := &WebhookHandler{
		db:            db,
		webhookSecret: webhookSecret,
		producer:      producer,
		topic:         "localys_events",
		logger:        logger,
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/webhooks/stripe", handler.HandleStripe)

	return handler, mock, producer, router
}

func sessionEvent(sessionID, paymentStatus string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": %q,
			"payment_status": %q,
			"amount_total": 499,
			"currency": "usd",
			"metadata": {"kind": "coin", "user_id": "1", "coin_amount": "500"}
		}}
	}`, sessionID, paymentStatus))
}

func deliver(router *gin.Engine, payload []byte, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandleStripe_RejectsBadSignature(t *testing.T) {
	handler, _, _, router := setupWebhookTest(t)
	defer handler.db.Close()

	payload := sessionEvent("cs_test_1", "paid")
	header := payments.SignPayload(payload, "wrong-secret", time.Now())

	w := deliver(router, payload, header)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestHandleStripe_RejectsStaleSignature(t *testing.T) {
	handler, _, _, router := setupWebhookTest(t)
	defer handler.db.Close()

	payload := sessionEvent("cs_test_1", "paid")
	header := payments.SignPayload(payload, webhookSecret, time.Now().Add(-time.Hour))

	w := deliver(router, payload, header)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestHandleStripe_IgnoresUnpaidSession(t *testing.T) {
	handler, _, _, router := setupWebhookTest(t)
	defer handler.db.Close()

	payload := sessionEvent("cs_test_1", "unpaid")
	header := payments.SignPayload(payload, webhookSecret, time.Now())

	w := deliver(router, payload, header)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestHandleStripe_CreditsCoins(t *testing.T) {
	handler, mock, producer, router := setupWebhookTest(t)
	defer handler.db.Close()

	rows := sqlmock.NewRows([]string{"id", "kind", "user_id", "amount", "coin_amount"}).
		AddRow(testOrderID, "coin", 1, 4.99, 500)
	mock.ExpectQuery("UPDATE orders SET status = 'paid'").WillReturnRows(rows)
	mock.ExpectExec("UPDATE users SET coin_balance = coin_balance").
		WillReturnResult(sqlmock.NewResult(0, 1))
	producer.ExpectSendMessageAndSucceed()

	payload := sessionEvent("cs_test_coins", "paid")
	header := payments.SignPayload(payload, webhookSecret, time.Now())

	w := deliver(router, payload, header)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestHandleStripe_RedeliveryIsNoOp(t *testing.T) {
	handler, mock, _, router := setupWebhookTest(t)
	defer handler.db.Close()

	// The conditional pending->paid transition already happened; nothing is
	// credited a second time.
	mock.ExpectQuery("UPDATE orders SET status = 'paid'").
		WillReturnRows(sqlmock.NewRows([]string{"id", "kind", "user_id", "amount", "coin_amount"}))

	payload := sessionEvent("cs_test_coins", "paid")
	header := payments.SignPayload(payload, webhookSecret, time.Now())

	w := deliver(router, payload, header)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}
