package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DeoTime/localys/middleware"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func setupMessageTest(t *testing.T) (*MessageHandler, sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	handler := NewMessageHandler(db, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set(middleware.UserIDKey, 1) })
	router.POST("/messages", handler.Send)
	router.GET("/messages/:userID", handler.ListConversation)

	return handler, mock, router
}

func TestSendMessage_Success(t *testing.T) {
	handler, mock, router := setupMessageTest(t)
	defer handler.db.Close()

	mock.ExpectQuery("INSERT INTO messages").
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "recipient_id", "body", "created_at"}).
			AddRow(1, 1, 2, "Is the shop open today?", time.Now()))

	w := postJSON(router, "/messages", map[string]any{
		"recipient_id": 2,
		"body":         "Is the shop open today?",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSendMessage_ToSelf(t *testing.T) {
	handler, _, router := setupMessageTest(t)
	defer handler.db.Close()

	w := postJSON(router, "/messages", map[string]any{
		"recipient_id": 1,
		"body":         "hello me",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestListConversation_MarksRead(t *testing.T) {
	handler, mock, router := setupMessageTest(t)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT (.+) FROM messages").
		WillReturnRows(sqlmock.NewRows([]string{"id", "sender_id", "recipient_id", "body", "created_at", "read_at"}).
			AddRow(1, 2, 1, "We open at 9", time.Now(), nil))
	mock.ExpectExec("UPDATE messages SET read_at").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest("GET", "/messages/2", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Read receipts not updated: %v", err)
	}
}
