package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DeoTime/localys/cache"
	"github.com/DeoTime/localys/middleware"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/IBM/sarama/mocks"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func setupVideoTest(t *testing.T) (*VideoHandler, sqlmock.Sqlmock, *mocks.SyncProducer, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	producer := mocks.NewSyncProducer(t, nil)
	handler := NewVideoHandler(db, cache.NewService(redisClient), producer, "localys_events", logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set(middleware.UserIDKey, 1) })
	router.GET("/feed", handler.Feed)
	router.POST("/videos/:id/view", handler.RecordView)
	router.POST("/businesses/:id/videos", handler.CreateVideo)
	router.POST("/videos/:id/boost", handler.Boost)

	return handler, mock, producer, router
}

func TestBoost_InsufficientBalance(t *testing.T) {
	handler, mock, _, router := setupVideoTest(t)
	defer handler.db.Close()

	mock.ExpectExec("UPDATE users SET coin_balance = coin_balance -").
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := postJSON(router, "/videos/7/boost", map[string]int{"coins": 100})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBoost_Success(t *testing.T) {
	handler, mock, producer, router := setupVideoTest(t)
	defer handler.db.Close()

	mock.ExpectExec("UPDATE users SET coin_balance = coin_balance -").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE videos SET boost").
		WillReturnRows(sqlmock.NewRows([]string{"boost"}).AddRow(150))
	producer.ExpectSendMessageAndSucceed()

	w := postJSON(router, "/videos/7/boost", map[string]int{"coins": 100})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestBoost_VideoNotFoundRefunds(t *testing.T) {
	handler, mock, _, router := setupVideoTest(t)
	defer handler.db.Close()

	mock.ExpectExec("UPDATE users SET coin_balance = coin_balance -").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE videos SET boost").
		WillReturnRows(sqlmock.NewRows([]string{"boost"}))
	mock.ExpectExec(`UPDATE users SET coin_balance = coin_balance \+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postJSON(router, "/videos/999/boost", map[string]int{"coins": 100})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Refund was not issued: %v", err)
	}
}

func TestFeed_InvalidPage(t *testing.T) {
	handler, _, _, router := setupVideoTest(t)
	defer handler.db.Close()

	req := httptest.NewRequest("GET", "/feed?page=-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestFeed_OrdersByBoost(t *testing.T) {
	handler, mock, _, router := setupVideoTest(t)
	defer handler.db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM videos").
		WillReturnRows(sqlmock.NewRows([]string{"id", "business_id", "caption", "video_url", "boost", "views", "likes", "created_at"}).
			AddRow(2, 10, "Boosted clip", "https://cdn/v2.mp4", 500, 90, 4, now).
			AddRow(1, 10, "Plain clip", "https://cdn/v1.mp4", 0, 200, 9, now))

	req := httptest.NewRequest("GET", "/feed", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var videos []struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &videos); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("Expected 2 videos, got %d", len(videos))
	}
	if videos[0].ID != 2 {
		t.Errorf("Expected boosted video first, got %d", videos[0].ID)
	}
}

func TestRecordView_UnknownVideo(t *testing.T) {
	handler, mock, _, router := setupVideoTest(t)
	defer handler.db.Close()

	mock.ExpectExec("UPDATE videos SET views").
		WillReturnResult(sqlmock.NewResult(0, 0))

	w := postJSON(router, "/videos/999/view", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestCreateVideo_NotOwner(t *testing.T) {
	handler, mock, _, router := setupVideoTest(t)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT owner_id FROM businesses").
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}).AddRow(42))

	w := postJSON(router, "/businesses/10/videos", map[string]any{
		"caption":   "Fresh batch",
		"video_url": "https://cdn/v9.mp4",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBoost_InvalidAmount(t *testing.T) {
	handler, _, _, router := setupVideoTest(t)
	defer handler.db.Close()

	w := postJSON(router, "/videos/7/boost", map[string]int{"coins": 0})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}
