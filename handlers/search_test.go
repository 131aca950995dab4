package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DeoTime/localys/cache"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func setupSearchTest(t *testing.T) (*SearchHandler, sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	handler := NewSearchHandler(db, cache.NewService(redisClient), logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/search", handler.Search)

	return handler, mock, router
}

func getSearch(router *gin.Engine, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/search"+query, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSearch_MissingQuery(t *testing.T) {
	handler, _, router := setupSearchTest(t)
	defer handler.db.Close()

	w := getSearch(router, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestSearch_InvalidType(t *testing.T) {
	handler, _, router := setupSearchTest(t)
	defer handler.db.Close()

	w := getSearch(router, "?q=pho&type=users")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestSearch_InvalidFilter(t *testing.T) {
	handler, _, router := setupSearchTest(t)
	defer handler.db.Close()

	w := getSearch(router, "?q=pho&min_rating=high")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func videoCandidateRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "business_id", "caption", "video_url", "category", "boost", "views", "created_at"})
}

// Two matching videos from two businesses; the min_rating filter keeps only
// the better-rated one.
func TestSearch_VideosMinRatingFilter(t *testing.T) {
	handler, mock, router := setupSearchTest(t)
	defer handler.db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT v.id, v.business_id").
		WillReturnRows(videoCandidateRows().
			AddRow(1, 10, "Best pho in town", "https://cdn/v1.mp4", "restaurant", 0, 100, now).
			AddRow(2, 20, "Pho and rolls", "https://cdn/v2.mp4", "restaurant", 0, 100, now))

	// Metrics for business 10, then 20. Redis is down in tests, so both are
	// computed from the database.
	mock.ExpectQuery("SELECT avg_rating, review_count FROM businesses").
		WillReturnRows(sqlmock.NewRows([]string{"avg_rating", "review_count"}).AddRow(4.6, 12))
	mock.ExpectQuery("SELECT price FROM items").
		WillReturnRows(sqlmock.NewRows([]string{"price"}).AddRow(12.0))
	mock.ExpectQuery("SELECT avg_rating, review_count FROM businesses").
		WillReturnRows(sqlmock.NewRows([]string{"avg_rating", "review_count"}).AddRow(3.1, 4))
	mock.ExpectQuery("SELECT price FROM items").
		WillReturnRows(sqlmock.NewRows([]string{"price"}).AddRow(11.0))

	w := getSearch(router, "?q=pho&min_rating=4")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Videos []struct {
			ID int `json:"id"`
		} `json:"videos"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Videos) != 1 {
		t.Fatalf("Expected 1 video after rating filter, got %d", len(resp.Videos))
	}
	if resp.Videos[0].ID != 1 {
		t.Errorf("Expected video 1 to survive, got %d", resp.Videos[0].ID)
	}
}

func TestSearch_NoMatches(t *testing.T) {
	handler, mock, router := setupSearchTest(t)
	defer handler.db.Close()

	now := time.Now()
	mock.ExpectQuery("SELECT v.id, v.business_id").
		WillReturnRows(videoCandidateRows().
			AddRow(1, 10, "Fresh flowers daily", "https://cdn/v1.mp4", "florist", 0, 10, now))

	w := getSearch(router, "?q=plumber")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Videos []any `json:"videos"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if len(resp.Videos) != 0 {
		t.Errorf("Expected no results, got %d", len(resp.Videos))
	}
}
