package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DeoTime/localys/middleware"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func setupCartTest(t *testing.T) (*CartHandler, sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	handler := NewCartHandler(db, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set(middleware.UserIDKey, 1) })
	router.GET("/cart", handler.GetCart)
	router.POST("/cart/items", handler.AddItem)
	router.DELETE("/cart/items/:itemID", handler.RemoveItem)

	return handler, mock, router
}

func TestGetCart_Total(t *testing.T) {
	handler, mock, router := setupCartTest(t)
	defer handler.db.Close()

	mock.ExpectQuery("SELECT (.+) FROM cart_items").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "item_id", "name", "price", "quantity"}).
			AddRow(1, 1, 5, "Pho Bo", 12.50, 2).
			AddRow(2, 1, 6, "Spring Rolls", 6.00, 1))

	req := httptest.NewRequest("GET", "/cart", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Total float64 `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Total != 31.0 {
		t.Errorf("Expected total 31.0, got %v", resp.Total)
	}
}

func TestAddCartItem_Success(t *testing.T) {
	handler, mock, router := setupCartTest(t)
	defer handler.db.Close()

	mock.ExpectQuery("INSERT INTO cart_items").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	w := postJSON(router, "/cart/items", map[string]int{"item_id": 5, "quantity": 2})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRemoveCartItem_NotInCart(t *testing.T) {
	handler, mock, router := setupCartTest(t)
	defer handler.db.Close()

	mock.ExpectExec("DELETE FROM cart_items").
		WillReturnResult(sqlmock.NewResult(0, 0))

	req := httptest.NewRequest("DELETE", "/cart/items/99", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}
