package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/DeoTime/localys/middleware"
	"github.com/DeoTime/localys/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CartHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCartHandler(db *sql.DB, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		db:     db,
		logger: logger,
	}
}

func (h *CartHandler) GetCart(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "GetCart")
	defer span.End()

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT ci.id, ci.user_id, ci.item_id, i.name, i.price, ci.quantity
		   FROM cart_items ci JOIN items i ON i.id = ci.item_id
		  WHERE ci.user_id = $1 ORDER BY ci.id`,
		userID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to fetch cart", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer rows.Close()

	items := []models.CartItem{}
	var total float64
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.ItemID, &item.ItemName, &item.Price, &item.Quantity); err != nil {
			span.RecordError(err)
			continue
		}
		total += item.Price * float64(item.Quantity)
		items = append(items, item)
	}

	span.SetAttributes(attribute.Int("cart.items", len(items)))
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

// AddItem inserts or bumps the quantity of a cart row; the unique
// constraint on (user_id, item_id) keeps concurrent adds to one row.
func (h *CartHandler) AddItem(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "AddCartItem")
	defer span.End()

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var id int
	err := h.db.QueryRowContext(ctx,
		`INSERT INTO cart_items (user_id, item_id, quantity) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, item_id) DO UPDATE SET quantity = cart_items.quantity + $3
		 RETURNING id`,
		userID, req.ItemID, req.Quantity,
	).Scan(&id)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to add cart item", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	span.SetAttributes(attribute.Int("cart_item.id", id))
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	ctx, span := otel.Tracer("localys").Start(c.Request.Context(), "RemoveCartItem")
	defer span.End()

	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	itemID, err := strconv.Atoi(c.Param("itemID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	result, err := h.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id = $1 AND item_id = $2",
		userID, itemID,
	)
	if err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to remove cart item", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not in cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed"})
}
