package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopkit-labs/shopkit/internal/domain"
)

// The handler depends on narrow interfaces rather than the concrete
// services so tests can stub each collaborator independently.

type CartResolver interface {
	ResolveActiveCart(ctx context.Context, userID string) (string, error)
}

type CartMutator interface {
	AddItem(ctx context.Context, cartID string, product domain.Product, quantity int) error
	UpdateQuantity(ctx context.Context, cartID, lineItemID string, quantity int) error
	RemoveItem(ctx context.Context, cartID, lineItemID string) error
	ClearCart(ctx context.Context, cartID string) error
}

type CartReader interface {
	FetchView(ctx context.Context, cartID string) ([]domain.CartViewItem, error)
	ListLineItems(ctx context.Context, cartID string) ([]domain.CartLineItem, error)
}

type Catalog interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, productID string) (*domain.Product, error)
}

type OrderReader interface {
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
}

type CheckoutService interface {
	Checkout(ctx context.Context, userID, cartID string, items []domain.CartLineItem, total int64) (string, error)
	CancelOrder(ctx context.Context, userID, orderID string) error
}

type CartProjector interface {
	Subscribe(ctx context.Context, cartID string, onChange func(domain.CartView)) (func(), error)
	CurrentView(cartID string) domain.CartView
}

type Handler struct {
	resolver  CartResolver
	mutator   CartMutator
	carts     CartReader
	catalog   Catalog
	orders    OrderReader
	checkout  CheckoutService
	projector CartProjector
	logger    *slog.Logger
}

func NewHandler(resolver CartResolver, mutator CartMutator, carts CartReader, catalog Catalog, orders OrderReader, checkout CheckoutService, projector CartProjector, logger *slog.Logger) *Handler {
	return &Handler{
		resolver:  resolver,
		mutator:   mutator,
		carts:     carts,
		catalog:   catalog,
		orders:    orders,
		checkout:  checkout,
		projector: projector,
		logger:    logger,
	}
}

// userID pulls the caller identity resolved by the auth layer in front of
// this service. The core treats it as opaque.
func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		h.writeError(w, http.StatusUnauthorized, "missing user identity")
		return "", false
	}
	return id, true
}

func (h *Handler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", r.PathValue("id"))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}
	h.writeJSON(w, http.StatusOK, product)
}

type cartResponse struct {
	CartID      string                `json:"cart_id"`
	Items       []domain.CartViewItem `json:"items"`
	TotalAmount int64                 `json:"total_amount"`
	ItemCount   int                   `json:"item_count"`
}

func (h *Handler) HandleGetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	cartID, err := h.resolver.ResolveActiveCart(r.Context(), userID)
	if err != nil {
		h.handleError(w, err, "resolve cart")
		return
	}

	items, err := h.carts.FetchView(r.Context(), cartID)
	if err != nil {
		h.handleError(w, err, "fetch cart view")
		return
	}

	view := domain.CartView{CartID: cartID, Items: items}
	h.writeJSON(w, http.StatusOK, cartResponse{
		CartID:      cartID,
		Items:       items,
		TotalAmount: view.Total(),
		ItemCount:   view.ItemCount(),
	})
}

// HandleStreamCart pushes the live cart view over server-sent events. The
// projector subscription is scoped to the request context, so a client
// disconnect releases both feed registrations.
func (h *Handler) HandleStreamCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	cartID, err := h.resolver.ResolveActiveCart(r.Context(), userID)
	if err != nil {
		h.handleError(w, err, "resolve cart")
		return
	}

	views := make(chan domain.CartView, 8)
	cancel, err := h.projector.Subscribe(r.Context(), cartID, func(view domain.CartView) {
		select {
		case views <- view:
		default:
			// Slow consumer; dropping is fine, every event carries the
			// full view so the next one supersedes this one.
		}
	})
	if err != nil {
		h.handleError(w, err, "subscribe cart")
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case <-r.Context().Done():
			return
		case view := <-views:
			data, err := json.Marshal(view)
			if err != nil {
				h.logger.Error("failed to encode cart view", "error", err)
				continue
			}
			if _, err := w.Write(append(append([]byte("data: "), data...), '\n', '\n')); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// HandleAddItem accepts the write and returns before the view catches up;
// clients observe the result through the cart's change stream, not the
// response body.
func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cartID, err := h.resolver.ResolveActiveCart(r.Context(), userID)
	if err != nil {
		h.handleError(w, err, "resolve cart")
		return
	}

	product, err := h.catalog.GetByID(r.Context(), req.ProductID)
	if err != nil {
		h.handleError(w, err, "get product")
		return
	}
	if product == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	if err := h.mutator.AddItem(r.Context(), cartID, *product, req.Quantity); err != nil {
		h.handleError(w, err, "add item")
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"cart_id": cartID})
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cartID, err := h.resolver.ResolveActiveCart(r.Context(), userID)
	if err != nil {
		h.handleError(w, err, "resolve cart")
		return
	}

	if err := h.mutator.UpdateQuantity(r.Context(), cartID, r.PathValue("id"), req.Quantity); err != nil {
		h.handleError(w, err, "update quantity")
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"cart_id": cartID})
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	cartID, err := h.resolver.ResolveActiveCart(r.Context(), userID)
	if err != nil {
		h.handleError(w, err, "resolve cart")
		return
	}

	if err := h.mutator.RemoveItem(r.Context(), cartID, r.PathValue("id")); err != nil {
		h.handleError(w, err, "remove item")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	cartID, err := h.resolver.ResolveActiveCart(r.Context(), userID)
	if err != nil {
		h.handleError(w, err, "resolve cart")
		return
	}

	if err := h.mutator.ClearCart(r.Context(), cartID); err != nil {
		h.handleError(w, err, "clear cart")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type checkoutResponse struct {
	OrderID string `json:"order_id"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	cartID, err := h.resolver.ResolveActiveCart(r.Context(), userID)
	if err != nil {
		h.handleError(w, err, "resolve cart")
		return
	}

	items, err := h.carts.ListLineItems(r.Context(), cartID)
	if err != nil {
		h.handleError(w, err, "list line items")
		return
	}

	var total int64
	for _, item := range items {
		total += int64(item.Quantity) * item.PriceAtTime
	}

	orderID, err := h.checkout.Checkout(r.Context(), userID, cartID, items, total)
	if err != nil {
		h.handleError(w, err, "checkout")
		return
	}

	h.writeJSON(w, http.StatusCreated, checkoutResponse{OrderID: orderID})
}

func (h *Handler) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	userOrders, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		h.handleError(w, err, "list orders")
		return
	}

	h.writeJSON(w, http.StatusOK, userOrders)
}

func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleError(w, err, "get order")
		return
	}
	if order == nil || order.UserID != userID {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.checkout.CancelOrder(r.Context(), userID, r.PathValue("id")); err != nil {
		h.handleError(w, err, "cancel order")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// handleError maps the error taxonomy onto status codes. A compensation
// failure gets its own message: the caller's next move (call support, do not
// retry) differs from both a clean failure (retry freely) and a timeout.
func (h *Handler) handleError(w http.ResponseWriter, err error, op string) {
	var compErr *domain.CompensationError
	switch {
	case errors.As(err, &compErr):
		h.logger.Error("compensation failed, dangling order", "error", err, "order_id", compErr.OrderID)
		h.writeError(w, http.StatusInternalServerError, "checkout failed and cleanup is incomplete; contact support before retrying")
	case errors.Is(err, domain.ErrPrecondition):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConflict):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrStoreTimeout):
		h.logger.Error("store timeout", "error", err, "op", op)
		h.writeError(w, http.StatusGatewayTimeout, "store timeout, retry shortly")
	default:
		h.logger.Error("request failed", "error", err, "op", op)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
