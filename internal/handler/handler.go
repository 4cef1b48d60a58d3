// Package handler binds the order service and the date lock registry to HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
	"github.com/xenking/canteen-orders/internal/domain/datelock"
	"github.com/xenking/canteen-orders/internal/domain/order"
)

// OrderService defines the order operations used by the handlers.
// Satisfied by *order.Service.
type OrderService interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.Order, error)
	CancelOrder(ctx context.Context, userID int64, date calendar.Date) error
	AdminDeleteOrder(ctx context.Context, id int64) error
	ListOrders(ctx context.Context, userID *int64) ([]order.Listing, error)
	CheckOrderForDate(ctx context.Context, userID int64, date calendar.Date) (*order.CheckResult, error)
	Capacity(ctx context.Context, menuID int64, date calendar.Date) (*order.CapacityView, error)
	Today() calendar.Date
}

// LockRegistry defines the date lock operations used by the handlers.
// Satisfied by *datelock.Registry.
type LockRegistry interface {
	LockDate(ctx context.Context, date calendar.Date, lockedBy *int64) error
	UnlockDate(ctx context.Context, date calendar.Date) error
	ListLocked(ctx context.Context) ([]datelock.Lock, error)
}

var (
	_ OrderService = (*order.Service)(nil)
	_ LockRegistry = (*datelock.Registry)(nil)
)

// Handler serves the canteen order API.
type Handler struct {
	orders OrderService
	locks  LockRegistry
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(orders OrderService, locks LockRegistry) *Handler {
	return &Handler{orders: orders, locks: locks}
}

// Routes returns the API router. It is meant to be mounted under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Post("/", h.PlaceOrder)
		r.Delete("/", h.CancelOrder)
		r.Get("/check", h.CheckOrder)
		r.Get("/capacity", h.Capacity)
		r.Get("/locked-dates", h.ListLockedDates)
		r.Post("/lock-date", h.LockDate)
		r.Delete("/unlock-date", h.UnlockDate)
		r.Delete("/{id}", h.DeleteOrder)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "not found", "not_found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed", "validation")
	})
	return r
}

// Health reports that the API process is serving requests.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, "ok")
}
