package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/canteen-orders/internal/domain/fault"
	"github.com/xenking/canteen-orders/internal/domain/order"
)

var errCancelParams = fault.New(fault.Validation, "user_id and date are required")

// PlaceOrder handles POST /orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req order.PlaceOrderRequest
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customer_name":
			req.CustomerName, err = d.Str()
		case "user_id":
			// Zero and negative ids are treated as anonymous.
			if req.UserID, err = decodeInt64(d); req.UserID != nil && *req.UserID <= 0 {
				req.UserID = nil
			}
		case "order_date":
			req.Date, err = decodeDate(d)
		case "menu_id":
			var id *int64
			if id, err = decodeInt64(d); err == nil && id != nil {
				req.MenuID = *id
			}
		case "quantity":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var qty int
			if qty, err = d.Int(); err == nil {
				req.Quantity = &qty
			}
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
			e.Field("total", func(e *jx.Encoder) { money(e, o.Total) })
		})
	})
}

// ListOrders handles GET /orders?user_id=.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r.URL.Query(), "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	listings, err := h.orders.ListOrders(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, l := range listings {
				encodeListing(e, l)
			}
		})
	})
}

func encodeListing(e *jx.Encoder, l order.Listing) {
	o := l.Order
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("user_id", func(e *jx.Encoder) { optInt64(e, o.UserID) })
		e.Field("customer_name", func(e *jx.Encoder) { e.Str(o.CustomerName) })
		e.Field("display_name", func(e *jx.Encoder) { e.Str(l.DisplayName) })
		e.Field("user_role", func(e *jx.Encoder) {
			if l.UserRole == nil {
				e.Null()
				return
			}
			e.Str(string(*l.UserRole))
		})
		e.Field("order_date", func(e *jx.Encoder) { e.Str(o.Date.String()) })
		e.Field("total", func(e *jx.Encoder) { money(e, o.Total) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, it := range l.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("menu_id", func(e *jx.Encoder) { e.Int64(it.MenuID) })
						e.Field("name", func(e *jx.Encoder) { e.Str(it.Name) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(it.Quantity) })
						e.Field("price_at_order", func(e *jx.Encoder) { money(e, it.PriceAtOrder) })
					})
				}
			})
		})
	})
}

// CheckOrder handles GET /orders/check?user_id=&date=. A missing user id
// answers that there is no order.
func (h *Handler) CheckOrder(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := queryInt64(q, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDate(q.Get("date"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	res := &order.CheckResult{}
	if userID != nil {
		if res, err = h.orders.CheckOrderForDate(r.Context(), *userID, date); err != nil {
			writeError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("hasOrder", func(e *jx.Encoder) { e.Bool(res.HasOrder) })
			e.Field("menuId", func(e *jx.Encoder) { optInt64(e, res.MenuID) })
		})
	})
}

// Capacity handles GET /orders/capacity?menu_id=&date=.
func (h *Handler) Capacity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	menuID, err := queryInt64(q, "menu_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if menuID == nil {
		writeError(w, r, order.ErrMenuRequired)
		return
	}
	date, err := parseDate(q.Get("date"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.orders.Capacity(r.Context(), *menuID, date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("menuId", func(e *jx.Encoder) { e.Int64(view.MenuID) })
			e.Field("date", func(e *jx.Encoder) { e.Str(view.Date.String()) })
			e.Field("max", func(e *jx.Encoder) { optInt(e, view.Max) })
			e.Field("consumed", func(e *jx.Encoder) { e.Int(view.Consumed) })
			e.Field("remaining", func(e *jx.Encoder) { optInt(e, view.Remaining) })
		})
	})
}

// CancelOrder handles DELETE /orders?user_id=&date=.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := queryInt64(q, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := parseDate(q.Get("date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if userID == nil || date.IsZero() {
		writeError(w, r, errCancelParams)
		return
	}

	if err := h.orders.CancelOrder(r.Context(), *userID, date); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "success")
}

// DeleteOrder handles DELETE /orders/{id}.
func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, fault.New(fault.Validation, "order id must be a positive integer"))
		return
	}

	if err := h.orders.AdminDeleteOrder(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "success")
}
