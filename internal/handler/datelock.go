package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
	"github.com/xenking/canteen-orders/internal/domain/fault"
)

var errDateRequired = fault.New(fault.Validation, "date is required")

// ListLockedDates handles GET /orders/locked-dates.
func (h *Handler) ListLockedDates(w http.ResponseWriter, r *http.Request) {
	locks, err := h.locks.ListLocked(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, l := range locks {
				e.Str(l.Date.String())
			}
		})
	})
}

// LockDate handles POST /orders/lock-date.
func (h *Handler) LockDate(w http.ResponseWriter, r *http.Request) {
	var (
		date     calendar.Date
		lockedBy *int64
	)
	err := decodeObject(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "date":
			date, err = decodeDate(d)
		case "locked_by":
			lockedBy, err = decodeInt64(d)
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if date.IsZero() {
		writeError(w, r, errDateRequired)
		return
	}

	if err := h.locks.LockDate(r.Context(), date, lockedBy); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "success")
}

// UnlockDate handles DELETE /orders/unlock-date?date=.
func (h *Handler) UnlockDate(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if date.IsZero() {
		writeError(w, r, errDateRequired)
		return
	}

	if err := h.locks.UnlockDate(r.Context(), date); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, "success")
}
