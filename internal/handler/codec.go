package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
	"github.com/xenking/canteen-orders/internal/domain/fault"
	"github.com/xenking/canteen-orders/internal/domain/order"
)

// maxBodyBytes bounds request bodies. Requests are a handful of fields.
const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeSuccess(w http.ResponseWriter, status int, key string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field(key, func(e *jx.Encoder) { e.Bool(true) })
		})
	})
}

func writeMessage(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("error", func(e *jx.Encoder) { e.Str(msg) })
			e.Field("kind", func(e *jx.Encoder) { e.Str(kind) })
		})
	})
}

// writeError maps domain errors to status codes. Errors outside the fault
// taxonomy are logged and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := fault.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case fault.Validation:
		status = http.StatusBadRequest
	case fault.NotFound:
		status = http.StatusNotFound
	case fault.Conflict, fault.Capacity:
		status = http.StatusConflict
	case fault.Forbidden:
		status = http.StatusForbidden
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeMessage(w, status, "internal server error", fault.Name(nil))
		return
	}

	var capErr *order.CapacityError
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("error", func(e *jx.Encoder) { e.Str(err.Error()) })
			e.Field("kind", func(e *jx.Encoder) { e.Str(fault.Name(kind)) })
			if errors.As(err, &capErr) {
				e.Field("remaining", func(e *jx.Encoder) { e.Int(capErr.Remaining) })
			}
		})
	})
}

// money renders an amount as an exact JSON number with two decimals.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.StringFixed(2)))
}

func optInt64(e *jx.Encoder, v *int64) {
	if v == nil {
		e.Null()
		return
	}
	e.Int64(*v)
}

func optInt(e *jx.Encoder, v *int) {
	if v == nil {
		e.Null()
		return
	}
	e.Int(*v)
}

// decodeInt64 accepts a JSON number or a numeric string. Null yields nil.
func decodeInt64(d *jx.Decoder) (*int64, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		if s == "" {
			return nil, nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return &v, nil
	default:
		v, err := d.Int64()
		if err != nil {
			return nil, err
		}
		return &v, nil
	}
}

// decodeDate accepts "YYYY-MM-DD", an empty string or null.
func decodeDate(d *jx.Decoder) (calendar.Date, error) {
	if d.Next() == jx.Null {
		return calendar.Date{}, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return calendar.Date{}, err
	}
	return parseDate(s)
}

func parseDate(s string) (calendar.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return calendar.Date{}, nil
	}
	date, err := calendar.Parse(s)
	if err != nil {
		return calendar.Date{}, fault.New(fault.Validation, "date must be formatted as YYYY-MM-DD")
	}
	return date, nil
}

// queryInt64 parses an optional integer query parameter.
func queryInt64(q url.Values, key string) (*int64, error) {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return nil, fault.New(fault.Validation, key+" must be a positive integer")
	}
	return &v, nil
}

// decodeObject decodes a JSON object body, calling field for every key.
// Domain errors returned by field are passed through unwrapped.
func decodeObject(w http.ResponseWriter, r *http.Request, field func(d *jx.Decoder, key string) error) error {
	var fieldErr error
	d := jx.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), 1024)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if err := field(d, key); err != nil {
			if fault.KindOf(err) != nil {
				fieldErr = err
			}
			return errors.Wrap(err, key)
		}
		return nil
	})
	if fieldErr != nil {
		return fieldErr
	}
	if err != nil {
		return fault.New(fault.Validation, "malformed JSON body: "+err.Error())
	}
	return nil
}
