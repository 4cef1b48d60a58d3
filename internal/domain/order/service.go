package order

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
	"github.com/xenking/canteen-orders/internal/domain/fault"
	"github.com/xenking/canteen-orders/internal/domain/menu"
	"github.com/xenking/canteen-orders/internal/domain/user"
)

const instrumentationName = "github.com/xenking/canteen-orders/internal/domain/order"

// Order sizes are bounded by the storage columns: item quantities are 32-bit
// integers and totals are NUMERIC(10,2).
const maxQuantity = math.MaxInt32

var maxTotal = decimal.RequireFromString("99999999.99")

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	CustomerName string
	// UserID is optional. Anonymous orders are not subject to the one-per-day rule.
	UserID *int64
	// Date defaults to today in the service location when zero.
	Date   calendar.Date
	MenuID int64
	// Quantity defaults to 1 when nil. A given value must be positive.
	Quantity *int
}

// Listing is an order annotated for display.
type Listing struct {
	Order Order
	// DisplayName is the user's full name, or the customer name when the
	// order has no resolvable user.
	DisplayName string
	UserRole    *user.Role
	Items       []ItemSummary
}

// ItemSummary is a line item with its menu name resolved.
type ItemSummary struct {
	MenuID       int64
	Name         string
	Quantity     int
	PriceAtOrder decimal.Decimal
}

// CheckResult answers whether a user has ordered for a day.
type CheckResult struct {
	HasOrder bool
	MenuID   *int64
}

// CapacityView is the daily quantity state of a menu. Max and Remaining are
// nil for uncapped menus.
type CapacityView struct {
	MenuID    int64
	Date      calendar.Date
	Max       *int
	Consumed  int
	Remaining *int
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the tracer provider used for service spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider used for order counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// WithLocation sets the zone used to resolve "today".
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service encapsulates order placement, cancellation and queries.
type Service struct {
	orders Store
	menus  menu.Repository
	users  user.Repository

	loc    *time.Location
	now    func() time.Time
	tracer trace.Tracer
	meter  metric.Meter

	placed   metric.Int64Counter
	rejected metric.Int64Counter
	deleted  metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	orders Store,
	menus menu.Repository,
	users user.Repository,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		orders: orders,
		menus:  menus,
		users:  users,
		loc:    time.Local,
		now:    time.Now,
		tracer: tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:  metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	if s.placed, err = s.meter.Int64Counter("canteen.orders.placed",
		metric.WithDescription("Orders placed"),
	); err != nil {
		return nil, errors.Wrap(err, "placed counter")
	}
	if s.rejected, err = s.meter.Int64Counter("canteen.orders.rejected",
		metric.WithDescription("Order placements rejected by business rules"),
	); err != nil {
		return nil, errors.Wrap(err, "rejected counter")
	}
	if s.deleted, err = s.meter.Int64Counter("canteen.orders.deleted",
		metric.WithDescription("Orders cancelled or deleted"),
	); err != nil {
		return nil, errors.Wrap(err, "deleted counter")
	}

	return s, nil
}

// Today returns the current day in the service location.
func (s *Service) Today() calendar.Date {
	return calendar.Today(s.now(), s.loc)
}

func (s *Service) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// PlaceOrder validates the request and records a single-item order for the
// day. The uniqueness and capacity checks and the insert run in one ledger
// transaction that holds the day lock.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (_ *Order, rerr error) {
	ctx, span := s.start(ctx, "order.PlaceOrder", attribute.Int64("menu.id", req.MenuID))
	defer func() {
		if kind := fault.KindOf(rerr); kind != nil {
			s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", fault.Name(kind))))
		}
		finish(span, rerr)
	}()

	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return nil, ErrCustomerNameRequired
	}
	if req.MenuID == 0 {
		return nil, ErrMenuRequired
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	switch {
	case qty <= 0:
		return nil, ErrInvalidQuantity
	case qty > maxQuantity:
		return nil, ErrQuantityTooLarge
	}
	date := req.Date
	if date.IsZero() {
		date = s.Today()
	}
	span.SetAttributes(attribute.String("order.date", date.String()))

	var placed *Order
	err := s.orders.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockDay(ctx, date); err != nil {
			return errors.Wrap(err, "lock day")
		}

		if req.UserID != nil {
			_, err := tx.FindByUserAndDate(ctx, *req.UserID, date)
			switch {
			case err == nil:
				return ErrAlreadyOrdered
			case !errors.Is(err, ErrOrderNotFound):
				return errors.Wrap(err, "find existing order")
			}
		}

		m, err := s.menus.GetByID(ctx, req.MenuID)
		if errors.Is(err, menu.ErrNotFound) {
			return &MenuNotFoundError{MenuID: req.MenuID}
		}
		if err != nil {
			return errors.Wrap(err, "get menu")
		}

		if err := s.checkCapacity(ctx, tx, req.MenuID, date, qty); err != nil {
			return err
		}

		price := m.Price
		total := price.Mul(decimal.NewFromInt(int64(qty))).Round(2)
		if total.GreaterThan(maxTotal) {
			return ErrQuantityTooLarge
		}
		o := &Order{
			UserID:       req.UserID,
			CustomerName: name,
			Date:         date,
			Total:        total,
			CreatedAt:    s.now().UTC(),
			Items: []LineItem{{
				MenuID:       req.MenuID,
				Quantity:     qty,
				PriceAtOrder: price,
			}},
		}
		if err := tx.Insert(ctx, o); err != nil {
			if errors.Is(err, ErrAlreadyOrdered) {
				return err
			}
			return errors.Wrap(err, "insert order")
		}
		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.placed.Add(ctx, 1)
	span.SetAttributes(attribute.Int64("order.id", placed.ID))
	return placed, nil
}

func (s *Service) checkCapacity(ctx context.Context, r Reader, menuID int64, date calendar.Date, qty int) error {
	view, err := s.capacity(ctx, r, menuID, date)
	if err != nil {
		return err
	}
	if view.Remaining == nil {
		return nil
	}
	remaining := *view.Remaining
	if remaining <= 0 {
		return &CapacityError{MenuID: menuID, Date: date, Remaining: 0}
	}
	if qty > remaining {
		return &CapacityError{MenuID: menuID, Date: date, Remaining: remaining}
	}
	return nil
}

func (s *Service) capacity(ctx context.Context, r Reader, menuID int64, date calendar.Date) (*CapacityView, error) {
	view := &CapacityView{MenuID: menuID, Date: date}

	avail, err := s.menus.Availability(ctx, menuID, date)
	switch {
	case errors.Is(err, menu.ErrNotAvailable):
		return view, nil
	case err != nil:
		return nil, errors.Wrap(err, "get availability")
	case !avail.Capped():
		return view, nil
	}

	consumed, err := r.ConsumedQuantity(ctx, menuID, date)
	if err != nil {
		return nil, errors.Wrap(err, "consumed quantity")
	}
	limit := *avail.MaxQuantity
	remaining := max(limit-consumed, 0)
	view.Max = &limit
	view.Consumed = consumed
	view.Remaining = &remaining
	return view, nil
}

// Capacity reports how much of a menu is still available on date.
func (s *Service) Capacity(ctx context.Context, menuID int64, date calendar.Date) (_ *CapacityView, rerr error) {
	ctx, span := s.start(ctx, "order.Capacity", attribute.Int64("menu.id", menuID))
	defer func() { finish(span, rerr) }()

	if menuID == 0 {
		return nil, ErrMenuRequired
	}
	if date.IsZero() {
		date = s.Today()
	}
	if _, err := s.menus.GetByID(ctx, menuID); err != nil {
		if errors.Is(err, menu.ErrNotFound) {
			return nil, &MenuNotFoundError{MenuID: menuID}
		}
		return nil, errors.Wrap(err, "get menu")
	}

	view, err := s.capacity(ctx, s.orders, menuID, date)
	if err != nil {
		return nil, err
	}
	if view.Remaining == nil {
		// Uncapped menus still report what has been ordered.
		consumed, err := s.orders.ConsumedQuantity(ctx, menuID, date)
		if err != nil {
			return nil, errors.Wrap(err, "consumed quantity")
		}
		view.Consumed = consumed
	}
	return view, nil
}

// CancelOrder removes the user's own order for date unless the date is locked.
func (s *Service) CancelOrder(ctx context.Context, userID int64, date calendar.Date) (rerr error) {
	ctx, span := s.start(ctx, "order.CancelOrder",
		attribute.Int64("user.id", userID),
		attribute.String("order.date", date.String()),
	)
	defer func() { finish(span, rerr) }()

	if userID == 0 {
		return ErrUserRequired
	}
	if date.IsZero() {
		return ErrDateRequired
	}

	err := s.orders.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.LockDay(ctx, date); err != nil {
			return errors.Wrap(err, "lock day")
		}
		locked, err := tx.DateLocked(ctx, date)
		if err != nil {
			return errors.Wrap(err, "check date lock")
		}
		if locked {
			return ErrDateLocked
		}

		o, err := tx.FindByUserAndDate(ctx, userID, date)
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				return err
			}
			return errors.Wrap(err, "find order")
		}
		return s.delete(ctx, tx, o.ID)
	})
	if err != nil {
		return err
	}

	s.deleted.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "cancel")))
	return nil
}

// AdminDeleteOrder removes any order by id. Date locks do not apply.
func (s *Service) AdminDeleteOrder(ctx context.Context, id int64) (rerr error) {
	ctx, span := s.start(ctx, "order.AdminDeleteOrder", attribute.Int64("order.id", id))
	defer func() { finish(span, rerr) }()

	err := s.orders.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				return err
			}
			return errors.Wrap(err, "get order")
		}
		if err := tx.LockDay(ctx, o.Date); err != nil {
			return errors.Wrap(err, "lock day")
		}
		return s.delete(ctx, tx, o.ID)
	})
	if err != nil {
		return err
	}

	s.deleted.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "admin")))
	return nil
}

func (s *Service) delete(ctx context.Context, tx Tx, id int64) error {
	if err := tx.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return err
		}
		return errors.Wrapf(err, "delete order %d", id)
	}
	return nil
}

// CheckOrderForDate reports whether the user has an order on date and which
// menu it is for.
func (s *Service) CheckOrderForDate(ctx context.Context, userID int64, date calendar.Date) (*CheckResult, error) {
	if date.IsZero() {
		date = s.Today()
	}
	o, err := s.orders.FindByUserAndDate(ctx, userID, date)
	if errors.Is(err, ErrOrderNotFound) {
		return &CheckResult{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find order")
	}

	res := &CheckResult{HasOrder: true}
	if len(o.Items) > 0 {
		id := o.Items[0].MenuID
		res.MenuID = &id
	}
	return res, nil
}

// ListOrders returns orders newest first, optionally filtered by user, with
// user names and menu names resolved.
func (s *Service) ListOrders(ctx context.Context, userID *int64) (_ []Listing, rerr error) {
	ctx, span := s.start(ctx, "order.ListOrders")
	defer func() { finish(span, rerr) }()

	orders, err := s.orders.List(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	if len(orders) == 0 {
		return []Listing{}, nil
	}

	userIDs := make(map[int64]struct{})
	menuIDs := make(map[int64]struct{})
	for _, o := range orders {
		if o.UserID != nil {
			userIDs[*o.UserID] = struct{}{}
		}
		for _, it := range o.Items {
			menuIDs[it.MenuID] = struct{}{}
		}
	}

	var (
		users map[int64]user.User
		menus map[int64]menu.Menu
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(userIDs) == 0 {
			return nil
		}
		list, err := s.users.GetByIDs(gctx, keys(userIDs))
		if err != nil {
			return errors.Wrap(err, "get users")
		}
		users = make(map[int64]user.User, len(list))
		for _, u := range list {
			users[u.ID] = u
		}
		return nil
	})
	g.Go(func() error {
		list, err := s.menus.GetByIDs(gctx, keys(menuIDs))
		if err != nil {
			return errors.Wrap(err, "get menus")
		}
		menus = make(map[int64]menu.Menu, len(list))
		for _, m := range list {
			menus[m.ID] = m
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Listing, len(orders))
	for i, o := range orders {
		l := Listing{
			Order:       o,
			DisplayName: o.CustomerName,
			Items:       make([]ItemSummary, len(o.Items)),
		}
		if o.UserID != nil {
			if u, ok := users[*o.UserID]; ok {
				if name := u.DisplayName(); name != "" {
					l.DisplayName = name
				}
				role := u.Role
				l.UserRole = &role
			}
		}
		for j, it := range o.Items {
			l.Items[j] = ItemSummary{
				MenuID:       it.MenuID,
				Name:         menus[it.MenuID].Name,
				Quantity:     it.Quantity,
				PriceAtOrder: it.PriceAtOrder,
			}
		}
		out[i] = l
	}
	return out, nil
}

func keys(m map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
