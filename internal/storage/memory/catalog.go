package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
	"github.com/xenking/canteen-orders/internal/domain/menu"
	"github.com/xenking/canteen-orders/internal/domain/user"
)

var (
	_ menu.Repository = (*Catalog)(nil)
	_ user.Repository = userView{}
)

type availabilityKey struct {
	menuID int64
	date   calendar.Date
}

// Catalog holds menus, their daily availability and users.
type Catalog struct {
	mu    sync.RWMutex
	menus map[int64]menu.Menu
	avail map[availabilityKey]menu.Availability
	users map[int64]user.User
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		menus: make(map[int64]menu.Menu),
		avail: make(map[availabilityKey]menu.Availability),
		users: make(map[int64]user.User),
	}
}

// PutMenu adds or replaces a menu.
func (c *Catalog) PutMenu(m menu.Menu) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.menus[m.ID] = m
}

// SetPrice changes the current price of a menu.
func (c *Catalog) SetPrice(id int64, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.menus[id]; ok {
		cur.Price = price
		c.menus[id] = cur
	}
}

// PutAvailability schedules a menu for a day. A nil maxQuantity is uncapped.
func (c *Catalog) PutAvailability(menuID int64, date calendar.Date, maxQuantity *int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var limit *int
	if maxQuantity != nil {
		v := *maxQuantity
		limit = &v
	}
	c.avail[availabilityKey{menuID, date}] = menu.Availability{
		MenuID:      menuID,
		Date:        date,
		MaxQuantity: limit,
	}
}

// PutUser adds or replaces a user.
func (c *Catalog) PutUser(u user.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[u.ID] = u
}

func (c *Catalog) GetByID(_ context.Context, id int64) (*menu.Menu, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.menus[id]
	if !ok {
		return nil, menu.ErrNotFound
	}
	return &m, nil
}

func (c *Catalog) GetByIDs(_ context.Context, ids []int64) ([]menu.Menu, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]menu.Menu, 0, len(ids))
	for _, id := range ids {
		if m, ok := c.menus[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (c *Catalog) Availability(_ context.Context, menuID int64, date calendar.Date) (*menu.Availability, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.avail[availabilityKey{menuID, date}]
	if !ok {
		return nil, menu.ErrNotAvailable
	}
	return &a, nil
}

// Users returns a user.Repository view of the catalog.
func (c *Catalog) Users() user.Repository { return userView{c} }

type userView struct{ c *Catalog }

func (v userView) GetByIDs(ctx context.Context, ids []int64) ([]user.User, error) {
	return v.c.getUsers(ctx, ids)
}

func (c *Catalog) getUsers(_ context.Context, ids []int64) ([]user.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := c.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}
