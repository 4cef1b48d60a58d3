package main

import (
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/canteen-orders/internal/domain/user"
	"github.com/xenking/canteen-orders/internal/storage/postgres"
)

// defaultDays matches the three-day horizon the canteen plans ahead.
const defaultDays = 3

type seedFile struct {
	Days int
	Data postgres.SeedData
}

// decodeSeedFile reads
//
//	{"days": 3, "users": [{"firstname", "lastname", "role"}],
//	 "menus": [{"name", "description", "price", "max_quantity"}]}
func decodeSeedFile(r io.Reader) (*seedFile, error) {
	var out seedFile
	d := jx.Decode(r, 4096)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "days":
			v, err := d.Int()
			out.Days = v
			return err
		case "users":
			return d.Arr(func(d *jx.Decoder) error {
				u, err := decodeUser(d)
				if err != nil {
					return errors.Wrapf(err, "user %d", len(out.Data.Users))
				}
				out.Data.Users = append(out.Data.Users, u)
				return nil
			})
		case "menus":
			return d.Arr(func(d *jx.Decoder) error {
				m, err := decodeMenu(d)
				if err != nil {
					return errors.Wrapf(err, "menu %d", len(out.Data.Menus))
				}
				out.Data.Menus = append(out.Data.Menus, m)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func decodeUser(d *jx.Decoder) (postgres.SeedUser, error) {
	var u postgres.SeedUser
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "firstname":
			u.Firstname, err = d.Str()
		case "lastname":
			u.Lastname, err = d.Str()
		case "role":
			var s string
			s, err = d.Str()
			u.Role = user.Role(s)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return u, err
	}
	if !u.Role.Valid() {
		return u, errors.Errorf("invalid role %q", u.Role)
	}
	return u, nil
}

func decodeMenu(d *jx.Decoder) (postgres.SeedMenu, error) {
	var m postgres.SeedMenu
	err := d.Obj(func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "name":
			m.Name, err = d.Str()
		case "description":
			m.Description, err = d.Str()
		case "price":
			var n jx.Num
			if n, err = d.Num(); err != nil {
				return err
			}
			m.Price, err = decimal.NewFromString(n.String())
		case "max_quantity":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var v int
			if v, err = d.Int(); err != nil {
				return err
			}
			if v < 0 {
				return errors.New("max_quantity must not be negative")
			}
			m.MaxQuantity = &v
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return m, err
	}
	if m.Name == "" {
		return m, errors.New("name is required")
	}
	if m.Price.IsNegative() {
		return m, errors.New("price must not be negative")
	}
	return m, nil
}
