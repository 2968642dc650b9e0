package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/tbourn/go-chat-ledger/internal/units"
)

// Amount is an unsigned 256-bit quantity in base units. It is stored as a
// decimal string column so that values larger than int64 survive every SQL
// driver unchanged, and it marshals to JSON as a quoted decimal string.
type Amount struct {
	v uint256.Int
}

// NewAmount copies x into an Amount. A nil x yields zero.
func NewAmount(x *uint256.Int) Amount {
	var a Amount
	if x != nil {
		a.v.Set(x)
	}
	return a
}

// AmountFromUint64 is a convenience constructor for tests and constants.
func AmountFromUint64(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// Int returns a copy of the underlying integer.
func (a Amount) Int() *uint256.Int { return new(uint256.Int).Set(&a.v) }

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// Cmp compares a and b.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// String renders base units in decimal.
func (a Amount) String() string { return a.v.Dec() }

// Human renders the amount with the 18-decimal convention applied.
func (a Amount) Human() string { return units.Format(&a.v) }

// GormDataType pins the column type across dialects.
func (Amount) GormDataType() string { return "varchar(80)" }

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) { return a.v.Dec(), nil }

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	var s string
	switch t := src.(type) {
	case nil:
		a.v.Clear()
		return nil
	case string:
		s = t
	case []byte:
		s = string(t)
	case int64:
		if t < 0 {
			return fmt.Errorf("amount: negative value %d", t)
		}
		a.v.SetUint64(uint64(t))
		return nil
	default:
		return fmt.Errorf("amount: unsupported scan type %T", src)
	}
	v, err := units.ParseBase(s)
	if err != nil {
		return err
	}
	a.v.Set(v)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) { return json.Marshal(a.v.Dec()) }

// UnmarshalJSON accepts a quoted decimal string of base units.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("amount: expected decimal string: %w", err)
	}
	v, err := units.ParseBase(s)
	if err != nil {
		return err
	}
	a.v.Set(v)
	return nil
}
