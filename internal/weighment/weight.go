package weighment

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Weight is a fixed-point decimal weight in hundredths of a unit.
// Arithmetic on Weight is exact, so net = gross - tare never drifts.
type Weight int64

const weightScale = 100

// MaxWeight is the largest magnitude a weight column can hold
// (NUMERIC(12,2), 9999999999.99). Beyond it SQLite falls back to REAL.
const MaxWeight Weight = 999999999999

// InRange reports whether w fits the storage range.
func (w Weight) InRange() bool {
	return w >= -MaxWeight && w <= MaxWeight
}

// ParseWeight parses operator input such as "1500", "1500.5" or "-2.25".
// At most two fractional digits are accepted.
func ParseWeight(s string) (Weight, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty weight")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if intPart == "" && (!hasDot || fracPart == "") {
		return 0, fmt.Errorf("invalid weight %q", s)
	}
	if len(fracPart) > 2 {
		return 0, fmt.Errorf("weight %q has more than two decimal places", s)
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return 0, fmt.Errorf("invalid weight %q", s)
	}

	var whole int64
	if intPart != "" {
		v, err := strconv.ParseInt(intPart, 10, 64)
		if err != nil || v > math.MaxInt64/weightScale-1 {
			return 0, fmt.Errorf("weight %q out of range", s)
		}
		whole = v
	}

	var frac int64
	if fracPart != "" {
		for len(fracPart) < 2 {
			fracPart += "0"
		}
		v, _ := strconv.ParseInt(fracPart, 10, 64)
		frac = v
	}

	w := Weight(whole*weightScale + frac)
	if neg {
		w = -w
	}
	if !w.InRange() {
		return 0, fmt.Errorf("weight %q exceeds %s", s, MaxWeight)
	}
	return w, nil
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// String formats the weight with exactly two decimal places.
func (w Weight) String() string {
	sign := ""
	v := int64(w)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/weightScale, v%weightScale)
}

// Float64 returns the weight as a float, for metrics and display only.
func (w Weight) Float64() float64 {
	return float64(w) / weightScale
}

// Value stores the weight as a decimal string so NUMERIC columns keep it exact.
func (w Weight) Value() (driver.Value, error) {
	return w.String(), nil
}

// Scan reads NUMERIC values, which drivers hand back as int64, float64, string or []byte.
func (w *Weight) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		if v > int64(MaxWeight)/weightScale || v < -int64(MaxWeight)/weightScale {
			return fmt.Errorf("stored weight %d out of range", v)
		}
		*w = Weight(v * weightScale)
	case float64:
		if math.Abs(v) > MaxWeight.Float64() {
			return fmt.Errorf("stored weight %g out of range", v)
		}
		*w = Weight(math.Round(v * weightScale))
	case []byte:
		return w.scanString(string(v))
	case string:
		return w.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into Weight", src)
	}
	return nil
}

func (w *Weight) scanString(s string) error {
	parsed, err := ParseWeight(s)
	if err == nil {
		*w = parsed
		return nil
	}
	// Drivers may render numerics with extra zeros ("1500.0000").
	f, ferr := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if ferr != nil {
		return fmt.Errorf("scanning weight %q: %w", s, err)
	}
	if math.Abs(f) > MaxWeight.Float64() {
		return fmt.Errorf("stored weight %q out of range", s)
	}
	*w = Weight(math.Round(f * weightScale))
	return nil
}

// NullWeight is a Weight that may be NULL.
type NullWeight struct {
	Weight Weight
	Valid  bool
}

// Value implements driver.Valuer.
func (n NullWeight) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Weight.Value()
}

// Scan implements sql.Scanner.
func (n *NullWeight) Scan(src any) error {
	if src == nil {
		n.Weight, n.Valid = 0, false
		return nil
	}
	if err := n.Weight.Scan(src); err != nil {
		return err
	}
	n.Valid = true
	return nil
}
