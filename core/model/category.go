package model

import "fmt"

// Category selects the scenario variant a schedule is optimised for.
type Category int

const (
	// CategoryOpt is the price-optimised plan constrained by site capacity.
	CategoryOpt Category = iota
	// CategoryBAU is the business-as-usual benchmark: charge on return,
	// no site capacity limit.
	CategoryBAU
)

// Categories lists every category in reporting order.
var Categories = []Category{CategoryOpt, CategoryBAU}

// String returns a human-readable representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryOpt:
		return "opt"
	case CategoryBAU:
		return "BAU"
	default:
		return "unknown"
	}
}

// ParseCategory converts a name produced by String back to a Category.
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

// Level records how far down the fallback ladder a day had to go.
type Level int

const (
	LevelMain Level = iota
	LevelTonext
	LevelBreach
	LevelMagic
	LevelEmpty
)

// Levels lists every level in ladder order.
var Levels = []Level{LevelMain, LevelTonext, LevelBreach, LevelMagic, LevelEmpty}

// String returns the label used in reports.
func (l Level) String() string {
	switch l {
	case LevelMain:
		return "Main"
	case LevelTonext:
		return "Tonext"
	case LevelBreach:
		return "Breach"
	case LevelMagic:
		return "Magic"
	case LevelEmpty:
		return "Empty"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	for _, v := range Levels {
		if v.String() == string(b) {
			*l = v
			return nil
		}
	}
	return fmt.Errorf("unknown level %q", string(b))
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
