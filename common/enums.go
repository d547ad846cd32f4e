// Package common holds small shared types that both the configuration layer
// and the editing layer need, kept separate so neither has to import the other.
package common

import "fmt"

// AmmoMode selects how ammo pool reserves are interpreted when projecting
// or applying them: as the raw stored magnitude, or as a tier index into the
// game's ammo capacity table. See Open Question (b).
type AmmoMode int

const (
	AmmoModeRaw AmmoMode = iota
	AmmoModeTiered
)

func (m AmmoMode) String() string {
	switch m {
	case AmmoModeRaw:
		return "raw"
	case AmmoModeTiered:
		return "tiered"
	default:
		return fmt.Sprintf("AmmoMode(%d)", int(m))
	}
}

func ParseAmmoMode(s string) (AmmoMode, error) {
	switch s {
	case "raw", "":
		return AmmoModeRaw, nil
	case "tiered":
		return AmmoModeTiered, nil
	default:
		return 0, fmt.Errorf("unknown ammo mode %q", s)
	}
}

func (m AmmoMode) MarshalYAML() (any, error) {
	return m.String(), nil
}

func (m *AmmoMode) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := ParseAmmoMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
