package entity

import "fmt"

// Direction is one of the four facings an entity can have.
type Direction uint8

const (
	North Direction = iota
	South
	East
	West
)

func (d Direction) String() string {
	switch d {
	case North:
		return "North"
	case South:
		return "South"
	case East:
		return "East"
	case West:
		return "West"
	default:
		return fmt.Sprintf("Direction(%d)", uint8(d))
	}
}

// Valid reports whether d is one of the four facings.
func (d Direction) Valid() bool {
	return d <= West
}

// Unit is the unit movement vector for d. North is +Y.
func (d Direction) Unit() Vec2 {
	switch d {
	case North:
		return Vec2{0, 1}
	case South:
		return Vec2{0, -1}
	case East:
		return Vec2{1, 0}
	case West:
		return Vec2{-1, 0}
	}
	return Vec2{}
}

func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "North":
		*d = North
	case "South":
		*d = South
	case "East":
		*d = East
	case "West":
		*d = West
	default:
		return fmt.Errorf("unknown direction %q", b)
	}
	return nil
}
