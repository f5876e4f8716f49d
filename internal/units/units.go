// Package units converts provider temperatures (Kelvin) into the configured scale.
package units

import (
	"errors"
	"fmt"
	"strings"
)

type Unit string

const (
	Celsius    Unit = "C"
	Fahrenheit Unit = "F"
	Kelvin     Unit = "K"
)

const absoluteZeroC = 273.15

var ErrUnsupportedUnit = errors.New("unsupported temperature unit")

// ParseUnit accepts C, F or K in any case.
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.ToUpper(strings.TrimSpace(s)))
	if !u.Valid() {
		return "", fmt.Errorf("%w: %q (expected C, F or K)", ErrUnsupportedUnit, s)
	}
	return u, nil
}

func (u Unit) Valid() bool {
	switch u {
	case Celsius, Fahrenheit, Kelvin:
		return true
	}
	return false
}

func (u Unit) String() string {
	return string(u)
}

// Convert maps a Kelvin value to the target unit.
func Convert(kelvin float64, to Unit) (float64, error) {
	switch to {
	case Kelvin:
		return kelvin, nil
	case Celsius:
		return kelvin - absoluteZeroC, nil
	case Fahrenheit:
		return (kelvin-absoluteZeroC)*9/5 + 32, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedUnit, string(to))
}
