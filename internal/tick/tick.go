// Package tick implements the bijection between fractional prices and the
// integer tick domain.
//
// Everything inside the engine compares and stores integer ticks; floats
// appear only at I/O boundaries. Conversion goes through shopspring/decimal
// so that grid placement never depends on float comparison.
package tick

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultSize is the default price grid increment.
const DefaultSize = 0.01

// ErrInvalidPrice is returned when a non-positive price is submitted for
// conversion.
var ErrInvalidPrice = errors.New("price must be positive")

// Converter maps prices onto a fixed tick grid: price = tick × size.
type Converter struct {
	size  decimal.Decimal
	sizeF float64
}

// NewConverter builds a converter for the given tick size.
func NewConverter(size float64) (Converter, error) {
	if size <= 0 {
		return Converter{}, fmt.Errorf("%w: tick size %v", ErrInvalidPrice, size)
	}
	return Converter{size: decimal.NewFromFloat(size), sizeF: size}, nil
}

// MustConverter is NewConverter for statically-known sizes.
func MustConverter(size float64) Converter {
	c, err := NewConverter(size)
	if err != nil {
		panic(err)
	}
	return c
}

// Size returns the tick size as a float.
func (c Converter) Size() float64 { return c.sizeF }

// PriceToTick converts a float price to its nearest integer tick.
// Fails with ErrInvalidPrice when p <= 0.
func (c Converter) PriceToTick(p float64) (int64, error) {
	if p <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, p)
	}
	return decimal.NewFromFloat(p).Div(c.size).Round(0).IntPart(), nil
}

// TickToPrice converts an integer tick back to a float price.
func (c Converter) TickToPrice(t int64) float64 {
	return c.size.Mul(decimal.NewFromInt(t)).InexactFloat64()
}
