package blurhash

import (
	"fmt"
	"strconv"
	"strings"
)

// Components picks the number of horizontal and vertical components for an
// image of the given size. The encoder accepts 1-9 on each axis; values
// are passed through unchecked.
type Components interface {
	For(width, height int) (x, y int)
}

// Fixed is a constant component pair.
type Fixed struct {
	X, Y int
}

func (f Fixed) For(int, int) (int, int) { return f.X, f.Y }

func (f Fixed) String() string { return fmt.Sprintf("%dx%d", f.X, f.Y) }

// ComponentsFunc computes the pair from the normalized image size.
type ComponentsFunc func(width, height int) (x, y int)

func (f ComponentsFunc) For(width, height int) (int, int) { return f(width, height) }

// DefaultComponents is 4 horizontal by 3 vertical.
var DefaultComponents = Fixed{X: 4, Y: 3}

// SelectComponents returns the pair comps yields for width x height.
func SelectComponents(width, height int, comps Components) (x, y int) {
	return comps.For(width, height)
}

// Auto derives the pair from the normalized size with Proportional(3, 5).
// With resizing on, the normalized image is square and Auto yields 5x5.
type Auto struct{}

func (Auto) For(width, height int) (int, int) { return Proportional(3, 5)(width, height) }

func (Auto) String() string { return "auto" }

// ParseComponents reads "4x3", "4,3", "4 3" or "auto".
func ParseComponents(s string) (Components, error) {
	if strings.EqualFold(strings.TrimSpace(s), "auto") {
		return Auto{}, nil
	}
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == 'x' || r == ',' || r == ' '
	})
	if len(fields) != 2 {
		return nil, fmt.Errorf("invalid components %q, want XxY or auto", s)
	}
	x, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("invalid x components %q: %w", fields[0], err)
	}
	y, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("invalid y components %q: %w", fields[1], err)
	}
	return Fixed{X: x, Y: y}, nil
}

// Proportional gives the longer axis hi components and scales the shorter
// one by the aspect ratio, never below lo.
func Proportional(lo, hi int) ComponentsFunc {
	return func(width, height int) (int, int) {
		if width <= 0 || height <= 0 {
			return hi, hi
		}
		short := func(long, other int) int {
			n := (hi*other + long/2) / long
			if n < lo {
				return lo
			}
			return n
		}
		if width >= height {
			return hi, short(width, height)
		}
		return short(height, width), hi
	}
}
