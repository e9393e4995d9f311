// Package hexcolor parses, formats and mixes #rrggbb paint colors.
package hexcolor

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Parse converts a hex color string to an opaque NRGBA. Accepted forms are
// "#rgb" and "#rrggbb", case-insensitive; the leading "#" is required.
func Parse(s string) (color.NRGBA, error) {
	if len(s) == 0 || s[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("hexcolor: %q: missing # prefix", s)
	}
	hex := s[1:]
	if len(hex) == 3 {
		// #abc is shorthand for #aabbcc.
		hex = strings.Repeat(string(hex[0]), 2) +
			strings.Repeat(string(hex[1]), 2) +
			strings.Repeat(string(hex[2]), 2)
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("hexcolor: %q: want 3 or 6 hex digits", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("hexcolor: %q: %w", s, err)
	}
	return color.NRGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 255,
	}, nil
}

// Format renders c as a lowercase 6-digit "#rrggbb" string.
func Format(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Mix blends the given colors into one by summing each channel and taking
// the integer (floor) average. Mixing a single color, or the same color
// repeated, returns that color unchanged.
func Mix(colors []string) (color.NRGBA, error) {
	if len(colors) == 0 {
		return color.NRGBA{}, fmt.Errorf("hexcolor: mix of zero colors")
	}

	var r, g, b int
	for _, s := range colors {
		c, err := Parse(s)
		if err != nil {
			return color.NRGBA{}, err
		}
		r += int(c.R)
		g += int(c.G)
		b += int(c.B)
	}

	n := len(colors)
	return color.NRGBA{
		R: clamp(r / n),
		G: clamp(g / n),
		B: clamp(b / n),
		A: 255,
	}, nil
}

// MixHex is Mix with the result re-encoded as a "#rrggbb" string.
func MixHex(colors []string) (string, error) {
	c, err := Mix(colors)
	if err != nil {
		return "", err
	}
	return Format(c), nil
}

func clamp(v int) uint8 {
	// Cannot overflow for valid inputs; guard anyway.
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
