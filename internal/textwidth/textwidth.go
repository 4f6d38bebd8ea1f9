// Package textwidth approximates the rendered pixel width of lyric text.
//
// Chord tags are anchored at pixel offsets measured in the browser, so any
// server-side remapping (line merges) needs a width estimate for the same
// font. The estimate works from a per-glyph advance table for the editor's
// UI font at its base size, with go-runewidth deciding single versus double
// cell width for everything outside the table. Exact glyph-level accuracy
// is out of reach without the renderer's kerning; callers must treat
// results as correct to within a few pixels.
package textwidth

import "github.com/mattn/go-runewidth"

// Measurer measures text runs for one font configuration.
type Measurer struct {
	size float64
}

// DefaultFontSize is the editor's lyric font size in CSS pixels.
const DefaultFontSize = 16

// New returns a measurer for the given font size in pixels.
func New(size float64) Measurer {
	if size <= 0 {
		size = DefaultFontSize
	}
	return Measurer{size: size}
}

// advanceEm holds advance widths in em units (1.0 = font size) for ASCII,
// sampled from the editor's sans-serif stack. Anything absent falls back
// to runewidth cells at 0.60em per cell.
var advanceEm = map[rune]float64{
	' ': 0.28, '!': 0.28, '"': 0.36, '#': 0.56, '$': 0.56, '%': 0.89,
	'&': 0.67, '\'': 0.19, '(': 0.33, ')': 0.33, '*': 0.39, '+': 0.58,
	',': 0.28, '-': 0.33, '.': 0.28, '/': 0.28, ':': 0.28, ';': 0.28,
	'<': 0.58, '=': 0.58, '>': 0.58, '?': 0.56, '@': 1.02, '[': 0.28,
	'\\': 0.28, ']': 0.28, '^': 0.47, '_': 0.56, '`': 0.33, '{': 0.33,
	'|': 0.26, '}': 0.33, '~': 0.58,
	'0': 0.56, '1': 0.56, '2': 0.56, '3': 0.56, '4': 0.56,
	'5': 0.56, '6': 0.56, '7': 0.56, '8': 0.56, '9': 0.56,
	'A': 0.67, 'B': 0.67, 'C': 0.72, 'D': 0.72, 'E': 0.67, 'F': 0.61,
	'G': 0.78, 'H': 0.72, 'I': 0.28, 'J': 0.50, 'K': 0.67, 'L': 0.56,
	'M': 0.83, 'N': 0.72, 'O': 0.78, 'P': 0.67, 'Q': 0.78, 'R': 0.72,
	'S': 0.67, 'T': 0.61, 'U': 0.72, 'V': 0.67, 'W': 0.94, 'X': 0.67,
	'Y': 0.67, 'Z': 0.61,
	'a': 0.56, 'b': 0.56, 'c': 0.50, 'd': 0.56, 'e': 0.56, 'f': 0.28,
	'g': 0.56, 'h': 0.56, 'i': 0.22, 'j': 0.22, 'k': 0.50, 'l': 0.22,
	'm': 0.83, 'n': 0.56, 'o': 0.56, 'p': 0.56, 'q': 0.56, 'r': 0.33,
	's': 0.50, 't': 0.28, 'u': 0.56, 'v': 0.50, 'w': 0.72, 'x': 0.50,
	'y': 0.50, 'z': 0.50,
}

const cellEm = 0.60

// Width returns the approximate rendered width of text in pixels.
func (m Measurer) Width(text string) float64 {
	var em float64
	for _, r := range text {
		if adv, ok := advanceEm[r]; ok {
			em += adv
			continue
		}
		em += float64(runewidth.RuneWidth(r)) * cellEm
	}
	return em * m.size
}
