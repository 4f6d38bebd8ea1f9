package editor

import (
	"strings"

	"chordline/api/internal/songdoc"
	"chordline/api/internal/textwidth"
)

// Reflow recomputes chord anchor positions after a structural text change
// on a line: chords were anchored relative to oldText, which now appears
// inside newText. Only the merge shape, where oldText survives as a suffix
// of newText, moves anchors; they shift right by the measured width of the
// prepended text. Every other shape (split remainders, paste boundaries)
// leaves anchors where they were. That asymmetry is intentional.
//
// The shift is approximate by contract: the measurer cannot reproduce the
// renderer's kerning, and callers accept drift of a few pixels.
func Reflow(meas textwidth.Measurer, oldText, newText string, chords []songdoc.Chord) []songdoc.Chord {
	out := make([]songdoc.Chord, len(chords))
	copy(out, chords)

	if oldText == newText || !strings.HasSuffix(newText, oldText) {
		return out
	}

	prefix := newText[:len(newText)-len(oldText)]
	shift := meas.Width(prefix)
	if shift == 0 {
		return out
	}
	for i := range out {
		out[i].Position += shift
		if out[i].Position < 0 {
			out[i].Position = 0
		}
	}
	songdoc.SortChords(out)
	return out
}
