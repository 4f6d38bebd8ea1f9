package export

import (
	"math"

	"chordline/api/internal/songdoc"
)

// One monospace column stands in for eight pixels of editor width.
const pixelsPerColumn = 8.0

// sheetRow is one printed line pair: the chord ruler above the lyrics.
// Section is set on the row where a new section label starts.
type sheetRow struct {
	Section string
	Chords  string
	Lyrics  string
}

// chordRuler lays a line's chords out at their monospace columns.
// Chords arrive sorted by position; stacked chords keep one space
// between their names instead of overwriting each other.
func chordRuler(chords []songdoc.Chord) string {
	var b []rune
	for _, c := range chords {
		col := int(math.Round(c.Position / pixelsPerColumn))
		if len(b) > 0 && col <= len(b) {
			col = len(b) + 1
		}
		for len(b) < col {
			b = append(b, ' ')
		}
		b = append(b, []rune(c.Name)...)
	}
	return string(b)
}

func buildRows(doc songdoc.Document) []sheetRow {
	rows := make([]sheetRow, 0, len(doc.Lines))
	prev := ""
	for _, line := range doc.Lines {
		row := sheetRow{Chords: chordRuler(line.Chords), Lyrics: line.Lyrics}
		if line.Section != "" && line.Section != prev {
			row.Section = line.Section
		}
		prev = line.Section
		rows = append(rows, row)
	}
	return rows
}
