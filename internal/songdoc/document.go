// Package songdoc holds the chord-annotated lyric document model and its
// wire format. The serialized shape is shared with previously stored songs
// and must not change: a JSON array of line objects, each carrying lyrics,
// positioned chord tags, and an optional section label.
package songdoc

import (
	"encoding/json"
	"sort"
	"strings"

	"chordline/api/internal/util"
)

// Chord is a chord symbol anchored to a pixel offset from the start of the
// rendered lyric line. The offset is rendering-relative, not a character
// index: chords may sit between glyphs.
type Chord struct {
	Position float64 `json:"position"`
	Name     string  `json:"name"`
}

// Line is one row of the document: lyric text plus its chord tags, kept
// sorted ascending by position, and an optional section label.
type Line struct {
	ID      string  `json:"id"`
	Lyrics  string  `json:"lyrics"`
	Chords  []Chord `json:"chords"`
	Section string  `json:"section,omitempty"`
}

// Document is an ordered sequence of lines. A well-formed document always
// contains at least one line.
type Document struct {
	Lines []Line
}

// NewLine returns an empty line with a fresh stable ID.
func NewLine() Line {
	return Line{ID: util.NewID("ln"), Chords: []Chord{}}
}

// New returns the minimal well-formed document: a single empty line.
func New() Document {
	return Document{Lines: []Line{NewLine()}}
}

// Normalize repairs a document in place so that it satisfies the model
// invariants: at least one line, no nil chord slices, chords sorted by
// position, negative positions clamped to zero, every line carrying an ID.
func (d *Document) Normalize() {
	if len(d.Lines) == 0 {
		d.Lines = []Line{NewLine()}
		return
	}
	for i := range d.Lines {
		line := &d.Lines[i]
		if line.ID == "" {
			line.ID = util.NewID("ln")
		}
		if line.Chords == nil {
			line.Chords = []Chord{}
		}
		for j := range line.Chords {
			if line.Chords[j].Position < 0 {
				line.Chords[j].Position = 0
			}
		}
		SortChords(line.Chords)
	}
}

// Clone returns a deep copy. Snapshots handed to the autosave path must not
// alias the editor's working document.
func (d Document) Clone() Document {
	lines := make([]Line, len(d.Lines))
	for i, line := range d.Lines {
		chords := make([]Chord, len(line.Chords))
		copy(chords, line.Chords)
		line.Chords = chords
		lines[i] = line
	}
	return Document{Lines: lines}
}

// SortChords orders chords ascending by position. The sort is stable so
// that stacked chords at the same position keep their insertion order.
func SortChords(chords []Chord) {
	sort.SliceStable(chords, func(i, j int) bool {
		return chords[i].Position < chords[j].Position
	})
}

// Serialize encodes the document in the stored wire format. The argument is
// left untouched; normalization happens on a deep copy.
func Serialize(d Document) string {
	doc := d.Clone()
	doc.Normalize()
	payload, err := json.Marshal(doc.Lines)
	if err != nil {
		// Lines contain only strings and numbers; Marshal cannot fail on them.
		return "[]"
	}
	return string(payload)
}

// Parse decodes stored content. Valid JSON that is not a usable line array
// (an empty array, or some other JSON shape) yields the empty document;
// content that is not JSON at all is treated as legacy newline-delimited
// plain text, one line per text row with empty chord lists. Compatibility
// policy, not an error path, so Parse never fails.
func Parse(content string) Document {
	if strings.TrimSpace(content) == "" {
		return New()
	}

	var lines []Line
	if err := json.Unmarshal([]byte(content), &lines); err != nil {
		if json.Valid([]byte(content)) {
			return New()
		}
		return fromPlainText(content)
	}
	if len(lines) == 0 {
		return New()
	}

	doc := Document{Lines: lines}
	doc.Normalize()
	return doc
}

func fromPlainText(content string) Document {
	rows := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	lines := make([]Line, 0, len(rows))
	for _, row := range rows {
		line := NewLine()
		line.Lyrics = row
		lines = append(lines, line)
	}
	doc := Document{Lines: lines}
	doc.Normalize()
	return doc
}

// PlainText flattens the document to newline-joined lyrics, used by the
// search indexer and the read-only share view.
func (d Document) PlainText() string {
	rows := make([]string, len(d.Lines))
	for i, line := range d.Lines {
		rows[i] = line.Lyrics
	}
	return strings.Join(rows, "\n")
}

// Equal reports structural equality ignoring line IDs, which are generated
// defaults rather than content.
func Equal(a, b Document) bool {
	if len(a.Lines) != len(b.Lines) {
		return false
	}
	for i := range a.Lines {
		la, lb := a.Lines[i], b.Lines[i]
		if la.Lyrics != lb.Lyrics || la.Section != lb.Section || len(la.Chords) != len(lb.Chords) {
			return false
		}
		for j := range la.Chords {
			if la.Chords[j] != lb.Chords[j] {
				return false
			}
		}
	}
	return true
}
