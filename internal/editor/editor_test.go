package editor

import (
	"math"
	"testing"

	"chordline/api/internal/rbac"
	"chordline/api/internal/songdoc"
	"chordline/api/internal/textwidth"
)

var testMeasurer = textwidth.New(textwidth.DefaultFontSize)

func writable() rbac.Capability { return rbac.Capability{CanWrite: true} }

func newTestEditor(t *testing.T, content string) (*Editor, *int) {
	t.Helper()
	snapshots := 0
	ed := New(songdoc.Parse(content), testMeasurer, writable(), func(songdoc.Document) {
		snapshots++
	})
	return ed, &snapshots
}

func TestInsertAndRemoveChord(t *testing.T) {
	ed, snapshots := newTestEditor(t, "")

	ed.InsertChord(0, 40, "G")
	doc := ed.Document()
	if len(doc.Lines[0].Chords) != 1 {
		t.Fatalf("chord count = %d, want 1", len(doc.Lines[0].Chords))
	}
	if c := doc.Lines[0].Chords[0]; c.Position != 40 || c.Name != "G" {
		t.Fatalf("chord = %+v, want {40 G}", c)
	}

	// Editing to a blank name deletes the chord.
	ed.EditChord(0, 0, "   ")
	if doc = ed.Document(); len(doc.Lines[0].Chords) != 0 {
		t.Fatalf("chord list = %+v, want empty after blank edit", doc.Lines[0].Chords)
	}
	if *snapshots != 2 {
		t.Fatalf("snapshot count = %d, want 2", *snapshots)
	}
}

func TestInsertChordKeepsSortInvariant(t *testing.T) {
	ed, _ := newTestEditor(t, "")

	for _, c := range []struct {
		pos  float64
		name string
	}{{90, "F"}, {10, "C"}, {50, "Am"}, {50, "G"}} {
		ed.InsertChord(0, c.pos, c.name)
	}
	chords := ed.Document().Lines[0].Chords
	for i := 1; i < len(chords); i++ {
		if chords[i].Position < chords[i-1].Position {
			t.Fatalf("chords out of order: %+v", chords)
		}
	}
	// Duplicate positions stack without deduplication.
	if chords[1].Name != "Am" || chords[2].Name != "G" {
		t.Fatalf("stacked chords reordered: %+v", chords)
	}
}

func TestEditChordRename(t *testing.T) {
	ed, _ := newTestEditor(t, "")
	ed.InsertChord(0, 25, "C")
	ed.EditChord(0, 0, "Cmaj7")

	c := ed.Document().Lines[0].Chords[0]
	if c.Name != "Cmaj7" {
		t.Fatalf("name = %q, want Cmaj7", c.Name)
	}
	if c.Position != 25 {
		t.Fatalf("edit moved chord to %v; position must never change on rename", c.Position)
	}
}

func TestSetLyricsLeavesChordsAlone(t *testing.T) {
	ed, _ := newTestEditor(t, "")
	ed.InsertChord(0, 33, "Em")
	ed.SetLyrics(0, "completely different words")

	line := ed.Document().Lines[0]
	if line.Lyrics != "completely different words" {
		t.Fatalf("lyrics = %q", line.Lyrics)
	}
	if len(line.Chords) != 1 || line.Chords[0].Position != 33 {
		t.Fatalf("retyping moved chords: %+v", line.Chords)
	}
}

func TestSplitLine(t *testing.T) {
	ed, _ := newTestEditor(t, "hello world")
	ed.InsertChord(0, 12, "C")
	ed.SplitLine(0, 5)

	doc := ed.Document()
	if len(doc.Lines) != 2 {
		t.Fatalf("line count = %d, want 2", len(doc.Lines))
	}
	if doc.Lines[0].Lyrics != "hello" || doc.Lines[1].Lyrics != " world" {
		t.Fatalf("split lyrics = %q / %q", doc.Lines[0].Lyrics, doc.Lines[1].Lyrics)
	}
	// Chords stay with the original line; the new line starts empty.
	if len(doc.Lines[0].Chords) != 1 || len(doc.Lines[1].Chords) != 0 {
		t.Fatalf("chords after split: %+v / %+v", doc.Lines[0].Chords, doc.Lines[1].Chords)
	}
	if doc.Lines[0].ID == doc.Lines[1].ID || doc.Lines[1].ID == "" {
		t.Fatal("new line must carry a fresh stable ID")
	}
}

func TestSplitClampsCursor(t *testing.T) {
	ed, _ := newTestEditor(t, "abc")
	ed.SplitLine(0, 99)
	doc := ed.Document()
	if doc.Lines[0].Lyrics != "abc" || doc.Lines[1].Lyrics != "" {
		t.Fatalf("overflow cursor split = %q / %q", doc.Lines[0].Lyrics, doc.Lines[1].Lyrics)
	}
}

func TestMergeLineShiftsChords(t *testing.T) {
	ed, _ := newTestEditor(t, "first line\nsecond line")
	ed.InsertChord(0, 20, "C")
	ed.InsertChord(1, 5, "G")

	ed.MergeLine(1)
	doc := ed.Document()
	if len(doc.Lines) != 1 {
		t.Fatalf("line count = %d, want 1", len(doc.Lines))
	}
	if doc.Lines[0].Lyrics != "first linesecond line" {
		t.Fatalf("merged lyrics = %q", doc.Lines[0].Lyrics)
	}
	chords := doc.Lines[0].Chords
	if len(chords) != 2 {
		t.Fatalf("merged chords: %+v", chords)
	}
	wantShift := testMeasurer.Width("first line")
	var moved songdoc.Chord
	for _, c := range chords {
		if c.Name == "G" {
			moved = c
		}
	}
	if math.Abs(moved.Position-(5+wantShift)) > 0.01 {
		t.Fatalf("merged chord position = %v, want %v", moved.Position, 5+wantShift)
	}
	for i := 1; i < len(chords); i++ {
		if chords[i].Position < chords[i-1].Position {
			t.Fatalf("merged chords unsorted: %+v", chords)
		}
	}
}

func TestMergeFirstLineNoop(t *testing.T) {
	ed, snapshots := newTestEditor(t, "only\nlines")
	ed.MergeLine(0)
	if len(ed.Document().Lines) != 2 || *snapshots != 0 {
		t.Fatal("merging the first line must be a no-op")
	}
}

func TestSplitThenMergeRestoresLine(t *testing.T) {
	const lyrics = "fly me to the moon and let me play"
	ed, _ := newTestEditor(t, lyrics)
	ed.InsertChord(0, 80, "Am")
	original := ed.Document()

	ed.SplitLine(0, 14)
	ed.MergeLine(1)

	doc := ed.Document()
	if doc.Lines[0].Lyrics != lyrics {
		t.Fatalf("lyrics after split+merge = %q, want %q", doc.Lines[0].Lyrics, lyrics)
	}
	// Chords stayed left of the cut, so positions restore exactly here;
	// the general contract is only within measurement tolerance.
	if got, want := doc.Lines[0].Chords[0].Position, original.Lines[0].Chords[0].Position; math.Abs(got-want) > 3 {
		t.Fatalf("chord position after split+merge = %v, want ≈%v", got, want)
	}
}

func TestPasteMultiLine(t *testing.T) {
	ed, _ := newTestEditor(t, "startEND")
	ed.InsertChord(0, 30, "D")
	ed.Paste(0, 5, "one\ntwo\nthree")

	doc := ed.Document()
	want := []string{"startone", "two", "threeEND"}
	if len(doc.Lines) != len(want) {
		t.Fatalf("line count = %d, want %d: %+v", len(doc.Lines), len(want), doc.Lines)
	}
	for i, lyrics := range want {
		if doc.Lines[i].Lyrics != lyrics {
			t.Fatalf("line %d = %q, want %q", i, doc.Lines[i].Lyrics, lyrics)
		}
	}
	// No chord repositioning on paste: the chord stays on the first line.
	if len(doc.Lines[0].Chords) != 1 || doc.Lines[0].Chords[0].Position != 30 {
		t.Fatalf("paste moved chords: %+v", doc.Lines[0].Chords)
	}
	if len(doc.Lines[1].Chords) != 0 || len(doc.Lines[2].Chords) != 0 {
		t.Fatal("interior/boundary paste lines must start with empty chord lists")
	}
}

func TestPasteSingleSegment(t *testing.T) {
	ed, _ := newTestEditor(t, "ab")
	ed.Paste(0, 1, "XY")
	if got := ed.Document().Lines[0].Lyrics; got != "aXYb" {
		t.Fatalf("paste result = %q, want aXYb", got)
	}
	if got := len(ed.Document().Lines); got != 1 {
		t.Fatalf("single-segment paste created %d lines", got)
	}
}

func TestSectionTagging(t *testing.T) {
	ed, _ := newTestEditor(t, "l0\nl1\nl2\nl3\nl4")
	ed.TagSection(2, 4, "Chorus")
	ed.ClearSection(3, 3)

	doc := ed.Document()
	wantSections := []string{"", "", "Chorus", "", "Chorus"}
	for i, want := range wantSections {
		if doc.Lines[i].Section != want {
			t.Fatalf("line %d section = %q, want %q", i, doc.Lines[i].Section, want)
		}
	}
}

func TestTagSectionSwapsReversedRange(t *testing.T) {
	ed, _ := newTestEditor(t, "a\nb\nc")
	ed.TagSection(2, 0, "Bridge")
	for i, line := range ed.Document().Lines {
		if line.Section != "Bridge" {
			t.Fatalf("line %d missed reversed-range tag", i)
		}
	}
}

func TestSplitAndPasteInheritSection(t *testing.T) {
	ed, _ := newTestEditor(t, "one long tagged line")
	ed.TagSection(0, 0, "Verse 1")

	ed.SplitLine(0, 8)
	doc := ed.Document()
	if len(doc.Lines) != 2 {
		t.Fatalf("got %d lines after split, want 2", len(doc.Lines))
	}
	if doc.Lines[1].Section != "Verse 1" {
		t.Fatalf("split remainder section = %q, want inherited tag", doc.Lines[1].Section)
	}

	ed.Paste(1, 0, "first\nmiddle\nlast")
	doc = ed.Document()
	for i := 1; i < len(doc.Lines); i++ {
		if doc.Lines[i].Section != "Verse 1" {
			t.Fatalf("pasted line %d section = %q, want inherited tag", i, doc.Lines[i].Section)
		}
	}
}

func TestReadOnlySessionShortCircuits(t *testing.T) {
	var snapshots int
	ed := New(songdoc.Parse("locked"), testMeasurer, rbac.Capability{CanWrite: false}, func(songdoc.Document) {
		snapshots++
	})

	ed.InsertChord(0, 10, "C")
	ed.SetLyrics(0, "changed")
	ed.SplitLine(0, 3)
	ed.Paste(0, 0, "x\ny")
	ed.TagSection(0, 0, "Verse")
	ed.Replace(songdoc.New())

	doc := ed.Document()
	if len(doc.Lines) != 1 || doc.Lines[0].Lyrics != "locked" || len(doc.Lines[0].Chords) != 0 {
		t.Fatalf("read-only session mutated the document: %+v", doc.Lines)
	}
	if snapshots != 0 {
		t.Fatalf("read-only session emitted %d snapshots", snapshots)
	}
	if ed.CanWrite() {
		t.Fatal("CanWrite should be false")
	}
}

func TestReplaceNormalizes(t *testing.T) {
	ed, _ := newTestEditor(t, "x")
	ed.Replace(songdoc.Document{})
	if len(ed.Document().Lines) != 1 {
		t.Fatal("Replace with empty document must normalize to one line")
	}
}
