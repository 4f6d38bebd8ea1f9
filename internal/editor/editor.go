// Package editor is the stateful controller over an open song document.
// It owns the in-memory document for the lifetime of an editing session,
// applies discrete user intents one at a time, and hands a full snapshot
// to the autosave path after every mutation. No operation returns an
// error: malformed indices clamp, and a read-only session ignores
// mutations entirely, before any local state changes.
package editor

import (
	"strings"

	"chordline/api/internal/rbac"
	"chordline/api/internal/songdoc"
	"chordline/api/internal/textwidth"
)

// Editor mutates one song document on behalf of one user session.
type Editor struct {
	doc        songdoc.Document
	meas       textwidth.Measurer
	capability rbac.Capability
	onSnapshot func(songdoc.Document)
	selection  Selection
}

// New builds an editor over a parsed document. The capability is computed
// once at session open; onSnapshot receives a detached copy of the
// document after every applied mutation and may be nil.
func New(doc songdoc.Document, meas textwidth.Measurer, capability rbac.Capability, onSnapshot func(songdoc.Document)) *Editor {
	doc.Normalize()
	return &Editor{
		doc:        doc,
		meas:       meas,
		capability: capability,
		onSnapshot: onSnapshot,
	}
}

// Document returns a detached copy of the current document.
func (e *Editor) Document() songdoc.Document {
	return e.doc.Clone()
}

// CanWrite reports whether this session may mutate the document.
func (e *Editor) CanWrite() bool {
	return e.capability.CanWrite
}

// Selection exposes the line range selection state machine.
func (e *Editor) Selection() *Selection {
	return &e.selection
}

func (e *Editor) emit() {
	if e.onSnapshot != nil {
		e.onSnapshot(e.doc.Clone())
	}
}

func (e *Editor) clampLine(index int) int {
	if index < 0 {
		return 0
	}
	if index >= len(e.doc.Lines) {
		return len(e.doc.Lines) - 1
	}
	return index
}

// InsertChord appends a chord tag at a pixel position on the line and
// restores the sort invariant. Chord names are not validated beyond being
// non-blank; the theory engine looks them up best-effort later.
func (e *Editor) InsertChord(lineIndex int, position float64, name string) {
	if !e.capability.CanWrite {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if position < 0 {
		position = 0
	}
	line := &e.doc.Lines[e.clampLine(lineIndex)]
	line.Chords = append(line.Chords, songdoc.Chord{Position: position, Name: name})
	songdoc.SortChords(line.Chords)
	e.emit()
}

// EditChord renames a chord in place; a blank name deletes it. The
// position never changes on an edit.
func (e *Editor) EditChord(lineIndex, chordIndex int, newName string) {
	if !e.capability.CanWrite {
		return
	}
	line := &e.doc.Lines[e.clampLine(lineIndex)]
	if chordIndex < 0 || chordIndex >= len(line.Chords) {
		return
	}
	newName = strings.TrimSpace(newName)
	if newName == "" {
		line.Chords = append(line.Chords[:chordIndex], line.Chords[chordIndex+1:]...)
	} else {
		line.Chords[chordIndex].Name = newName
	}
	e.emit()
}

// SetLyrics replaces a line's lyric text verbatim. Chord positions are
// deliberately left alone: repositioning on every keystroke would be
// jittery, so positions only move on structural edits.
func (e *Editor) SetLyrics(lineIndex int, text string) {
	if !e.capability.CanWrite {
		return
	}
	e.doc.Lines[e.clampLine(lineIndex)].Lyrics = text
	e.emit()
}

// SplitLine cuts a line's lyrics at a character offset. The left half
// stays on the original line with all of its chords; the right half
// becomes a fresh line with an empty chord list. Chords are not
// redistributed across the cut.
func (e *Editor) SplitLine(lineIndex, cursorOffset int) {
	if !e.capability.CanWrite {
		return
	}
	lineIndex = e.clampLine(lineIndex)
	line := &e.doc.Lines[lineIndex]

	runes := []rune(line.Lyrics)
	if cursorOffset < 0 {
		cursorOffset = 0
	}
	if cursorOffset > len(runes) {
		cursorOffset = len(runes)
	}

	next := songdoc.NewLine()
	next.Lyrics = string(runes[cursorOffset:])
	next.Section = line.Section
	line.Lyrics = string(runes[:cursorOffset])

	e.doc.Lines = append(e.doc.Lines, songdoc.Line{})
	copy(e.doc.Lines[lineIndex+2:], e.doc.Lines[lineIndex+1:])
	e.doc.Lines[lineIndex+1] = next
	e.emit()
}

// MergeLine appends the line's lyrics onto the previous line and removes
// it. Its chords move along, shifted right by the measured width of the
// previous line's lyrics; the shift is an approximation and is kept
// behind Reflow so it stays auditable. Merging the first line is a no-op.
func (e *Editor) MergeLine(lineIndex int) {
	if !e.capability.CanWrite {
		return
	}
	lineIndex = e.clampLine(lineIndex)
	if lineIndex == 0 {
		return
	}
	prev := &e.doc.Lines[lineIndex-1]
	cur := e.doc.Lines[lineIndex]

	merged := prev.Lyrics + cur.Lyrics
	moved := Reflow(e.meas, cur.Lyrics, merged, cur.Chords)
	prev.Lyrics = merged
	prev.Chords = append(prev.Chords, moved...)
	songdoc.SortChords(prev.Chords)

	e.doc.Lines = append(e.doc.Lines[:lineIndex], e.doc.Lines[lineIndex+1:]...)
	e.emit()
}

// Paste inserts text at a cursor position, splitting on line breaks. The
// first segment joins the pre-cursor text, the last joins the post-cursor
// text, and interior segments become fresh lines. As with SplitLine,
// chords stay attached to the original line and are not repositioned.
func (e *Editor) Paste(lineIndex, cursorOffset int, text string) {
	if !e.capability.CanWrite {
		return
	}
	lineIndex = e.clampLine(lineIndex)
	line := &e.doc.Lines[lineIndex]

	runes := []rune(line.Lyrics)
	if cursorOffset < 0 {
		cursorOffset = 0
	}
	if cursorOffset > len(runes) {
		cursorOffset = len(runes)
	}
	before := string(runes[:cursorOffset])
	after := string(runes[cursorOffset:])

	segments := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(segments) == 1 {
		line.Lyrics = before + segments[0] + after
		e.emit()
		return
	}

	line.Lyrics = before + segments[0]
	inserted := make([]songdoc.Line, 0, len(segments)-1)
	for _, segment := range segments[1 : len(segments)-1] {
		interior := songdoc.NewLine()
		interior.Lyrics = segment
		interior.Section = line.Section
		inserted = append(inserted, interior)
	}
	last := songdoc.NewLine()
	last.Lyrics = segments[len(segments)-1] + after
	last.Section = line.Section
	inserted = append(inserted, last)

	tail := make([]songdoc.Line, len(e.doc.Lines[lineIndex+1:]))
	copy(tail, e.doc.Lines[lineIndex+1:])
	e.doc.Lines = append(e.doc.Lines[:lineIndex+1], append(inserted, tail...)...)
	e.emit()
}

// TagSection labels every line in the inclusive index range. An empty
// name clears the label instead.
func (e *Editor) TagSection(startIndex, endIndex int, sectionName string) {
	if !e.capability.CanWrite {
		return
	}
	startIndex = e.clampLine(startIndex)
	endIndex = e.clampLine(endIndex)
	if endIndex < startIndex {
		startIndex, endIndex = endIndex, startIndex
	}
	for i := startIndex; i <= endIndex; i++ {
		e.doc.Lines[i].Section = strings.TrimSpace(sectionName)
	}
	e.emit()
}

// ClearSection removes the section label from every line in the range.
func (e *Editor) ClearSection(startIndex, endIndex int) {
	e.TagSection(startIndex, endIndex, "")
}

// Replace swaps in a whole new document, used for document-level
// transforms such as transposition. The replacement is normalized and
// snapshotted like any other mutation.
func (e *Editor) Replace(doc songdoc.Document) {
	if !e.capability.CanWrite {
		return
	}
	doc.Normalize()
	e.doc = doc.Clone()
	e.emit()
}
