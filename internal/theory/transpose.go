package theory

import (
	"strings"

	"chordline/api/internal/songdoc"
)

// TransposeChord shifts a chord's root by the given number of semitones,
// respelling it from the preferred enharmonic table and keeping the
// quality suffix verbatim. A shift that is a whole number of octaves is an
// exact no-op, as is an unrecognizable root.
func TransposeChord(chord string, semitones int) string {
	offset := ((semitones % 12) + 12) % 12
	if offset == 0 || chord == "" {
		return chord
	}
	_, suffix, pitch, ok := splitRoot(chord)
	if !ok {
		return chord
	}
	return preferredNames[(pitch+offset)%12] + suffix
}

// TransposeDocument maps TransposeChord over every chord tag in the
// document. Lyrics, positions, sections, and line identity are untouched.
func TransposeDocument(doc songdoc.Document, semitones int) songdoc.Document {
	out := doc.Clone()
	if ((semitones%12)+12)%12 == 0 {
		return out
	}
	for i := range out.Lines {
		for j := range out.Lines[i].Chords {
			out.Lines[i].Chords[j].Name = TransposeChord(out.Lines[i].Chords[j].Name, semitones)
		}
	}
	return out
}

// ExtractChordNames collects the unique chord names used in the document,
// in first-seen order. The result feeds both the key detector and the
// "used chords" panel.
func ExtractChordNames(doc songdoc.Document) []string {
	seen := make(map[string]struct{})
	names := make([]string, 0, 8)
	for _, line := range doc.Lines {
		for _, chord := range line.Chords {
			if chord.Name == "" {
				continue
			}
			if _, dup := seen[chord.Name]; dup {
				continue
			}
			seen[chord.Name] = struct{}{}
			names = append(names, chord.Name)
		}
	}
	return names
}

// chordIntervals derives a best-effort interval stack from the quality
// suffix. This feeds the preview payload only; voicing subtleties are a
// non-goal.
func chordIntervals(suffix string) []int {
	lower := strings.ToLower(suffix)

	third := 4
	fifth := 7
	switch {
	case strings.Contains(lower, "dim"):
		third, fifth = 3, 6
	case strings.Contains(lower, "aug"):
		fifth = 8
	case strings.Contains(lower, "sus2"):
		third = 2
	case strings.Contains(lower, "sus"):
		third = 5
	case strings.HasPrefix(lower, "m") && !strings.HasPrefix(lower, "maj"):
		third = 3
	}

	intervals := []int{0, third, fifth}
	switch {
	case strings.Contains(lower, "maj7"):
		intervals = append(intervals, 11)
	case strings.Contains(lower, "dim7"):
		intervals = append(intervals, 9)
	case strings.Contains(lower, "7"):
		intervals = append(intervals, 10)
	}
	return intervals
}

// ChordNotes resolves a chord symbol to its note names, lowest first.
// Unrecognizable symbols yield nil.
func ChordNotes(chord string) []string {
	_, suffix, pitch, ok := splitRoot(chord)
	if !ok {
		return nil
	}
	intervals := chordIntervals(suffix)
	notes := make([]string, len(intervals))
	for i, interval := range intervals {
		notes[i] = preferredNames[(pitch+interval)%12]
	}
	return notes
}

// ChordMidi resolves a chord symbol to ascending MIDI note numbers with
// the root placed in the given octave (middle C octave is 4).
func ChordMidi(chord string, octave int) []int {
	_, suffix, pitch, ok := splitRoot(chord)
	if !ok {
		return nil
	}
	rootMidi := (octave+1)*12 + pitch
	intervals := chordIntervals(suffix)
	midi := make([]int, len(intervals))
	for i, interval := range intervals {
		midi[i] = rootMidi + interval
	}
	return midi
}
