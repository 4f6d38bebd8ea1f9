package theory

import "strings"

// Mode is a key's quality.
type Mode string

const (
	Major Mode = "major"
	Minor Mode = "minor"
)

// Key is a tonic pitch class plus mode, e.g. {G, major}. Keys are derived
// from chord content and cached on the song record for display only.
type Key struct {
	Tonic string `json:"tonic"`
	Mode  Mode   `json:"mode"`
}

// Name renders the key the way the UI and the stored song field expect it,
// e.g. "C major".
func (k Key) Name() string {
	return k.Tonic + " " + string(k.Mode)
}

// ParseKey reads a "<tonic> <mode>" string; mode defaults to major. ok is
// false when the tonic is not a note name.
func ParseKey(name string) (Key, bool) {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return Key{}, false
	}
	if PitchClass(fields[0]) < 0 {
		return Key{}, false
	}
	mode := Major
	if len(fields) > 1 && strings.EqualFold(fields[1], "minor") {
		mode = Minor
	}
	return Key{Tonic: fields[0], Mode: mode}, true
}

// Transpose moves the tonic by the given semitone offset, respelled to
// the preferred enharmonic name. The mode is unchanged.
func (k Key) Transpose(offset int) Key {
	pitch := PitchClass(k.Tonic)
	if pitch < 0 {
		return k
	}
	shifted := ((pitch+offset)%12 + 12) % 12
	return Key{Tonic: preferredNames[shifted], Mode: k.Mode}
}

// AllKeys enumerates the 24 candidate keys in detection order: the twelve
// majors first, then the twelve minors, tonics ascending chromatically
// from C. Detection tie-breaks depend on this exact order.
func AllKeys() []Key {
	keys := make([]Key, 0, 24)
	for _, mode := range []Mode{Major, Minor} {
		for _, tonic := range preferredNames {
			keys = append(keys, Key{Tonic: tonic, Mode: mode})
		}
	}
	return keys
}

var (
	majorIntervals = [7]int{0, 2, 4, 5, 7, 9, 11}
	minorIntervals = [7]int{0, 2, 3, 5, 7, 8, 10}

	majorQualities = [7]string{"", "m", "m", "", "", "m", "dim"}
	minorQualities = [7]string{"m", "dim", "", "m", "m", "", ""}
)

// ScaleNotes returns the key's seven scale notes with diatonic letter
// spelling: each letter used exactly once, accidentals derived from the
// semitone distance to the natural.
func ScaleNotes(key Key) []string {
	root, _, tonicPitch, ok := splitRoot(key.Tonic)
	if !ok || root != key.Tonic {
		return nil
	}
	intervals := majorIntervals
	if key.Mode == Minor {
		intervals = minorIntervals
	}

	tonicLetter := key.Tonic[0]
	if tonicLetter >= 'a' && tonicLetter <= 'g' {
		tonicLetter -= 'a' - 'A'
	}
	start := letterIndex[tonicLetter]

	notes := make([]string, 7)
	for degree := 0; degree < 7; degree++ {
		letterIdx := (start + degree) % 7
		letter := scaleLetters[letterIdx]
		target := (tonicPitch + intervals[degree]) % 12
		alter := target - naturalPitch[letterIdx]
		// Wrap into [-6, 5] so C(0) relative to B(11) reads as +1, not -11.
		for alter > 6 {
			alter -= 12
		}
		for alter < -6 {
			alter += 12
		}
		name := string(letter)
		for ; alter > 0; alter-- {
			name += "#"
		}
		for ; alter < 0; alter++ {
			name += "b"
		}
		notes[degree] = name
	}
	return notes
}

// DiatonicChords returns the seven triads built on the key's scale
// degrees, e.g. C major → C Dm Em F G Am Bdim.
func DiatonicChords(key Key) []string {
	notes := ScaleNotes(key)
	if notes == nil {
		return nil
	}
	qualities := majorQualities
	if key.Mode == Minor {
		qualities = minorQualities
	}
	chords := make([]string, 7)
	for i, note := range notes {
		chords[i] = note + qualities[i]
	}
	return chords
}

// DetectKey scores all 24 keys by how many of the given chord names
// (extensions stripped) land on the key's diatonic chords, and returns the
// best match. Only a strictly higher score displaces the incumbent, so a
// relative-minor tie resolves to the major key enumerated first. Returns
// nil for an empty input or when no chord scores against any key.
func DetectKey(chordNames []string) *Key {
	if len(chordNames) == 0 {
		return nil
	}
	resolvable := 0
	for _, name := range chordNames {
		if _, _, _, ok := splitRoot(name); ok {
			resolvable++
		}
	}
	if resolvable == 0 {
		return nil
	}

	var best *Key
	bestScore := 0
	for _, key := range AllKeys() {
		diatonic := DiatonicChords(key)
		simplified := make([]string, len(diatonic))
		for i, chord := range diatonic {
			simplified[i] = simplifyChord(chord)
		}

		score := 0
		for _, name := range chordNames {
			nameSimple := simplifyChord(name)
			for i, chord := range diatonic {
				if simplified[i] == nameSimple || chord == name {
					score++
					break
				}
			}
		}
		if score > bestScore {
			bestScore = score
			matched := key
			best = &matched
		}
	}
	return best
}
