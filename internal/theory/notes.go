// Package theory provides pure functions over chord-name strings: key
// detection, diatonic chord and scale enumeration, transposition, and note
// resolution for the chord preview. Chord symbols are never validated up
// front; anything with an unrecognizable root simply passes through
// untouched, which callers treat as a legitimate "no answer".
package theory

import "strings"

// preferredNames spells each pitch class with the enharmonic form songs
// conventionally use. Transposed roots are respelled from this table.
var preferredNames = [12]string{"C", "Db", "D", "Eb", "E", "F", "F#", "G", "Ab", "A", "Bb", "B"}

var letterPitch = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

var letterIndex = map[byte]int{
	'C': 0, 'D': 1, 'E': 2, 'F': 3, 'G': 4, 'A': 5, 'B': 6,
}

var scaleLetters = [7]byte{'C', 'D', 'E', 'F', 'G', 'A', 'B'}

var naturalPitch = [7]int{0, 2, 4, 5, 7, 9, 11}

// splitRoot separates a chord symbol into its root note (letter plus one
// optional accidental) and the remaining quality suffix. ok is false when
// the symbol does not start with a note letter.
func splitRoot(chord string) (root, suffix string, pitch int, ok bool) {
	if chord == "" {
		return "", "", 0, false
	}
	letter := chord[0]
	if letter >= 'a' && letter <= 'g' {
		letter -= 'a' - 'A'
	}
	base, known := letterPitch[letter]
	if !known {
		return "", "", 0, false
	}
	rootLen := 1
	if len(chord) > 1 {
		switch chord[1] {
		case '#':
			base++
			rootLen = 2
		case 'b':
			base--
			rootLen = 2
		}
	}
	return chord[:rootLen], chord[rootLen:], ((base % 12) + 12) % 12, true
}

// PitchClass resolves a note name (letter plus optional # or b) to its
// pitch class, or -1 when the name is unrecognizable.
func PitchClass(note string) int {
	root, suffix, pitch, ok := splitRoot(note)
	if !ok || suffix != "" {
		return -1
	}
	_ = root
	return pitch
}

// suffixStripper removes extension tokens before diatonic matching. The
// token set is deliberately loose: matching G7 against a key's G is the
// whole point of the heuristic.
var suffixStripper = strings.NewReplacer(
	"13", "", "11", "", "7", "", "9", "",
	"maj", "", "Maj", "", "MAJ", "",
	"sus", "", "Sus", "", "SUS", "",
	"add", "", "Add", "", "ADD", "",
	"dim", "", "Dim", "", "DIM", "",
	"aug", "", "Aug", "", "AUG", "",
)

func simplifyChord(name string) string {
	return strings.TrimSpace(suffixStripper.Replace(name))
}
