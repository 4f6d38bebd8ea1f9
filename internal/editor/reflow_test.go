package editor

import (
	"math"
	"testing"

	"chordline/api/internal/songdoc"
	"chordline/api/internal/textwidth"
)

func TestReflowPrefixShift(t *testing.T) {
	meas := textwidth.New(textwidth.DefaultFontSize)
	chords := []songdoc.Chord{{Position: 0, Name: "C"}, {Position: 42, Name: "G"}}

	out := Reflow(meas, "world", "hello world", chords)
	shift := meas.Width("hello ")
	if math.Abs(out[0].Position-shift) > 0.01 || math.Abs(out[1].Position-(42+shift)) > 0.01 {
		t.Fatalf("reflow shift wrong: %+v (want +%v)", out, shift)
	}
	// Input slice untouched.
	if chords[0].Position != 0 || chords[1].Position != 42 {
		t.Fatalf("Reflow mutated its input: %+v", chords)
	}
}

func TestReflowNonSuffixShapesLeaveAnchors(t *testing.T) {
	meas := textwidth.New(textwidth.DefaultFontSize)
	chords := []songdoc.Chord{{Position: 17, Name: "Am"}}

	cases := []struct {
		name    string
		oldText string
		newText string
	}{
		{name: "identical", oldText: "same", newText: "same"},
		{name: "split remainder", oldText: "hello world", newText: "hello"},
		{name: "suffix removed", oldText: "hello world", newText: "world hello"},
		{name: "appended", oldText: "hello", newText: "hello there"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := Reflow(meas, tc.oldText, tc.newText, chords)
			if out[0].Position != 17 {
				t.Fatalf("anchors moved for %s shape: %+v", tc.name, out)
			}
		})
	}
}

func TestReflowEmptyChordList(t *testing.T) {
	meas := textwidth.New(textwidth.DefaultFontSize)
	if out := Reflow(meas, "a", "ba", nil); len(out) != 0 {
		t.Fatalf("reflow invented chords: %+v", out)
	}
}
