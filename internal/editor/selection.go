package editor

// Selection is the two-click line range selector: a plain click anchors
// the selection at one line, and shift-clicks extend it from that fixed
// anchor. The anchor moves only on the next plain click.
type Selection struct {
	anchored bool
	anchor   int
	focus    int
}

// Click selects a single line and re-anchors there.
func (s *Selection) Click(index int) {
	if index < 0 {
		index = 0
	}
	s.anchored = true
	s.anchor = index
	s.focus = index
}

// ShiftClick extends the selection from the existing anchor. With no
// anchor yet it behaves like a plain click.
func (s *Selection) ShiftClick(index int) {
	if !s.anchored {
		s.Click(index)
		return
	}
	if index < 0 {
		index = 0
	}
	s.focus = index
}

// Range returns the selected inclusive line range. ok is false while the
// selection is idle.
func (s *Selection) Range() (start, end int, ok bool) {
	if !s.anchored {
		return 0, 0, false
	}
	if s.anchor <= s.focus {
		return s.anchor, s.focus, true
	}
	return s.focus, s.anchor, true
}

// Reset returns the selection to idle, e.g. on song switch.
func (s *Selection) Reset() {
	s.anchored = false
	s.anchor = 0
	s.focus = 0
}
