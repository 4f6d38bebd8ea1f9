package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chordline/api/internal/rbac"
	"chordline/api/internal/songdoc"
)

type fakeSaver struct {
	mu       sync.Mutex
	calls    []string
	failNext int
	block    chan struct{}
}

func (f *fakeSaver) SaveSnapshot(ctx context.Context, content string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, content)
	if f.failNext > 0 {
		f.failNext--
		return errors.New("store unavailable")
	}
	return nil
}

func (f *fakeSaver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSaver) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func waitStatus(t *testing.T, c *Controller, want Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Status() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("status = %q, want %q", c.Status(), want)
}

func doc(lyrics string) songdoc.Document {
	d := songdoc.New()
	d.Lines[0].Lyrics = lyrics
	return d
}

func writable() rbac.Capability { return rbac.Capability{CanWrite: true} }

func TestSaveCycle(t *testing.T) {
	saver := &fakeSaver{}
	c := New(saver, 10*time.Millisecond, writable(), nil)
	defer c.Close()

	if c.Status() != StatusSaved {
		t.Fatalf("initial status = %q, want saved", c.Status())
	}

	c.Note(doc("hello"))
	if c.Status() != StatusUnsaved {
		t.Fatalf("status after Note = %q, want unsaved", c.Status())
	}

	waitStatus(t, c, StatusSaved)
	if saver.callCount() != 1 {
		t.Fatalf("save count = %d, want 1", saver.callCount())
	}
}

func TestDebounceCancelsAndReplaces(t *testing.T) {
	saver := &fakeSaver{}
	c := New(saver, 40*time.Millisecond, writable(), nil)
	defer c.Close()

	// A burst of edits inside the debounce window coalesces to one write
	// carrying the newest snapshot.
	for _, lyrics := range []string{"a", "ab", "abc"} {
		c.Note(doc(lyrics))
		time.Sleep(5 * time.Millisecond)
	}
	waitStatus(t, c, StatusSaved)

	if saver.callCount() != 1 {
		t.Fatalf("save count = %d, want 1 coalesced write", saver.callCount())
	}
	saved := songdoc.Parse(saver.lastCall())
	if saved.Lines[0].Lyrics != "abc" {
		t.Fatalf("saved snapshot lyrics = %q, want the newest", saved.Lines[0].Lyrics)
	}
}

func TestFailureReturnsToUnsavedAndRetries(t *testing.T) {
	saver := &fakeSaver{failNext: 1}
	c := New(saver, 10*time.Millisecond, writable(), nil)
	defer c.Close()

	c.Note(doc("keep me"))

	// First write fails; state must fall back to unsaved, never saved,
	// and the next debounce cycle retries the same snapshot.
	waitStatus(t, c, StatusSaved)
	if saver.callCount() != 2 {
		t.Fatalf("save count = %d, want failed write plus retry", saver.callCount())
	}
}

func TestMutationDuringSaveIsCapturedNext(t *testing.T) {
	saver := &fakeSaver{block: make(chan struct{})}
	c := New(saver, 5*time.Millisecond, writable(), nil)
	defer c.Close()

	c.Note(doc("first"))
	waitStatus(t, c, StatusSaving)

	c.Note(doc("second"))
	if c.Status() != StatusUnsaved {
		t.Fatalf("status after mid-save edit = %q, want unsaved", c.Status())
	}

	close(saver.block)
	waitStatus(t, c, StatusSaved)

	saved := songdoc.Parse(saver.lastCall())
	if saved.Lines[0].Lyrics != "second" {
		t.Fatalf("final write carried %q, want the post-save edit", saved.Lines[0].Lyrics)
	}
}

func TestReadOnlyCapabilityNeverArmsTimer(t *testing.T) {
	saver := &fakeSaver{}
	c := New(saver, 5*time.Millisecond, rbac.Capability{CanWrite: false}, nil)
	defer c.Close()

	c.Note(doc("nope"))
	time.Sleep(30 * time.Millisecond)

	if c.Status() != StatusSaved {
		t.Fatalf("status = %q, want saved (gate before debounce)", c.Status())
	}
	if saver.callCount() != 0 {
		t.Fatalf("read-only session wrote %d times", saver.callCount())
	}
}

func TestFlush(t *testing.T) {
	saver := &fakeSaver{}
	c := New(saver, time.Hour, writable(), nil)
	defer c.Close()

	c.Note(doc("pending"))
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if c.Status() != StatusSaved {
		t.Fatalf("status after Flush = %q", c.Status())
	}
	if saver.callCount() != 1 {
		t.Fatalf("Flush wrote %d times, want 1", saver.callCount())
	}

	// Nothing pending: Flush is a no-op.
	if err := c.Flush(context.Background()); err != nil {
		t.Fatalf("idle Flush: %v", err)
	}
	if saver.callCount() != 1 {
		t.Fatal("idle Flush issued a write")
	}
}

func TestStatusListener(t *testing.T) {
	saver := &fakeSaver{}
	var mu sync.Mutex
	var seen []Status
	c := New(saver, 5*time.Millisecond, writable(), func(s Status) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	defer c.Close()

	c.Note(doc("x"))
	waitStatus(t, c, StatusSaved)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 3 || seen[0] != StatusUnsaved || seen[len(seen)-1] != StatusSaved {
		t.Fatalf("status transitions = %v, want unsaved…saving…saved", seen)
	}
}
