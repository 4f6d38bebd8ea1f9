package revisions

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestSongRepoLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Snapshot{
		Title:   "Gravel Road",
		Content: `[{"id":"ln_1","lyrics":"down the road","chords":[{"position":0,"name":"G"}]}]`,
		Key:     "G major",
		Tempo:   92,
	}

	if err := svc.EnsureSongRepo("song-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureSongRepo() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "song-1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	// Ensure is idempotent
	if err := svc.EnsureSongRepo("song-1", initial, "Avery"); err != nil {
		t.Fatalf("second EnsureSongRepo() error = %v", err)
	}

	updated := initial
	updated.Content = `[{"id":"ln_1","lyrics":"down the gravel road","chords":[{"position":0,"name":"G"}]}]`
	commit, err := svc.Commit("song-1", updated, "Avery", "Autosave")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if commit.Hash == "" {
		t.Fatal("expected commit hash")
	}

	history, err := svc.History("song-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}

	snap, err := svc.GetByHash("song-1", commit.Hash)
	if err != nil {
		t.Fatalf("GetByHash() error = %v", err)
	}
	if !strings.Contains(snap.Content, "gravel road") {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	head, headCommit, err := svc.Head("song-1")
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if head.Content != updated.Content {
		t.Fatalf("head content mismatch: %+v", head)
	}
	if headCommit.Hash != commit.Hash {
		t.Fatalf("head commit = %s, want %s", headCommit.Hash, commit.Hash)
	}
}

func TestConcurrentCommits(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Snapshot{Title: "Song", Content: "[]"}
	if err := svc.EnsureSongRepo("song-1", initial, "Avery"); err != nil {
		t.Fatalf("EnsureSongRepo() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			next := initial
			next.Content = fmt.Sprintf(`[{"id":"ln_%02d","lyrics":"take %02d","chords":[]}]`, idx, idx)
			if _, err := svc.Commit("song-1", next, "Avery", fmt.Sprintf("Autosave %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			t.Fatalf("Commit() concurrent error = %v", err)
		}
	}

	history, err := svc.History("song-1", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) < writers+1 {
		t.Fatalf("expected at least %d commits, got %d", writers+1, len(history))
	}
}

func TestDeleteRemovesRepo(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if err := svc.EnsureSongRepo("song-1", Snapshot{Title: "Song"}, "Avery"); err != nil {
		t.Fatalf("EnsureSongRepo() error = %v", err)
	}
	if err := svc.Delete("song-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "song-1")); !os.IsNotExist(err) {
		t.Fatal("expected repo directory to be removed")
	}
}
