package app

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"chordline/api/internal/autosave"
	"chordline/api/internal/store"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func openEdit(t *testing.T, svc *Service, session Session, songID string) string {
	t.Helper()
	state, err := svc.OpenEditSession(context.Background(), session, songID)
	if err != nil {
		t.Fatalf("open edit session: %v", err)
	}
	return state["sessionId"].(string)
}

func TestEditSessionAppliesOpsAndAutosaves(t *testing.T) {
	fs := newFakeStore()
	svc, _, _ := newTestService(fs)
	owner := ownerSession()
	songID := createTestSong(t, svc, owner, "Gravel Road")

	editID := openEdit(t, svc, owner, songID)

	state, err := svc.ApplyEditOps(owner, editID, []EditOp{
		{Op: "setLyrics", Line: 0, Text: "down the gravel road we go again"},
		{Op: "insertChord", Line: 0, Position: 0, Name: "G"},
		{Op: "insertChord", Line: 0, Position: 60, Name: "D"},
		{Op: "insertChord", Line: 0, Position: 120, Name: "Em"},
		{Op: "insertChord", Line: 0, Position: 180, Name: "C"},
	})
	if err != nil {
		t.Fatalf("apply ops: %v", err)
	}
	content := state["content"].(string)
	if !strings.Contains(content, "down the gravel road") || !strings.Contains(content, `"Em"`) {
		t.Fatalf("expected ops applied, got %q", content)
	}

	waitFor(t, "autosave to persist", func() bool {
		song, err := fs.GetSong(context.Background(), songID)
		return err == nil && strings.Contains(song.Content, "down the gravel road")
	})

	song, _ := fs.GetSong(context.Background(), songID)
	if song.Key != "G major" {
		t.Fatalf("expected key refreshed on save, got %q", song.Key)
	}
}

func TestEditSessionRejectsUnknownOpBeforeApplying(t *testing.T) {
	fs := newFakeStore()
	svc, _, _ := newTestService(fs)
	owner := ownerSession()
	songID := createTestSong(t, svc, owner, "Gravel Road")
	editID := openEdit(t, svc, owner, songID)

	_, err := svc.ApplyEditOps(owner, editID, []EditOp{
		{Op: "setLyrics", Line: 0, Text: "should not land"},
		{Op: "explode"},
	})
	assertDomainError(t, err, http.StatusUnprocessableEntity, "VALIDATION_ERROR")

	state, err := svc.EditSessionState(owner, editID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if strings.Contains(state["content"].(string), "should not land") {
		t.Fatalf("batch with unknown op must not apply")
	}
}

func TestEditSessionReadOnlyViewerNeverWrites(t *testing.T) {
	fs := newFakeStore()
	svc, _, _ := newTestService(fs)
	owner := ownerSession()
	songID := createTestSong(t, svc, owner, "Gravel Road")
	if _, err := svc.ShareSong(context.Background(), owner, songID, "sam@example.com", "viewer"); err != nil {
		t.Fatalf("share: %v", err)
	}

	viewer := testSession("user-2", "Sam", "sam@example.com")
	state, err := svc.OpenEditSession(context.Background(), viewer, songID)
	if err != nil {
		t.Fatalf("viewer open: %v", err)
	}
	if state["canWrite"] != false {
		t.Fatalf("viewer session must be read-only")
	}
	editID := state["sessionId"].(string)

	before, _ := fs.GetSong(context.Background(), songID)
	state, err = svc.ApplyEditOps(viewer, editID, []EditOp{{Op: "setLyrics", Line: 0, Text: "hijacked"}})
	if err != nil {
		t.Fatalf("viewer ops: %v", err)
	}
	if strings.Contains(state["content"].(string), "hijacked") {
		t.Fatalf("read-only edit must short-circuit")
	}

	time.Sleep(80 * time.Millisecond)
	after, _ := fs.GetSong(context.Background(), songID)
	if after.Content != before.Content {
		t.Fatalf("read-only session must never persist")
	}
}

func TestEditSessionScopedToOpener(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(store.User{ID: "user-1", DisplayName: "Frankie", Email: "frankie@example.com"})
	svc, _, _ := newTestService(fs)
	owner := ownerSession()
	songID := createTestSong(t, svc, owner, "Gravel Road")
	editID := openEdit(t, svc, owner, songID)

	other := testSession("user-2", "Sam", "sam@example.com")
	_, err := svc.EditSessionState(other, editID)
	assertDomainError(t, err, http.StatusNotFound, "NOT_FOUND")
}

func TestCloseEditSessionFlushesPendingSnapshot(t *testing.T) {
	fs := newFakeStore()
	svc, revs, _ := newTestService(fs)
	owner := ownerSession()
	songID := createTestSong(t, svc, owner, "Gravel Road")
	editID := openEdit(t, svc, owner, songID)

	if _, err := svc.ApplyEditOps(owner, editID, []EditOp{{Op: "setLyrics", Line: 0, Text: "final words"}}); err != nil {
		t.Fatalf("apply ops: %v", err)
	}

	state, err := svc.CloseEditSession(context.Background(), owner, songID+"-nope")
	if err == nil {
		t.Fatalf("expected 404 for wrong session id, got %v", state)
	}

	state, err = svc.CloseEditSession(context.Background(), owner, editID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if state["status"] != autosave.StatusSaved {
		t.Fatalf("expected saved after close, got %v", state["status"])
	}

	song, _ := fs.GetSong(context.Background(), songID)
	if !strings.Contains(song.Content, "final words") {
		t.Fatalf("close must flush pending snapshot, got %q", song.Content)
	}

	history, _ := revs.History(songID, 10)
	found := false
	for _, c := range history {
		if c.Message == "Autosave" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an autosave commit, got %v", history)
	}

	_, err = svc.EditSessionState(owner, editID)
	assertDomainError(t, err, http.StatusNotFound, "NOT_FOUND")
}
