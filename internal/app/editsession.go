package app

import (
	"context"
	"net/http"
	"sync"
	"time"

	"chordline/api/internal/autosave"
	"chordline/api/internal/editor"
	"chordline/api/internal/rbac"
	"chordline/api/internal/songdoc"
	"chordline/api/internal/textwidth"
	"chordline/api/internal/util"
)

// editSessionTTL bounds abandoned sessions; the deadline slides on every
// request that touches the session.
const editSessionTTL = 15 * time.Minute

// editSession holds the server-side editing state for one open song: the
// annotation editor owning the in-memory document, and the autosave
// controller that debounces its snapshots into the store.
type editSession struct {
	ID        string
	SongID    string
	UserID    string
	canWrite  bool
	expiresAt time.Time

	// mu serializes editor access; the editor itself is not safe for
	// concurrent mutation.
	mu     sync.Mutex
	editor *editor.Editor
	saver  *autosave.Controller
}

// EditOp is one editor intent from the client. Fields are read per Op.
type EditOp struct {
	Op       string  `json:"op"`
	Line     int     `json:"line"`
	EndLine  int     `json:"endLine"`
	Chord    int     `json:"chord"`
	Position float64 `json:"position"`
	Name     string  `json:"name"`
	Text     string  `json:"text"`
	Cursor   int     `json:"cursor"`
	Section  string  `json:"section"`
}

// OpenEditSession loads the song into a server-side editor. Read-only
// viewers can open a session too; their mutations short-circuit and the
// autosave timer never arms.
func (s *Service) OpenEditSession(ctx context.Context, session Session, songID string) (map[string]any, error) {
	song, role, err := s.loadSong(ctx, session, songID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	capability := rbac.CapabilityFor(role)

	saver := autosave.SaverFunc(func(saveCtx context.Context, content string) error {
		_, err := s.UpdateSongContent(saveCtx, session, songID, content, "Autosave")
		return err
	})
	ctrl := autosave.New(saver, s.cfg.SaveDebounce, capability, nil)
	ed := editor.New(songdoc.Parse(song.Content), textwidth.New(textwidth.DefaultFontSize), capability, ctrl.Note)

	es := &editSession{
		ID:        util.NewID("edit"),
		SongID:    songID,
		UserID:    session.UserID,
		editor:    ed,
		saver:     ctrl,
		canWrite:  capability.CanWrite,
		expiresAt: time.Now().Add(editSessionTTL),
	}

	s.editMu.Lock()
	s.pruneEditSessionsLocked()
	s.editSessions[es.ID] = es
	s.editMu.Unlock()

	return map[string]any{
		"sessionId": es.ID,
		"songId":    songID,
		"content":   songdoc.Serialize(ed.Document()),
		"canWrite":  es.canWrite,
		"status":    ctrl.Status(),
	}, nil
}

// ApplyEditOps runs a batch of editor intents in order and returns the
// resulting document. Unknown ops reject the whole batch before any of
// it is applied.
func (s *Service) ApplyEditOps(session Session, editID string, ops []EditOp) (map[string]any, error) {
	es, err := s.getEditSession(session, editID)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		if !knownEditOp(op.Op) {
			return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unknown edit op", map[string]any{"op": op.Op})
		}
	}

	es.mu.Lock()
	defer es.mu.Unlock()
	for _, op := range ops {
		switch op.Op {
		case "insertChord":
			es.editor.InsertChord(op.Line, op.Position, op.Name)
		case "editChord":
			es.editor.EditChord(op.Line, op.Chord, op.Name)
		case "setLyrics":
			es.editor.SetLyrics(op.Line, op.Text)
		case "splitLine":
			es.editor.SplitLine(op.Line, op.Cursor)
		case "mergeLine":
			es.editor.MergeLine(op.Line)
		case "paste":
			es.editor.Paste(op.Line, op.Cursor, op.Text)
		case "tagSection":
			es.editor.TagSection(op.Line, op.EndLine, op.Section)
		case "clearSection":
			es.editor.ClearSection(op.Line, op.EndLine)
		}
	}

	return editStateLocked(es), nil
}

// EditSessionState returns the current document and save status.
func (s *Service) EditSessionState(session Session, editID string) (map[string]any, error) {
	es, err := s.getEditSession(session, editID)
	if err != nil {
		return nil, err
	}
	es.mu.Lock()
	defer es.mu.Unlock()
	return editStateLocked(es), nil
}

// CloseEditSession flushes any pending snapshot and tears the session
// down. Closing an already-expired session is a 404 like any other miss.
func (s *Service) CloseEditSession(ctx context.Context, session Session, editID string) (map[string]any, error) {
	es, err := s.getEditSession(session, editID)
	if err != nil {
		return nil, err
	}

	s.editMu.Lock()
	delete(s.editSessions, editID)
	s.editMu.Unlock()

	if err := es.saver.Flush(ctx); err != nil {
		es.saver.Close()
		return nil, err
	}
	es.saver.Close()

	return map[string]any{
		"sessionId": es.ID,
		"status":    autosave.StatusSaved,
	}, nil
}

func editStateLocked(es *editSession) map[string]any {
	return map[string]any{
		"sessionId": es.ID,
		"songId":    es.SongID,
		"content":   songdoc.Serialize(es.editor.Document()),
		"canWrite":  es.canWrite,
		"status":    es.saver.Status(),
	}
}

func (s *Service) getEditSession(session Session, editID string) (*editSession, error) {
	s.editMu.Lock()
	defer s.editMu.Unlock()
	s.pruneEditSessionsLocked()
	es, ok := s.editSessions[editID]
	if !ok || es.UserID != session.UserID {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Editing session not found", nil)
	}
	es.expiresAt = time.Now().Add(editSessionTTL)
	return es, nil
}

func (s *Service) pruneEditSessionsLocked() {
	now := time.Now()
	for id, es := range s.editSessions {
		if now.After(es.expiresAt) {
			es.saver.Close()
			delete(s.editSessions, id)
		}
	}
}

func knownEditOp(op string) bool {
	switch op {
	case "insertChord", "editChord", "setLyrics", "splitLine", "mergeLine", "paste", "tagSection", "clearSection":
		return true
	}
	return false
}
