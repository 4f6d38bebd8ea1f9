package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"chordline/api/internal/auth"
	"chordline/api/internal/authpw"
	"chordline/api/internal/config"
	"chordline/api/internal/email"
	"chordline/api/internal/export"
	"chordline/api/internal/rbac"
	"chordline/api/internal/revisions"
	"chordline/api/internal/search"
	"chordline/api/internal/songdoc"
	"chordline/api/internal/store"
	"chordline/api/internal/theory"
	"chordline/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

const (
	minTempo = 20
	maxTempo = 400
	maxCapo  = 12
)

var allowedVisibility = map[string]struct{}{
	"private": {},
	"shared":  {},
}

var allowedShareRoles = map[string]struct{}{
	"editor": {},
	"viewer": {},
}

type dataStore interface {
	GetUserByID(context.Context, string) (store.User, error)
	CreateSong(context.Context, store.Song) error
	GetSong(context.Context, string) (store.Song, error)
	GetSongByShareID(context.Context, string) (store.Song, error)
	ListSongs(context.Context, string, string) ([]store.SongListItem, error)
	UpdateSongContent(context.Context, string, string, string, string) error
	UpdateSongMeta(context.Context, string, string, int, int) error
	UpdateSongVisibility(context.Context, string, string) error
	DeleteSong(context.Context, string) error
	UpsertCollaborator(context.Context, store.Collaborator) error
	RemoveCollaborator(context.Context, string, string) error
	ListCollaborators(context.Context, string) ([]store.Collaborator, error)
	CollaboratorRoles(context.Context, string) (map[string]string, error)
	CreateAttachment(context.Context, store.Attachment) error
	ListAttachments(context.Context, string) ([]store.Attachment, error)
	GetAttachment(context.Context, string) (store.Attachment, error)
	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(context.Context, string, store.User, time.Time) error
	LookupRefreshSession(context.Context, string) (store.User, error)
	RevokeRefreshSession(context.Context, string) error
	Ping(context.Context) error
}

type revisionService interface {
	EnsureSongRepo(songID string, initial revisions.Snapshot, author string) error
	Commit(songID string, snap revisions.Snapshot, author, message string) (revisions.CommitInfo, error)
	GetByHash(songID, hash string) (revisions.Snapshot, error)
	History(songID string, limit int) ([]revisions.CommitInfo, error)
	Delete(songID string) error
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexSong(rec search.SongRecord)
	DeleteSong(id string)
}

type assetStore interface {
	Upload(ctx context.Context, objectKey string, r io.Reader, size int64, contentType string) error
	PresignedGetURL(ctx context.Context, objectKey, fileName string, expiry time.Duration) (string, error)
	Remove(ctx context.Context, objectKey string) error
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	revisions revisionService
	search    searchService
	exporter  *export.Service
	assets    assetStore
	email     *email.Service
	authpw    *authpw.Service

	editMu       sync.Mutex
	editSessions map[string]*editSession
}

// Deps carries the optional collaborators. Assets may be nil when no
// object store endpoint is configured; email may be nil in dev.
type Deps struct {
	Sessions  sessionStore
	Revisions revisionService
	Search    searchService
	Assets    assetStore
	Email     *email.Service
	AuthPW    *authpw.Service
}

func New(cfg config.Config, dataStore dataStore, deps Deps) *Service {
	s := &Service{
		cfg:          cfg,
		store:        dataStore,
		sessions:     deps.Sessions,
		revisions:    deps.Revisions,
		search:       deps.Search,
		assets:       deps.Assets,
		email:        deps.Email,
		authpw:       deps.AuthPW,
		editSessions: make(map[string]*editSession),
	}
	s.exporter = export.NewService(exportAdapter{s})
	return s
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) SMTPConfigured() bool {
	return s.email != nil && s.email.IsConfigured()
}

// exportAdapter feeds song data to the export renderer, resolving the
// owner's display name for the sheet footer.
type exportAdapter struct {
	svc *Service
}

func (a exportAdapter) GetSong(ctx context.Context, id string) (export.SongInfo, error) {
	song, err := a.svc.store.GetSong(ctx, id)
	if err != nil {
		return export.SongInfo{}, err
	}
	ownerName := ""
	if owner, err := a.svc.store.GetUserByID(ctx, song.OwnerID); err == nil {
		ownerName = owner.DisplayName
	}
	return export.SongInfo{
		ID:        song.ID,
		Title:     song.Title,
		Content:   song.Content,
		Key:       song.Key,
		Tempo:     song.Tempo,
		Capo:      song.Capo,
		OwnerName: ownerName,
	}, nil
}

// Sessions

func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   user.ID,
		Name:  user.DisplayName,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(_ context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Email:     claims.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken != "" {
		return s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// SendVerificationEmail delivers the signup verification link in the
// background when SMTP is configured.
func (s *Service) SendVerificationEmail(to, userName, token string) {
	if !s.SMTPConfigured() || token == "" {
		return
	}
	url := s.cfg.CORSOrigin + "/verify-email?token=" + token
	go func() {
		if err := s.email.SendVerificationEmail(to, userName, url); err != nil {
			log.Printf("verification email to %s: %v", to, err)
		}
	}()
}

// SendPasswordResetEmail delivers the reset link in the background when
// SMTP is configured.
func (s *Service) SendPasswordResetEmail(to, userName, token string) {
	if !s.SMTPConfigured() || token == "" {
		return
	}
	if userName == "" {
		userName, _, _ = strings.Cut(to, "@")
	}
	url := s.cfg.CORSOrigin + "/reset-password?token=" + token
	go func() {
		if err := s.email.SendPasswordResetEmail(to, userName, url); err != nil {
			log.Printf("password reset email to %s: %v", to, err)
		}
	}()
}

// Songs

func (s *Service) CreateSong(ctx context.Context, session Session, title string) (map[string]any, error) {
	songTitle := strings.TrimSpace(title)
	if songTitle == "" {
		songTitle = "Untitled song"
	}

	now := time.Now()
	song := store.Song{
		ID:         util.NewID("song"),
		OwnerID:    session.UserID,
		Title:      songTitle,
		Content:    songdoc.Serialize(songdoc.New()),
		Tempo:      120,
		Capo:       0,
		ShareID:    util.NewShareID(),
		Visibility: "private",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateSong(ctx, song); err != nil {
		return nil, err
	}
	if err := s.revisions.EnsureSongRepo(song.ID, snapshotOf(song), session.UserName); err != nil {
		return nil, fmt.Errorf("init revisions: %w", err)
	}
	s.search.IndexSong(s.searchRecord(ctx, song))

	return songResponse(song, rbac.RoleOwner), nil
}

func (s *Service) ListSongs(ctx context.Context, session Session) ([]map[string]any, error) {
	items, err := s.store.ListSongs(ctx, session.UserID, session.Email)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{
			"id":         item.ID,
			"title":      item.Title,
			"key":        item.Key,
			"tempo":      item.Tempo,
			"capo":       item.Capo,
			"visibility": item.Visibility,
			"role":       item.Role,
			"updatedAt":  item.UpdatedAt.Unix(),
		})
	}
	return out, nil
}

// songRole resolves the viewer's role on a song, or a 404 when the
// viewer has no standing at all. Share-link reads never pass through
// here; they resolve by ShareID instead.
func (s *Service) songRole(ctx context.Context, song store.Song, session Session) (rbac.Role, error) {
	if song.OwnerID == session.UserID {
		return rbac.RoleOwner, nil
	}
	roles, err := s.store.CollaboratorRoles(ctx, song.ID)
	if err != nil {
		return "", err
	}
	if _, ok := roles[strings.ToLower(strings.TrimSpace(session.Email))]; !ok {
		return "", domainError(http.StatusNotFound, "NOT_FOUND", "Song not found", nil)
	}
	return rbac.RoleFor(song.OwnerID, roles, session.UserID, session.Email), nil
}

func (s *Service) loadSong(ctx context.Context, session Session, songID string, action rbac.Action) (store.Song, rbac.Role, error) {
	song, err := s.store.GetSong(ctx, songID)
	if err != nil {
		if store.IsNotFound(err) {
			return store.Song{}, "", domainError(http.StatusNotFound, "NOT_FOUND", "Song not found", nil)
		}
		return store.Song{}, "", err
	}
	role, err := s.songRole(ctx, song, session)
	if err != nil {
		return store.Song{}, "", err
	}
	if !rbac.Can(role, action) {
		return store.Song{}, "", domainError(http.StatusForbidden, "FORBIDDEN", "Insufficient permissions", nil)
	}
	return song, role, nil
}

func (s *Service) GetSong(ctx context.Context, session Session, songID string) (map[string]any, error) {
	song, role, err := s.loadSong(ctx, session, songID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	collabs, err := s.store.ListCollaborators(ctx, songID)
	if err != nil {
		return nil, err
	}
	resp := songResponse(song, role)
	resp["content"] = song.Content
	resp["collaborators"] = collaboratorList(collabs)
	resp["canWrite"] = rbac.CapabilityFor(role).CanWrite
	return resp, nil
}

func (s *Service) GetSharedSong(ctx context.Context, shareID string) (map[string]any, error) {
	song, err := s.store.GetSongByShareID(ctx, shareID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Song not found", nil)
		}
		return nil, err
	}
	if song.Visibility != "shared" {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Song not found", nil)
	}
	return map[string]any{
		"id":        song.ID,
		"title":     song.Title,
		"content":   song.Content,
		"key":       song.Key,
		"tempo":     song.Tempo,
		"capo":      song.Capo,
		"readOnly":  true,
		"updatedAt": song.UpdatedAt.Unix(),
	}, nil
}

// UpdateSongContent persists an edited chord sheet: the content is
// re-serialized through the document model so malformed payloads
// degrade to plain text, the key cache is refreshed, and the change
// lands as one revision commit.
func (s *Service) UpdateSongContent(ctx context.Context, session Session, songID, content, message string) (map[string]any, error) {
	song, _, err := s.loadSong(ctx, session, songID, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}

	doc := songdoc.Parse(content)
	normalized := songdoc.Serialize(doc)
	keyName := ""
	if detected := theory.DetectKey(theory.ExtractChordNames(doc)); detected != nil {
		keyName = detected.Name()
	}

	if err := s.store.UpdateSongContent(ctx, songID, normalized, keyName, searchText(doc)); err != nil {
		return nil, err
	}

	commitMessage := strings.TrimSpace(message)
	if commitMessage == "" {
		commitMessage = "Update song"
	}
	song.Content = normalized
	song.Key = keyName
	info, err := s.revisions.Commit(songID, snapshotOf(song), session.UserName, commitMessage)
	if err != nil {
		return nil, fmt.Errorf("commit revision: %w", err)
	}
	s.search.IndexSong(s.searchRecord(ctx, song))

	return map[string]any{
		"id":      songID,
		"key":     keyName,
		"content": normalized,
		"commit":  info.Hash,
		"savedAt": info.CreatedAt.Unix(),
	}, nil
}

func (s *Service) UpdateSongMeta(ctx context.Context, session Session, songID, title string, tempo, capo int) (map[string]any, error) {
	song, role, err := s.loadSong(ctx, session, songID, rbac.ActionWrite)
	if err != nil {
		return nil, err
	}
	songTitle := strings.TrimSpace(title)
	if songTitle == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Title must not be empty", nil)
	}
	if tempo < minTempo || tempo > maxTempo {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("Tempo must be between %d and %d", minTempo, maxTempo), nil)
	}
	if capo < 0 || capo > maxCapo {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("Capo must be between 0 and %d", maxCapo), nil)
	}
	if err := s.store.UpdateSongMeta(ctx, songID, songTitle, tempo, capo); err != nil {
		return nil, err
	}
	song.Title = songTitle
	song.Tempo = tempo
	song.Capo = capo
	if _, err := s.revisions.Commit(songID, snapshotOf(song), session.UserName, "Update song details"); err != nil {
		return nil, fmt.Errorf("commit revision: %w", err)
	}
	s.search.IndexSong(s.searchRecord(ctx, song))
	return songResponse(song, role), nil
}

func (s *Service) UpdateVisibility(ctx context.Context, session Session, songID, visibility string) (map[string]any, error) {
	song, role, err := s.loadSong(ctx, session, songID, rbac.ActionShare)
	if err != nil {
		return nil, err
	}
	if _, ok := allowedVisibility[visibility]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Visibility must be private or shared", nil)
	}
	if err := s.store.UpdateSongVisibility(ctx, songID, visibility); err != nil {
		return nil, err
	}
	song.Visibility = visibility
	return songResponse(song, role), nil
}

func (s *Service) DeleteSong(ctx context.Context, session Session, songID string) error {
	song, _, err := s.loadSong(ctx, session, songID, rbac.ActionDelete)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSong(ctx, songID); err != nil {
		return err
	}
	if err := s.revisions.Delete(songID); err != nil {
		log.Printf("delete revisions for %s: %v", songID, err)
	}
	s.search.DeleteSong(song.ID)
	return nil
}

// Sharing

func (s *Service) ShareSong(ctx context.Context, session Session, songID, collabEmail, role string) ([]map[string]any, error) {
	song, _, err := s.loadSong(ctx, session, songID, rbac.ActionShare)
	if err != nil {
		return nil, err
	}
	address := strings.ToLower(strings.TrimSpace(collabEmail))
	if address == "" || !strings.Contains(address, "@") {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "A valid email address is required", nil)
	}
	if address == strings.ToLower(session.Email) {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "You already have access to this song", nil)
	}
	grantRole := strings.ToLower(strings.TrimSpace(role))
	if _, ok := allowedShareRoles[grantRole]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Role must be editor or viewer", nil)
	}

	if err := s.store.UpsertCollaborator(ctx, store.Collaborator{
		SongID:    songID,
		Email:     address,
		Role:      grantRole,
		InvitedBy: session.UserID,
	}); err != nil {
		return nil, err
	}
	s.search.IndexSong(s.searchRecord(ctx, song))

	if s.SMTPConfigured() {
		songURL := s.cfg.CORSOrigin + "/songs/" + songID
		go func() {
			if err := s.email.SendShareInviteEmail(address, session.UserName, song.Title, grantRole, songURL); err != nil {
				log.Printf("share invite email to %s: %v", address, err)
			}
		}()
	}

	collabs, err := s.store.ListCollaborators(ctx, songID)
	if err != nil {
		return nil, err
	}
	return collaboratorList(collabs), nil
}

func (s *Service) UnshareSong(ctx context.Context, session Session, songID, collabEmail string) ([]map[string]any, error) {
	song, _, err := s.loadSong(ctx, session, songID, rbac.ActionShare)
	if err != nil {
		return nil, err
	}
	address := strings.ToLower(strings.TrimSpace(collabEmail))
	if err := s.store.RemoveCollaborator(ctx, songID, address); err != nil {
		return nil, err
	}
	s.search.IndexSong(s.searchRecord(ctx, song))

	collabs, err := s.store.ListCollaborators(ctx, songID)
	if err != nil {
		return nil, err
	}
	return collaboratorList(collabs), nil
}

func (s *Service) ListCollaborators(ctx context.Context, session Session, songID string) ([]map[string]any, error) {
	if _, _, err := s.loadSong(ctx, session, songID, rbac.ActionRead); err != nil {
		return nil, err
	}
	collabs, err := s.store.ListCollaborators(ctx, songID)
	if err != nil {
		return nil, err
	}
	return collaboratorList(collabs), nil
}

// Theory

func (s *Service) TransposeSong(ctx context.Context, session Session, songID string, semitones int) (map[string]any, error) {
	song, _, err := s.loadSong(ctx, session, songID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	if semitones < -11 || semitones > 11 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Semitones must be between -11 and 11", nil)
	}
	doc := songdoc.Parse(song.Content)
	transposed := theory.TransposeDocument(doc, semitones)

	keyName := song.Key
	if key, ok := theory.ParseKey(song.Key); ok {
		keyName = key.Transpose(semitones).Name()
	} else if detected := theory.DetectKey(theory.ExtractChordNames(transposed)); detected != nil {
		keyName = detected.Name()
	}

	return map[string]any{
		"id":        songID,
		"semitones": semitones,
		"key":       keyName,
		"content":   songdoc.Serialize(transposed),
	}, nil
}

func (s *Service) DetectKey(content string) map[string]any {
	doc := songdoc.Parse(content)
	names := theory.ExtractChordNames(doc)
	resp := map[string]any{"chords": len(names)}
	if key := theory.DetectKey(names); key != nil {
		resp["key"] = key.Name()
		resp["scale"] = theory.ScaleNotes(*key)
		resp["diatonic"] = theory.DiatonicChords(*key)
	}
	return resp
}

func (s *Service) DiatonicChords(keyName string) (map[string]any, error) {
	key, ok := theory.ParseKey(keyName)
	if !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unknown key", map[string]any{"key": keyName})
	}
	return map[string]any{
		"key":      key.Name(),
		"scale":    theory.ScaleNotes(key),
		"diatonic": theory.DiatonicChords(key),
	}, nil
}

func (s *Service) ChordPreview(name string, octave int) (map[string]any, error) {
	notes := theory.ChordNotes(name)
	if len(notes) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Unknown chord", map[string]any{"chord": name})
	}
	if octave == 0 {
		octave = 4
	}
	return map[string]any{
		"chord": name,
		"notes": notes,
		"midi":  theory.ChordMidi(name, octave),
	}, nil
}

// Search

func (s *Service) Search(_ context.Context, session Session, text string, limit, offset int) search.Response {
	return s.search.Search(search.Query{
		Text:   text,
		UserID: session.UserID,
		Email:  session.Email,
		Limit:  limit,
		Offset: offset,
	})
}

// Export

func (s *Service) Export(ctx context.Context, session Session, songID, format string, transpose int) (*export.Result, error) {
	if _, _, err := s.loadSong(ctx, session, songID, rbac.ActionRead); err != nil {
		return nil, err
	}
	var f export.Format
	switch strings.ToLower(format) {
	case "pdf", "":
		f = export.FormatPDF
	case "docx":
		f = export.FormatDOCX
	default:
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Format must be pdf or docx", nil)
	}
	result, err := s.exporter.Export(ctx, export.Request{SongID: songID, Format: f, Transpose: transpose})
	if err != nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_FAILED", "Export failed", map[string]any{"reason": err.Error()})
	}
	return result, nil
}

// Revisions

func (s *Service) History(ctx context.Context, session Session, songID string, limit int) ([]map[string]any, error) {
	if _, _, err := s.loadSong(ctx, session, songID, rbac.ActionRead); err != nil {
		return nil, err
	}
	commits, err := s.revisions.History(songID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(commits))
	for _, c := range commits {
		out = append(out, map[string]any{
			"hash":      c.Hash,
			"message":   c.Message,
			"author":    c.Author,
			"createdAt": c.CreatedAt.Unix(),
		})
	}
	return out, nil
}

func (s *Service) GetRevision(ctx context.Context, session Session, songID, hash string) (map[string]any, error) {
	if _, _, err := s.loadSong(ctx, session, songID, rbac.ActionRead); err != nil {
		return nil, err
	}
	snap, err := s.revisions.GetByHash(songID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	return map[string]any{
		"hash":    hash,
		"title":   snap.Title,
		"content": snap.Content,
		"key":     snap.Key,
		"tempo":   snap.Tempo,
		"capo":    snap.Capo,
	}, nil
}

// RestoreRevision copies an old snapshot forward as a new commit, so
// history stays append-only.
func (s *Service) RestoreRevision(ctx context.Context, session Session, songID, hash string) (map[string]any, error) {
	if _, _, err := s.loadSong(ctx, session, songID, rbac.ActionWrite); err != nil {
		return nil, err
	}
	snap, err := s.revisions.GetByHash(songID, hash)
	if err != nil {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	return s.UpdateSongContent(ctx, session, songID, snap.Content, "Restore revision "+hash)
}

// Attachments

func (s *Service) UploadAttachment(ctx context.Context, session Session, songID, fileName, contentType string, r io.Reader, size int64) (map[string]any, error) {
	if _, _, err := s.loadSong(ctx, session, songID, rbac.ActionWrite); err != nil {
		return nil, err
	}
	if s.assets == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ATTACHMENTS_DISABLED", "Attachment storage is not configured", nil)
	}
	name := path.Base(strings.TrimSpace(fileName))
	if name == "" || name == "." || name == "/" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "File name is required", nil)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	att := store.Attachment{
		ID:          util.NewID("att"),
		SongID:      songID,
		ObjectKey:   songID + "/" + util.NewID("obj") + "/" + name,
		FileName:    name,
		ContentType: contentType,
		Size:        size,
		UploadedBy:  session.UserID,
	}
	if err := s.assets.Upload(ctx, att.ObjectKey, r, size, contentType); err != nil {
		return nil, fmt.Errorf("upload attachment: %w", err)
	}
	if err := s.store.CreateAttachment(ctx, att); err != nil {
		return nil, err
	}
	return attachmentResponse(att), nil
}

func (s *Service) ListAttachments(ctx context.Context, session Session, songID string) ([]map[string]any, error) {
	if _, _, err := s.loadSong(ctx, session, songID, rbac.ActionRead); err != nil {
		return nil, err
	}
	atts, err := s.store.ListAttachments(ctx, songID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(atts))
	for _, att := range atts {
		out = append(out, attachmentResponse(att))
	}
	return out, nil
}

func (s *Service) AttachmentURL(ctx context.Context, session Session, songID, attachmentID string) (map[string]any, error) {
	if _, _, err := s.loadSong(ctx, session, songID, rbac.ActionRead); err != nil {
		return nil, err
	}
	if s.assets == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ATTACHMENTS_DISABLED", "Attachment storage is not configured", nil)
	}
	att, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil || att.SongID != songID {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Attachment not found", nil)
	}
	url, err := s.assets.PresignedGetURL(ctx, att.ObjectKey, att.FileName, 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("presign attachment: %w", err)
	}
	return map[string]any{"id": att.ID, "url": url}, nil
}

// ClientConfig returns the settings the editor needs before a session
// exists, mainly the autosave debounce window.
func (s *Service) ClientConfig() map[string]any {
	return map[string]any{
		"saveDebounceMs":     s.cfg.SaveDebounce.Milliseconds(),
		"attachmentsEnabled": s.assets != nil,
	}
}

// Readiness

func (s *Service) Ready(ctx context.Context) map[string]string {
	checks := map[string]string{}
	if err := s.store.Ping(ctx); err != nil {
		checks["database"] = err.Error()
	} else {
		checks["database"] = "ok"
	}
	if err := s.sessions.Ping(ctx); err != nil {
		checks["redis"] = err.Error()
	} else {
		checks["redis"] = "ok"
	}
	return checks
}

// Helpers

func snapshotOf(song store.Song) revisions.Snapshot {
	return revisions.Snapshot{
		Title:   song.Title,
		Content: song.Content,
		Key:     song.Key,
		Tempo:   song.Tempo,
		Capo:    song.Capo,
	}
}

func (s *Service) searchRecord(ctx context.Context, song store.Song) search.SongRecord {
	access := []string{song.OwnerID}
	if roles, err := s.store.CollaboratorRoles(ctx, song.ID); err == nil {
		for addr := range roles {
			access = append(access, addr)
		}
	}
	doc := songdoc.Parse(song.Content)
	return search.SongRecord{
		ID:     song.ID,
		Title:  song.Title,
		Lyrics: doc.PlainText(),
		Chords: strings.Join(theory.ExtractChordNames(doc), " "),
		Key:    song.Key,
		Access: access,
	}
}

// searchText flattens lyrics and chord names into the column feeding
// the Postgres tsvector.
func searchText(doc songdoc.Document) string {
	parts := []string{doc.PlainText()}
	if names := theory.ExtractChordNames(doc); len(names) > 0 {
		parts = append(parts, strings.Join(names, " "))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func songResponse(song store.Song, role rbac.Role) map[string]any {
	return map[string]any{
		"id":         song.ID,
		"title":      song.Title,
		"key":        song.Key,
		"tempo":      song.Tempo,
		"capo":       song.Capo,
		"shareId":    song.ShareID,
		"visibility": song.Visibility,
		"role":       string(role),
		"updatedAt":  song.UpdatedAt.Unix(),
	}
}

func collaboratorList(collabs []store.Collaborator) []map[string]any {
	out := make([]map[string]any, 0, len(collabs))
	for _, c := range collabs {
		out = append(out, map[string]any{
			"email":     c.Email,
			"role":      c.Role,
			"invitedAt": c.CreatedAt.Unix(),
		})
	}
	return out
}

func attachmentResponse(att store.Attachment) map[string]any {
	return map[string]any{
		"id":          att.ID,
		"fileName":    att.FileName,
		"contentType": att.ContentType,
		"size":        att.Size,
		"uploadedBy":  att.UploadedBy,
		"createdAt":   att.CreatedAt.Unix(),
	}
}
