package app

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"chordline/api/internal/config"
	"chordline/api/internal/revisions"
	"chordline/api/internal/search"
	"chordline/api/internal/store"
)

// fakeStore is an in-memory dataStore for service and handler tests.
type fakeStore struct {
	mu          sync.Mutex
	users       map[string]store.User
	songs       map[string]store.Song
	collabs     map[string]map[string]store.Collaborator
	attachments map[string]store.Attachment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[string]store.User{},
		songs:       map[string]store.Song{},
		collabs:     map[string]map[string]store.Collaborator{},
		attachments: map[string]store.Attachment{},
	}
}

func (f *fakeStore) addUser(u store.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) CreateSong(_ context.Context, song store.Song) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.songs[song.ID] = song
	return nil
}

func (f *fakeStore) GetSong(_ context.Context, id string) (store.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	song, ok := f.songs[id]
	if !ok {
		return store.Song{}, sql.ErrNoRows
	}
	return song, nil
}

func (f *fakeStore) GetSongByShareID(_ context.Context, shareID string) (store.Song, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, song := range f.songs {
		if song.ShareID == shareID {
			return song, nil
		}
	}
	return store.Song{}, sql.ErrNoRows
}

func (f *fakeStore) ListSongs(_ context.Context, userID, email string) ([]store.SongListItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []store.SongListItem
	for _, song := range f.songs {
		role := ""
		if song.OwnerID == userID {
			role = "owner"
		} else if c, ok := f.collabs[song.ID][strings.ToLower(email)]; ok {
			role = c.Role
		} else {
			continue
		}
		items = append(items, store.SongListItem{
			ID: song.ID, OwnerID: song.OwnerID, Title: song.Title, Key: song.Key,
			Tempo: song.Tempo, Capo: song.Capo, ShareID: song.ShareID,
			Visibility: song.Visibility, Role: role, UpdatedAt: song.UpdatedAt,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (f *fakeStore) UpdateSongContent(_ context.Context, id, content, key, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	song, ok := f.songs[id]
	if !ok {
		return sql.ErrNoRows
	}
	song.Content = content
	song.Key = key
	song.UpdatedAt = time.Now()
	f.songs[id] = song
	return nil
}

func (f *fakeStore) UpdateSongMeta(_ context.Context, id, title string, tempo, capo int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	song, ok := f.songs[id]
	if !ok {
		return sql.ErrNoRows
	}
	song.Title = title
	song.Tempo = tempo
	song.Capo = capo
	f.songs[id] = song
	return nil
}

func (f *fakeStore) UpdateSongVisibility(_ context.Context, id, visibility string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	song, ok := f.songs[id]
	if !ok {
		return sql.ErrNoRows
	}
	song.Visibility = visibility
	f.songs[id] = song
	return nil
}

func (f *fakeStore) DeleteSong(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.songs, id)
	delete(f.collabs, id)
	return nil
}

func (f *fakeStore) UpsertCollaborator(_ context.Context, c store.Collaborator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.collabs[c.SongID] == nil {
		f.collabs[c.SongID] = map[string]store.Collaborator{}
	}
	c.CreatedAt = time.Now()
	f.collabs[c.SongID][c.Email] = c
	return nil
}

func (f *fakeStore) RemoveCollaborator(_ context.Context, songID, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collabs[songID], email)
	return nil
}

func (f *fakeStore) ListCollaborators(_ context.Context, songID string) ([]store.Collaborator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Collaborator
	for _, c := range f.collabs[songID] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (f *fakeStore) CollaboratorRoles(_ context.Context, songID string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	roles := map[string]string{}
	for email, c := range f.collabs[songID] {
		roles[email] = c.Role
	}
	return roles, nil
}

func (f *fakeStore) CreateAttachment(_ context.Context, att store.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachments[att.ID] = att
	return nil
}

func (f *fakeStore) ListAttachments(_ context.Context, songID string) ([]store.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Attachment
	for _, att := range f.attachments {
		if att.SongID == songID {
			out = append(out, att)
		}
	}
	return out, nil
}

func (f *fakeStore) GetAttachment(_ context.Context, id string) (store.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	att, ok := f.attachments[id]
	if !ok {
		return store.Attachment{}, sql.ErrNoRows
	}
	return att, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

// fakeSessions keeps refresh sessions in a map.
type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]store.User
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]store.User{}}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash string, user store.User, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[tokenHash] = user
	return nil
}

func (f *fakeSessions) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.sessions[tokenHash]
	if !ok {
		return store.User{}, fmt.Errorf("refresh session not found")
	}
	return user, nil
}

func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, tokenHash)
	return nil
}

func (f *fakeSessions) Ping(context.Context) error { return nil }

// fakeRevisions records commits in order per song.
type fakeRevisions struct {
	mu      sync.Mutex
	commits map[string][]fakeCommit
	seq     int
}

type fakeCommit struct {
	info revisions.CommitInfo
	snap revisions.Snapshot
}

func newFakeRevisions() *fakeRevisions {
	return &fakeRevisions{commits: map[string][]fakeCommit{}}
}

func (f *fakeRevisions) EnsureSongRepo(songID string, initial revisions.Snapshot, author string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commits[songID]) > 0 {
		return nil
	}
	f.seq++
	f.commits[songID] = []fakeCommit{{
		info: revisions.CommitInfo{Hash: fmt.Sprintf("c%04d", f.seq), Message: "Create song", Author: author, CreatedAt: time.Now()},
		snap: initial,
	}}
	return nil
}

func (f *fakeRevisions) Commit(songID string, snap revisions.Snapshot, author, message string) (revisions.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	info := revisions.CommitInfo{Hash: fmt.Sprintf("c%04d", f.seq), Message: message, Author: author, CreatedAt: time.Now()}
	f.commits[songID] = append(f.commits[songID], fakeCommit{info: info, snap: snap})
	return info, nil
}

func (f *fakeRevisions) GetByHash(songID, hash string) (revisions.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.commits[songID] {
		if c.info.Hash == hash {
			return c.snap, nil
		}
	}
	return revisions.Snapshot{}, fmt.Errorf("commit %s not found", hash)
}

func (f *fakeRevisions) History(songID string, limit int) ([]revisions.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	commits := f.commits[songID]
	out := make([]revisions.CommitInfo, 0, len(commits))
	for i := len(commits) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, commits[i].info)
	}
	return out, nil
}

func (f *fakeRevisions) Delete(songID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.commits, songID)
	return nil
}

// fakeSearch records index traffic and serves canned results.
type fakeSearch struct {
	mu      sync.Mutex
	indexed map[string]search.SongRecord
	deleted []string
}

func newFakeSearch() *fakeSearch {
	return &fakeSearch{indexed: map[string]search.SongRecord{}}
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp := search.Response{Results: []search.Result{}, Query: q.Text}
	for _, rec := range f.indexed {
		if !strings.Contains(strings.ToLower(rec.Title+" "+rec.Lyrics), strings.ToLower(q.Text)) {
			continue
		}
		visible := false
		for _, a := range rec.Access {
			if a == q.UserID || strings.EqualFold(a, q.Email) {
				visible = true
			}
		}
		if visible {
			resp.Results = append(resp.Results, search.Result{ID: rec.ID, Title: rec.Title, Key: rec.Key})
		}
	}
	resp.Total = len(resp.Results)
	return resp
}

func (f *fakeSearch) IndexSong(rec search.SongRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed[rec.ID] = rec
}

func (f *fakeSearch) DeleteSong(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.indexed, id)
	f.deleted = append(f.deleted, id)
}

func newTestService(fs *fakeStore) (*Service, *fakeRevisions, *fakeSearch) {
	cfg := config.Config{
		JWTSecret:    "test-secret",
		AccessTTL:    time.Hour,
		RefreshTTL:   24 * time.Hour,
		CORSOrigin:   "http://localhost:3000",
		SaveDebounce: 25 * time.Millisecond,
	}
	revs := newFakeRevisions()
	idx := newFakeSearch()
	svc := New(cfg, fs, Deps{
		Sessions:  newFakeSessions(),
		Revisions: revs,
		Search:    idx,
	})
	return svc, revs, idx
}

func testSession(userID, name, email string) Session {
	return Session{UserID: userID, UserName: name, Email: email, ExpiresAt: time.Now().Add(time.Hour)}
}
