package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, is_email_verified, verification_token)
		VALUES ($1, $2, LOWER($3), $4, $5, $6)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, user.IsEmailVerified, user.VerificationToken)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, is_email_verified
		FROM users WHERE email = LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, is_email_verified
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.IsEmailVerified)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW()
		WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return nil
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token='', verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at)
		VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets
		WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateSong(ctx context.Context, song Song) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO songs (id, owner_id, title, content, key, tempo, capo, share_id, visibility)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, song.ID, song.OwnerID, song.Title, song.Content, song.Key, song.Tempo, song.Capo, song.ShareID, song.Visibility)
	if err != nil {
		return fmt.Errorf("insert song: %w", err)
	}
	return nil
}

const songColumns = `id, owner_id, title, content, key, tempo, capo, share_id, visibility, created_at, updated_at`

func scanSong(row *sql.Row) (Song, error) {
	var song Song
	err := row.Scan(&song.ID, &song.OwnerID, &song.Title, &song.Content, &song.Key,
		&song.Tempo, &song.Capo, &song.ShareID, &song.Visibility, &song.CreatedAt, &song.UpdatedAt)
	if err != nil {
		return Song{}, err
	}
	return song, nil
}

func (s *PostgresStore) GetSong(ctx context.Context, songID string) (Song, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+songColumns+` FROM songs WHERE id=$1`, songID)
	return scanSong(row)
}

func (s *PostgresStore) GetSongByShareID(ctx context.Context, shareID string) (Song, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+songColumns+` FROM songs WHERE share_id=$1`, shareID)
	return scanSong(row)
}

// ListSongs returns songs the viewer owns plus songs shared with the
// viewer's email, newest first. Role is resolved per row.
func (s *PostgresStore) ListSongs(ctx context.Context, userID, email string) ([]SongListItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.owner_id, s.title, s.key, s.tempo, s.capo, s.share_id, s.visibility, s.updated_at,
			CASE WHEN s.owner_id=$1 THEN 'owner' ELSE c.role END AS role
		FROM songs s
		LEFT JOIN song_collaborators c ON c.song_id = s.id AND c.email = LOWER($2)
		WHERE s.owner_id=$1 OR c.email IS NOT NULL
		ORDER BY s.updated_at DESC
	`, userID, email)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	defer rows.Close()

	items := make([]SongListItem, 0)
	for rows.Next() {
		var item SongListItem
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Title, &item.Key, &item.Tempo,
			&item.Capo, &item.ShareID, &item.Visibility, &item.UpdatedAt, &item.Role); err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate songs: %w", err)
	}
	return items, nil
}

// UpdateSongContent writes the serialized document plus its derived
// key and flattened search text in one statement.
func (s *PostgresStore) UpdateSongContent(ctx context.Context, songID, content, key, searchText string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE songs SET content=$2, key=$3, search_text=$4, updated_at=NOW() WHERE id=$1
	`, songID, content, key, searchText)
	if err != nil {
		return fmt.Errorf("update song content: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSongMeta(ctx context.Context, songID, title string, tempo, capo int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE songs SET title=$2, tempo=$3, capo=$4, updated_at=NOW() WHERE id=$1
	`, songID, title, tempo, capo)
	if err != nil {
		return fmt.Errorf("update song meta: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateSongVisibility(ctx context.Context, songID, visibility string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE songs SET visibility=$2, updated_at=NOW() WHERE id=$1
	`, songID, visibility)
	if err != nil {
		return fmt.Errorf("update song visibility: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSong(ctx context.Context, songID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM songs WHERE id=$1`, songID)
	if err != nil {
		return fmt.Errorf("delete song: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertCollaborator(ctx context.Context, collab Collaborator) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO song_collaborators (song_id, email, role, invited_by)
		VALUES ($1, LOWER($2), $3, $4)
		ON CONFLICT (song_id, email) DO UPDATE SET role=EXCLUDED.role
	`, collab.SongID, collab.Email, collab.Role, collab.InvitedBy)
	if err != nil {
		return fmt.Errorf("upsert collaborator: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveCollaborator(ctx context.Context, songID, email string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM song_collaborators WHERE song_id=$1 AND email=LOWER($2)
	`, songID, email)
	if err != nil {
		return fmt.Errorf("remove collaborator: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCollaborators(ctx context.Context, songID string) ([]Collaborator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT song_id, email, role, invited_by, created_at
		FROM song_collaborators WHERE song_id=$1 ORDER BY created_at
	`, songID)
	if err != nil {
		return nil, fmt.Errorf("list collaborators: %w", err)
	}
	defer rows.Close()

	items := make([]Collaborator, 0)
	for rows.Next() {
		var item Collaborator
		if err := rows.Scan(&item.SongID, &item.Email, &item.Role, &item.InvitedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan collaborator: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collaborators: %w", err)
	}
	return items, nil
}

// CollaboratorRoles returns the song's share grants as an email->role map
// for access checks.
func (s *PostgresStore) CollaboratorRoles(ctx context.Context, songID string) (map[string]string, error) {
	collabs, err := s.ListCollaborators(ctx, songID)
	if err != nil {
		return nil, err
	}
	roles := make(map[string]string, len(collabs))
	for _, c := range collabs {
		roles[strings.ToLower(c.Email)] = c.Role
	}
	return roles, nil
}

func (s *PostgresStore) CreateAttachment(ctx context.Context, att Attachment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO song_attachments (id, song_id, object_key, file_name, content_type, size_bytes, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, att.ID, att.SongID, att.ObjectKey, att.FileName, att.ContentType, att.Size, att.UploadedBy)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAttachments(ctx context.Context, songID string) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, song_id, object_key, file_name, content_type, size_bytes, uploaded_by, created_at
		FROM song_attachments WHERE song_id=$1 ORDER BY created_at DESC
	`, songID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	items := make([]Attachment, 0)
	for rows.Next() {
		var item Attachment
		if err := rows.Scan(&item.ID, &item.SongID, &item.ObjectKey, &item.FileName,
			&item.ContentType, &item.Size, &item.UploadedBy, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetAttachment(ctx context.Context, attachmentID string) (Attachment, error) {
	var item Attachment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, song_id, object_key, file_name, content_type, size_bytes, uploaded_by, created_at
		FROM song_attachments WHERE id=$1
	`, attachmentID).Scan(&item.ID, &item.SongID, &item.ObjectKey, &item.FileName,
		&item.ContentType, &item.Size, &item.UploadedBy, &item.CreatedAt)
	if err != nil {
		return Attachment{}, err
	}
	return item, nil
}

// IsNotFound reports whether err is the row-missing sentinel, so callers
// can map it to a 404 without importing database/sql.
// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
