package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Song holds a chord sheet and its playback metadata. Content is the
// serialized line array; Key is the last detected or pinned key name.
type Song struct {
	ID         string
	OwnerID    string
	Title      string
	Content    string
	Key        string
	Tempo      int
	Capo       int
	ShareID    string
	Visibility string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Collaborator grants a role on one song to an email address. The
// grant works even before the invitee has an account.
type Collaborator struct {
	SongID    string
	Email     string
	Role      string
	InvitedBy string
	CreatedAt time.Time
}

// SongListItem is the list-view projection: no content payload, but
// the viewer's effective role resolved against owner and collaborators.
type SongListItem struct {
	ID         string
	OwnerID    string
	Title      string
	Key        string
	Tempo      int
	Capo       int
	ShareID    string
	Visibility string
	Role       string
	UpdatedAt  time.Time
}

type Attachment struct {
	ID          string
	SongID      string
	ObjectKey   string
	FileName    string
	ContentType string
	Size        int64
	UploadedBy  string
	CreatedAt   time.Time
}
