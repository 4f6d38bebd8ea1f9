package export

import (
	"context"
	"fmt"

	"chordline/api/internal/songdoc"
	"chordline/api/internal/theory"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetSong(ctx context.Context, id string) (SongInfo, error)
}

// SongInfo holds the song fields needed for rendering
type SongInfo struct {
	ID        string
	Title     string
	Content   string
	Key       string
	Tempo     int
	Capo      int
	OwnerName string
}

// Service provides chord sheet export functionality
type Service struct {
	store DataStore
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	info, err := s.store.GetSong(ctx, req.SongID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	doc := songdoc.Parse(info.Content)
	key := info.Key
	if req.Transpose != 0 {
		doc = theory.TransposeDocument(doc, req.Transpose)
		if parsed, ok := theory.ParseKey(key); ok {
			key = parsed.Transpose(req.Transpose).Name()
		}
	}

	html, err := RenderSheetHTML(TemplateData{
		Title:  info.Title,
		Key:    key,
		Tempo:  info.Tempo,
		Capo:   info.Capo,
		Author: info.OwnerName,
		Rows:   buildRows(doc),
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatPDF:
		return exportPDF(html, info.Title)
	case FormatDOCX:
		return exportDOCX(html, info.Title)
	default:
		return nil, fmt.Errorf("unsupported format: %s", req.Format)
	}
}
