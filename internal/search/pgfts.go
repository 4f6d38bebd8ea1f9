package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs plainto_tsquery over the songs the viewer can read, with
// ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const where = `
		s.fts @@ plainto_tsquery('english', $1)
		AND (s.owner_id = $2 OR EXISTS (
			SELECT 1 FROM song_collaborators c
			WHERE c.song_id = s.id AND c.email = LOWER($3)
		))`

	ctx := context.Background()

	var total int
	countSQL := `SELECT count(*) FROM songs s WHERE ` + where
	if err := p.db.QueryRowContext(ctx, countSQL, q.Text, q.UserID, q.Email).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`
		SELECT s.id, s.title, s.key,
			ts_headline('english', s.search_text, plainto_tsquery('english', $1), 'MaxFragments=1,MaxWords=30') AS snippet
		FROM songs s
		WHERE %s
		ORDER BY ts_rank(s.fts, plainto_tsquery('english', $1)) DESC
		LIMIT %d OFFSET %d`, where, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, q.Text, q.UserID, q.Email)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Key, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every song in indexable form for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]SongRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT s.id, s.title, s.key, s.search_text, s.owner_id,
			COALESCE(array_to_string(array_agg(c.email) FILTER (WHERE c.email IS NOT NULL), ','), '')
		FROM songs s
		LEFT JOIN song_collaborators c ON c.song_id = s.id
		GROUP BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("load songs: %w", err)
	}
	defer rows.Close()

	records := make([]SongRecord, 0)
	for rows.Next() {
		var rec SongRecord
		var ownerID, emails string
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Key, &rec.Lyrics, &ownerID, &emails); err != nil {
			return nil, fmt.Errorf("scan song: %w", err)
		}
		rec.Access = append(rec.Access, ownerID)
		for _, email := range strings.Split(emails, ",") {
			if email != "" {
				rec.Access = append(rec.Access, email)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate songs: %w", err)
	}
	return records, nil
}
