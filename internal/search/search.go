package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Key     string `json:"key,omitempty"`
}

// Query describes a search request. UserID and Email together identify
// the viewer; only songs they own or that are shared with their address
// may surface.
type Query struct {
	Text   string
	UserID string
	Email  string
	Limit  int
	Offset int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// SongRecord is the data pushed into the index for one song. Access
// lists the owner ID plus every collaborator email so queries can be
// scoped to the viewer.
type SongRecord struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Lyrics string   `json:"lyrics"`
	Chords string   `json:"chords"`
	Key    string   `json:"key"`
	Access []string `json:"access"`
}
