package models

// Post is a single upstream post. Posts are identified by ID and carry the
// ID of their author.
type Post struct {
	ID     int64  `db:"id" json:"id"`
	UserID int64  `db:"user_id" json:"userId"`
	Title  string `db:"title" json:"title"`
	Body   string `db:"body" json:"body,omitempty"`
}

// PostResult is the denormalized view returned to clients.
type PostResult struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	AuthorName  string `json:"authorName"`
	ReviewCount int64  `json:"reviewCount"`
}
