package models

// Comment belongs to exactly one post via PostID.
type Comment struct {
	ID     int64  `db:"id" json:"id,omitempty"`
	PostID int64  `db:"post_id" json:"postId"`
	Name   string `db:"name" json:"name,omitempty"`
	Email  string `db:"email" json:"email,omitempty"`
	Body   string `db:"body" json:"body,omitempty"`
}
