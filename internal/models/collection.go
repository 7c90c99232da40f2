package models

// Names of the three upstream collections, used in errors, logs and metrics.
const (
	CollectionPosts    = "posts"
	CollectionUsers    = "users"
	CollectionComments = "comments"
)
