package aggregate

import (
	apperrors "github.com/vaughan-dsouza/postagg/internal/errors"
	"github.com/vaughan-dsouza/postagg/internal/models"
)

// Join maps every post to a PostResult, in post order. A post whose author is
// not in users fails the join with apperrors.JoinIntegrityError. Posts without
// comments get a ReviewCount of 0.
func Join(posts []models.Post, users []models.User, comments []models.Comment) ([]models.PostResult, error) {
	authors := indexUsers(users)
	reviews := countByPost(comments)

	results := make([]models.PostResult, 0, len(posts))
	for _, post := range posts {
		author, ok := authors[post.UserID]
		if !ok {
			return nil, apperrors.JoinIntegrityError{PostID: post.ID, UserID: post.UserID}
		}
		results = append(results, models.PostResult{
			ID:          post.ID,
			Title:       post.Title,
			AuthorName:  author.Name,
			ReviewCount: reviews[post.ID],
		})
	}
	return results, nil
}

// indexUsers keys users by ID; on duplicate IDs the last one wins.
func indexUsers(users []models.User) map[int64]models.User {
	index := make(map[int64]models.User, len(users))
	for _, u := range users {
		index[u.ID] = u
	}
	return index
}

func countByPost(comments []models.Comment) map[int64]int64 {
	counts := make(map[int64]int64)
	for _, c := range comments {
		counts[c.PostID]++
	}
	return counts
}
