package follow

import (
	"time"

	"github.com/kailas-cloud/feedex/internal/domain"
)

// Follow links a follower to a followed creator.
type Follow struct {
	FollowerID int64
	FollowedID int64
	CreatedAt  time.Time
}

// New validates the pair.
func New(followerID, followedID int64) (Follow, error) {
	if followerID <= 0 {
		return Follow{}, domain.NewInvalidInput("user_id", "is required")
	}
	if followedID <= 0 {
		return Follow{}, domain.NewInvalidInput("followed_user_id", "is required")
	}
	if followerID == followedID {
		return Follow{}, domain.NewInvalidInput("followed_user_id", "must differ from user_id")
	}
	return Follow{FollowerID: followerID, FollowedID: followedID, CreatedAt: time.Now().UTC()}, nil
}
