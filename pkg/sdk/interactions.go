package feedex

import (
	"context"
	"time"

	dominter "github.com/kailas-cloud/feedex/internal/domain/interaction"
	domitem "github.com/kailas-cloud/feedex/internal/domain/item"
	"github.com/kailas-cloud/feedex/internal/usecase/catalog"
	"github.com/kailas-cloud/feedex/internal/usecase/quickupdate"
)

// Like records a like and injects similar items into the user's feed.
func (c *Client) Like(ctx context.Context, userID, itemID int64) (UpdateResult, error) {
	return c.quick("like", func() (quickupdate.Result, error) {
		return c.quickSvc.Like(ctx, userID, itemID)
	})
}

// Comment records a comment; it updates the feed like a like does.
func (c *Client) Comment(ctx context.Context, userID, itemID int64) (UpdateResult, error) {
	return c.quick("comment", func() (quickupdate.Result, error) {
		return c.quickSvc.Comment(ctx, userID, itemID)
	})
}

// Unlike withdraws a like and removes the item from the feed.
func (c *Client) Unlike(ctx context.Context, userID, itemID int64) (UpdateResult, error) {
	return c.quick("unlike", func() (quickupdate.Result, error) {
		return c.quickSvc.Unlike(ctx, userID, itemID)
	})
}

// Follow records a follow and injects the creator's items.
func (c *Client) Follow(ctx context.Context, followerID, followedID int64) (UpdateResult, error) {
	return c.quick("follow", func() (quickupdate.Result, error) {
		return c.quickSvc.Follow(ctx, followerID, followedID)
	})
}

// Unfollow removes the creator's items from the follower's feed.
func (c *Client) Unfollow(ctx context.Context, followerID, followedID int64) (UpdateResult, error) {
	return c.quick("unfollow", func() (quickupdate.Result, error) {
		return c.quickSvc.Unfollow(ctx, followerID, followedID)
	})
}

// Record appends a low-value interaction (play, skip, share, ...) for the
// next batch cycle. typ is one of the configured interaction names.
func (c *Client) Record(ctx context.Context, userID, itemID int64, typ string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("record", start, err) }()

	t, err := dominter.ParseType(typ)
	if err != nil {
		return err
	}
	return c.quickSvc.Record(ctx, userID, itemID, t)
}

// Event routes a raw event by name, as the broker consumer does.
// It reports false for names feedex does not handle.
func (c *Client) Event(ctx context.Context, name string, payload []byte) (handled bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe("event", start, err) }()

	return c.eventSvc.Route(ctx, name, payload)
}

// UpsertItem vectorizes and stores an item. Returns true if it is new.
func (c *Client) UpsertItem(ctx context.Context, it Item) (created bool, err error) {
	start := time.Now()
	defer func() { c.obs.observe("upsert_item", start, err) }()

	return c.catSvc.UpsertItem(ctx, catalog.ItemInput{
		ItemID:    it.ID,
		CreatorID: it.CreatorID,
		CreatedAt: it.CreatedAt,
		Metadata: domitem.Metadata{
			BPM:         it.BPM,
			Genres:      it.Genres,
			Emotions:    it.Emotions,
			Instruments: it.Instruments,
			Kinds:       it.Kinds,
			Tags:        it.Tags,
			Title:       it.Title,
			Description: it.Description,
		},
	})
}

// DeleteItem removes an item and everything referencing it.
func (c *Client) DeleteItem(ctx context.Context, itemID int64) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete_item", start, err) }()

	return c.catSvc.DeleteItem(ctx, itemID)
}

// CreateUser registers a user with a neutral taste profile.
func (c *Client) CreateUser(ctx context.Context, userID int64) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("create_user", start, err) }()

	return c.catSvc.CreateUser(ctx, userID)
}

// DeleteUser removes everything feedex keeps about a user.
func (c *Client) DeleteUser(ctx context.Context, userID int64) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete_user", start, err) }()

	return c.catSvc.DeleteUser(ctx, userID)
}

func (c *Client) quick(op string, fn func() (quickupdate.Result, error)) (UpdateResult, error) {
	start := time.Now()
	res, err := fn()
	c.obs.observe(op, start, err)
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{
		Injected: res.Injected,
		Removed:  res.Removed,
		Nudged:   res.Nudged,
		Fallback: res.Fallback,
	}, nil
}
