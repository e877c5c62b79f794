package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/feedex/internal/domain"
	domitem "github.com/kailas-cloud/feedex/internal/domain/item"
	domtaste "github.com/kailas-cloud/feedex/internal/domain/taste"
)

// ItemInput is an item lifecycle create/update.
type ItemInput struct {
	ItemID    int64
	CreatorID int64
	Metadata  domitem.Metadata
	// CreatedAt defaults to now when zero.
	CreatedAt time.Time
}

// Service owns item and user lifecycles: vectorizing items on write and
// cascading deletes through feeds, interactions and the follow graph.
type Service struct {
	vectorizer   Vectorizer
	items        ItemStore
	feeds        FeedIndex
	interactions InteractionPurger
	profiles     ProfileStore
	users        UserDirectory
	follows      FollowPurger
	locks        Locker
	logger       *zap.Logger
}

// New creates a catalog service.
func New(
	vectorizer Vectorizer, items ItemStore, feeds FeedIndex, interactions InteractionPurger,
	profiles ProfileStore, users UserDirectory, follows FollowPurger, locks Locker,
) *Service {
	return &Service{
		vectorizer: vectorizer, items: items, feeds: feeds, interactions: interactions,
		profiles: profiles, users: users, follows: follows, locks: locks,
		logger: zap.NewNop(),
	}
}

// WithLogger sets the logger.
func (s *Service) WithLogger(l *zap.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// UpsertItem vectorizes the metadata and stores the item.
// Returns true if the item is new.
func (s *Service) UpsertItem(ctx context.Context, in ItemInput) (bool, error) {
	vec := s.vectorizer.Vectorize(in.Metadata)
	it, err := domitem.New(in.ItemID, in.CreatorID, vec, in.CreatedAt)
	if err != nil {
		return false, err
	}
	created, err := s.items.Upsert(ctx, &it, in.Metadata, s.vectorizer.Terms(in.Metadata))
	if err != nil {
		return false, fmt.Errorf("upsert item %d: %w", in.ItemID, err)
	}
	s.logger.Debug("item vectorized",
		zap.Int64("item_id", in.ItemID),
		zap.Int64("creator_id", in.CreatorID),
		zap.Bool("created", created),
	)
	return created, nil
}

// DeleteItem removes the item with every feed entry and interaction that
// references it. Deleting an unknown item still purges dangling references.
func (s *Service) DeleteItem(ctx context.Context, itemID int64) error {
	if itemID <= 0 {
		return domain.NewInvalidInput("item_id", "must be positive")
	}
	err := s.items.Delete(ctx, itemID)
	if err != nil && !errors.Is(err, domain.ErrItemNotFound) {
		return fmt.Errorf("delete item %d: %w", itemID, err)
	}

	users, err := s.feeds.UsersWithItem(ctx, itemID)
	if err != nil {
		return err
	}
	for _, userID := range users {
		if err := s.removeFromFeed(ctx, userID, itemID); err != nil {
			return err
		}
	}
	if err := s.feeds.ForgetItem(ctx, itemID); err != nil {
		return err
	}

	affected, err := s.interactions.DeleteForItem(ctx, itemID)
	if err != nil {
		return fmt.Errorf("delete interactions of item %d: %w", itemID, err)
	}
	s.logger.Info("item deleted",
		zap.Int64("item_id", itemID),
		zap.Int("feeds_purged", len(users)),
		zap.Int("users_with_interactions", len(affected)),
	)
	return nil
}

func (s *Service) removeFromFeed(ctx context.Context, userID, itemID int64) error {
	unlock := s.locks.Lock(userID)
	defer unlock()
	if err := s.feeds.Remove(ctx, userID, itemID); err != nil {
		return fmt.Errorf("purge item %d from feed of %d: %w", itemID, userID, err)
	}
	return nil
}

// CreateUser registers the user with a neutral profile. An existing
// profile is kept.
func (s *Service) CreateUser(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return domain.NewInvalidInput("user_id", "must be positive")
	}
	if err := s.users.Register(ctx, userID); err != nil {
		return fmt.Errorf("register user %d: %w", userID, err)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	_, err := s.profiles.Get(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrProfileNotFound) {
		return fmt.Errorf("load profile: %w", err)
	}
	neutral := domtaste.Neutral(userID, s.vectorizer.Dimension())
	if err := s.profiles.Save(ctx, &neutral); err != nil {
		return fmt.Errorf("save neutral profile: %w", err)
	}
	return nil
}

// DeleteUser removes everything the engine keeps about the user.
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return domain.NewInvalidInput("user_id", "must be positive")
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.profiles.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if err := s.interactions.DeleteForUser(ctx, userID); err != nil {
		return fmt.Errorf("delete interactions: %w", err)
	}
	if err := s.follows.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete follows: %w", err)
	}
	if err := s.feeds.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}
	if err := s.users.Remove(ctx, userID); err != nil {
		return fmt.Errorf("remove user: %w", err)
	}
	s.logger.Info("user deleted", zap.Int64("user_id", userID))
	return nil
}
