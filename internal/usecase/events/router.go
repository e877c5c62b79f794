// Package events routes named domain events to the engine. Both the broker
// consumer and the HTTP test hook deliver through Router.
package events

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/feedex/internal/domain"
	dominter "github.com/kailas-cloud/feedex/internal/domain/interaction"
	"github.com/kailas-cloud/feedex/internal/metrics"
	"github.com/kailas-cloud/feedex/internal/usecase/catalog"
	"github.com/kailas-cloud/feedex/internal/usecase/quickupdate"
)

// Routing keys.
const (
	InteractionLike       = "user.interaction.like"
	InteractionComment    = "user.interaction.comment"
	InteractionUnlike     = "user.interaction.unlike"
	InteractionFollow     = "user.interaction.follow"
	InteractionUnfollow   = "user.interaction.unfollow"
	InteractionDislike    = "user.interaction.dislike"
	InteractionPlay       = "user.interaction.play"
	InteractionSkip       = "user.interaction.skip"
	InteractionShare      = "user.interaction.share"
	InteractionAddToBoard = "user.interaction.add_to_board"
	SampleCreated         = "sample.lifecycle.created"
	SampleUpdated         = "sample.lifecycle.updated"
	SampleDeleted         = "sample.lifecycle.deleted"
	UserCreated           = "user.lifecycle.created"
	UserDeleted           = "user.lifecycle.deleted"
)

var aliases = map[string]string{
	"like":     InteractionLike,
	"unlike":   InteractionUnlike,
	"follow":   InteractionFollow,
	"unfollow": InteractionUnfollow,
}

// recorded maps low/medium-value interactions to the type appended for the
// batch path. They never touch the feed synchronously.
var recorded = map[string]dominter.Type{
	InteractionDislike:    dominter.Dislike,
	InteractionPlay:       dominter.Play,
	InteractionSkip:       dominter.Skip,
	InteractionShare:      dominter.Share,
	InteractionAddToBoard: dominter.AddToBoard,
}

type handler func(ctx context.Context, payload []byte) error

// Router dispatches events by name.
type Router struct {
	quick    QuickUpdater
	catalog  Catalog
	validate *validator.Validate
	handlers map[string]handler
	logger   *zap.Logger
}

// New creates a Router.
func New(quick QuickUpdater, cat Catalog) *Router {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	r := &Router{
		quick:    quick,
		catalog:  cat,
		validate: v,
		logger:   zap.NewNop(),
	}
	r.handlers = map[string]handler{
		InteractionLike:     r.interaction(quick.Like),
		InteractionComment:  r.interaction(quick.Comment),
		InteractionUnlike:   r.interaction(quick.Unlike),
		InteractionFollow:   r.follow(false),
		InteractionUnfollow: r.follow(true),
		SampleCreated:       r.upsertItem,
		SampleUpdated:       r.upsertItem,
		SampleDeleted:       r.deleteItem,
		UserCreated:         r.user(cat.CreateUser),
		UserDeleted:         r.user(cat.DeleteUser),
	}
	for name, typ := range recorded {
		r.handlers[name] = r.record(typ)
	}
	return r
}

// WithLogger sets the logger.
func (r *Router) WithLogger(l *zap.Logger) *Router {
	if l != nil {
		r.logger = l
	}
	return r
}

// Canonical resolves short aliases to routing keys.
func Canonical(name string) string {
	if full, ok := aliases[name]; ok {
		return full
	}
	return name
}

// Known reports whether name has a route.
func (r *Router) Known(name string) bool {
	_, ok := r.handlers[Canonical(name)]
	return ok
}

// Route delivers one event. Unknown names are logged and ignored: the
// returned bool is false and the error nil. Malformed payloads return an
// error wrapping domain.ErrInvalidInput.
func (r *Router) Route(ctx context.Context, name string, payload []byte) (bool, error) {
	name = Canonical(name)
	h, ok := r.handlers[name]
	if !ok {
		r.logger.Info("unhandled event ignored", zap.String("event", name))
		metrics.EventsConsumedTotal.WithLabelValues("unknown", "ignored").Inc()
		return false, nil
	}

	start := time.Now()
	err := h(ctx, payload)
	metrics.EventsConsumedTotal.WithLabelValues(name, metrics.Outcome(err)).Inc()
	if err != nil {
		r.logger.Warn("event failed",
			zap.String("event", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return true, fmt.Errorf("route %s: %w", name, err)
	}
	r.logger.Debug("event routed", zap.String("event", name), zap.Duration("duration", time.Since(start)))
	return true, nil
}

// RouteEnvelope decodes {event_name, payload} and routes it.
func (r *Router) RouteEnvelope(ctx context.Context, data []byte) (bool, error) {
	var env Envelope
	if err := r.decode(data, &env); err != nil {
		return false, err
	}
	if err := r.check(&env); err != nil {
		return false, err
	}
	return r.Route(ctx, env.EventName, env.Payload)
}

func (r *Router) decode(payload []byte, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("%w: malformed payload: %s", domain.ErrInvalidInput, err.Error())
	}
	return nil
}

func (r *Router) check(v any) error {
	if err := r.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domain.NewInvalidInput(fe.Field(), "failed "+fe.Tag())
		}
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, err.Error())
	}
	return nil
}

func (r *Router) interaction(
	fn func(ctx context.Context, userID, itemID int64) (quickupdate.Result, error),
) handler {
	return func(ctx context.Context, payload []byte) error {
		var p interactionPayload
		if err := r.decode(payload, &p); err != nil {
			return err
		}
		p.resolve()
		if err := r.check(&p); err != nil {
			return err
		}
		_, err := fn(ctx, int64(p.UserID), int64(p.ItemID))
		return err
	}
}

func (r *Router) record(typ dominter.Type) handler {
	return func(ctx context.Context, payload []byte) error {
		var p interactionPayload
		if err := r.decode(payload, &p); err != nil {
			return err
		}
		p.resolve()
		if err := r.check(&p); err != nil {
			return err
		}
		return r.quick.Record(ctx, int64(p.UserID), int64(p.ItemID), typ)
	}
}

func (r *Router) follow(unfollow bool) handler {
	return func(ctx context.Context, payload []byte) error {
		var p followPayload
		if err := r.decode(payload, &p); err != nil {
			return err
		}
		p.TargetID = p.FollowedUserID
		if unfollow && p.UnfollowedUserID != 0 {
			p.TargetID = p.UnfollowedUserID
		}
		if err := r.check(&p); err != nil {
			return err
		}
		if p.TargetID <= 0 {
			field := "followed_user_id"
			if unfollow {
				field = "unfollowed_user_id"
			}
			return domain.NewInvalidInput(field, "is required")
		}
		var err error
		if unfollow {
			_, err = r.quick.Unfollow(ctx, int64(p.UserID), int64(p.TargetID))
		} else {
			_, err = r.quick.Follow(ctx, int64(p.UserID), int64(p.TargetID))
		}
		return err
	}
}

func (r *Router) upsertItem(ctx context.Context, payload []byte) error {
	var p itemPayload
	if err := r.decode(payload, &p); err != nil {
		return err
	}
	p.resolve()
	if err := r.check(&p); err != nil {
		return err
	}
	in := catalog.ItemInput{
		ItemID:    int64(p.ItemID),
		CreatorID: int64(p.CreatorID),
		Metadata:  p.Metadata.toDomain(),
	}
	if p.CreatedAt != nil {
		in.CreatedAt = p.CreatedAt.UTC()
	}
	_, err := r.catalog.UpsertItem(ctx, in)
	return err
}

func (r *Router) deleteItem(ctx context.Context, payload []byte) error {
	var p itemPayload
	if err := r.decode(payload, &p); err != nil {
		return err
	}
	p.resolve()
	if err := r.check(&p); err != nil {
		return err
	}
	return r.catalog.DeleteItem(ctx, int64(p.ItemID))
}

func (r *Router) user(fn func(ctx context.Context, userID int64) error) handler {
	return func(ctx context.Context, payload []byte) error {
		var p userPayload
		if err := r.decode(payload, &p); err != nil {
			return err
		}
		if err := r.check(&p); err != nil {
			return err
		}
		return fn(ctx, int64(p.UserID))
	}
}
