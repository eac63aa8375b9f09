package app

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/friendloop/backend/internal/auth"
	"github.com/friendloop/backend/internal/config"
	"github.com/friendloop/backend/internal/db"
	"github.com/friendloop/backend/internal/friends"
	"github.com/friendloop/backend/internal/handlers"
	"github.com/friendloop/backend/internal/middleware"
	"github.com/friendloop/backend/internal/repositories"
	"github.com/friendloop/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	sessionStore := repositories.NewPostgresSessionStore(pool)
	edgeStore := repositories.NewPostgresEdgeRepository(pool)
	friendService := friends.NewService(edgeStore, sortedIntersector{})

	var avatars handlers.AvatarStorage
	if cfg.ObjectStore.Bucket != "" {
		s3Store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, err
		}
		avatars = s3Store
	} else {
		slog.Warn("no avatar bucket configured, avatar uploads disabled")
	}

	limiter := middleware.NewIPRateLimiter(
		cfg.AuthRateLimit.Requests,
		cfg.AuthRateLimit.Window,
		cfg.AuthRateLimit.Burst,
		cfg.AuthRateLimit.TTL,
	)

	return handlers.Dependencies{
		Users:       repositories.NewPostgresUserRepository(pool),
		Sessions:    auth.NewManager(15*time.Minute, 24*time.Hour, sessionStore),
		Friends:     friendService,
		Avatars:     avatars,
		AuthLimiter: limiter,
	}, nil
}

// sortedIntersector computes mutual friend ids by sorting the smaller
// set and probing it with binary search.
type sortedIntersector struct{}

func (sortedIntersector) Intersect(_ context.Context, a, b []string) ([]string, error) {
	if len(a) > len(b) {
		a, b = b, a
	}

	sorted := make([]string, len(a))
	copy(sorted, a)
	sort.Strings(sorted)

	var out []string
	seen := make(map[string]struct{}, len(b))
	for _, id := range b {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		i := sort.SearchStrings(sorted, id)
		if i < len(sorted) && sorted[i] == id {
			out = append(out, id)
		}
	}
	return out, nil
}
