package app

import (
	"time"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/config"
	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/handlers"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/repositories"
	"github.com/clipstream/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the
// HTTP handlers.
func buildDependencies(pool db.Pool, cfg config.Config, assets *storage.S3Storage) handlers.Dependencies {
	users := repositories.NewPostgresUserRepository(pool)

	return handlers.Dependencies{
		Users: users,
		Tokens: auth.NewTokenService(
			cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
			cfg.AccessTokenTTL, cfg.RefreshTokenTTL,
			users,
		),
		Videos:    repositories.NewPostgresVideoRepository(pool),
		Comments:  repositories.NewPostgresCommentRepository(pool),
		Tweets:    repositories.NewPostgresTweetRepository(pool),
		Relations: repositories.NewPostgresRelationRepository(pool),
		Playlists: repositories.NewPostgresPlaylistRepository(pool),
		Views:     repositories.NewPostgresViewRepository(pool),
		Assets:    assets,
		Limiter:   middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute),
	}
}
