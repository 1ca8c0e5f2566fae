// Command tokenmint issues access tokens for local development and smoke tests.
// Identity is owned by an upstream service in production.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	pkgAuth "github.com/angelmondragon/shopfront-backend/pkg/auth"
	"github.com/angelmondragon/shopfront-backend/pkg/auth/session"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "tokenmint"})

	_ = godotenv.Load()

	userFlag := flag.String("user", "", "user id (uuid); generated when empty")
	roleFlag := flag.String("role", string(enums.UserRoleCustomer), "role: customer|admin")
	revokeFlag := flag.String("revoke", "", "revoke the session for this jti instead of minting")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	if *revokeFlag != "" {
		if !cfg.JWT.RequireSession {
			fmt.Fprintln(os.Stderr, "-revoke needs SHOPFRONT_JWT_REQUIRE_SESSION=true")
			os.Exit(1)
		}
		sessions, closeFn := sessionManager(ctx, cfg, logg)
		defer closeFn()
		requireResource(ctx, logg, "revoke", sessions.Revoke(ctx, *revokeFlag))
		fmt.Printf("revoked jti=%s\n", *revokeFlag)
		return
	}

	userID := uuid.New()
	if *userFlag != "" {
		userID, err = uuid.Parse(*userFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -user: %v\n", err)
			os.Exit(1)
		}
	}
	role, err := enums.ParseUserRole(*roleFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	jti := session.NewAccessID()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
		JTI:    jti,
	})
	requireResource(ctx, logg, "token", err)

	if cfg.JWT.RequireSession {
		sessions, closeFn := sessionManager(ctx, cfg, logg)
		defer closeFn()
		requireResource(ctx, logg, "session", sessions.Register(ctx, jti, userID))
	}

	fmt.Printf("user_id=%s role=%s jti=%s\n%s\n", userID, role, jti, token)
}

func sessionManager(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*session.Manager, func()) {
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	sessions, err := session.NewManager(redisClient, cfg.JWT)
	requireResource(ctx, logg, "session manager", err)
	return sessions, func() { _ = redisClient.Close() }
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
