package oauth

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/faithcal/faithcal/internal/pkg/cache"
	"github.com/faithcal/faithcal/internal/pkg/env"
)

// Enabled reports whether Google sign-in credentials are configured.
func Enabled() bool {
	return env.GetEnv("GOOGLE_KEY", "") != "" && env.GetEnv("GOOGLE_SECRET", "") != ""
}

// CallbackURL is the redirect URL registered with provider.
func CallbackURL(provider string) string {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}
	return base + "/auth/" + provider + "/callback"
}

// Setup registers the Google provider and the redis-backed OAuth state store.
// It is safe to call multiple times; providers will just be re-registered.
func Setup() {
	goth.UseProviders(
		google.New(
			env.GetEnv("GOOGLE_KEY", ""),
			env.GetEnv("GOOGLE_SECRET", ""),
			CallbackURL("google"),
			"email", "profile",
		),
	)

	// OAuth state via Redis, using same connection as app sessions (separate DB)
	host, port := "127.0.0.1", 6379
	username, password := "", env.GetEnv("CACHE_PASSWORD", "")
	if cacheClient := cache.GetClient(); cacheClient != nil {
		opts := cacheClient.Options()
		if h, p, err := net.SplitHostPort(opts.Addr); err == nil {
			host = h
			if parsed, e := strconv.Atoi(p); e == nil {
				port = parsed
			}
		} else if opts.Addr != "" {
			host = opts.Addr
		}
		username = opts.Username
		if opts.Password != "" {
			password = opts.Password
		}
	}

	gothfiber.SessionStore = session.New(session.Config{
		Storage: redisstorage.New(redisstorage.Config{
			Host:     host,
			Port:     port,
			Username: username,
			Password: password,
			Database: 2,
			Reset:    false,
		}),
		KeyLookup:      "cookie:" + gothic.SessionName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     time.Hour,
	})
}
