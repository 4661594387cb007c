package middleware

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/faithcal/faithcal/app/repository"
	"github.com/faithcal/faithcal/internal/pkg/cache"
	"github.com/faithcal/faithcal/internal/pkg/session"
	"github.com/faithcal/faithcal/internal/pkg/usercontext"
)

const premiumCacheTTL = 60 * time.Second

// PremiumCacheKey is the cache entry holding a user's premium flag. The
// billing service drops it whenever the flag changes.
func PremiumCacheKey(userID uint) string {
	return fmt.Sprintf("user_premium:%d", userID)
}

// InvalidatePremium drops the cached premium flag for userID.
func InvalidatePremium(userID uint) {
	if err := cache.Delete(PremiumCacheKey(userID)); err != nil {
		log.Warnf("[UserContext] Failed to invalidate premium flag for user %d: %v", userID, err)
	}
}

// UserContextMiddleware sets up the complete user context for every request
func UserContextMiddleware(c *fiber.Ctx) error {
	// Goth keeps its own session store on the OAuth routes.
	if strings.HasPrefix(c.Path(), "/auth/") {
		return c.Next()
	}

	store := session.GetSessionStore()
	if store == nil {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}
	sess, err := store.Get(c)
	if err != nil {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	userID, ok := sess.Get(usercontext.KeyUserID).(uint)
	if !ok || userID == 0 {
		usercontext.SetUserContext(c, usercontext.UserContext{})
		return c.Next()
	}

	username, _ := sess.Get(usercontext.KeyUsername).(string)
	isAdmin, _ := sess.Get(usercontext.KeyIsAdmin).(bool)

	usercontext.SetUserContext(c, usercontext.UserContext{
		UserID:     userID,
		Username:   username,
		IsLoggedIn: true,
		IsAdmin:    isAdmin,
		IsPremium:  lookupPremium(userID),
	})

	return c.Next()
}

// lookupPremium reads the premium flag cache-first. The database stays the
// source of truth, so a cache outage only costs a query.
func lookupPremium(userID uint) bool {
	if cache.GetClient() != nil {
		if v, err := cache.Get(PremiumCacheKey(userID)); err == nil {
			if premium, err := strconv.ParseBool(v); err == nil {
				return premium
			}
		}
	}

	premium, err := repository.GetGlobalFactory().GetUserRepository().IsPremium(userID)
	if err != nil {
		log.Warnf("[UserContext] Failed to load premium flag for user %d: %v", userID, err)
		return false
	}
	if cache.GetClient() != nil {
		_ = cache.Set(PremiumCacheKey(userID), strconv.FormatBool(premium), premiumCacheTTL)
	}
	return premium
}
