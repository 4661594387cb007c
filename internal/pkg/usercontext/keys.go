package usercontext

// Shared Locals/session keys used across controllers and middlewares
const (
	AuthKey          = "authenticated"
	KeyUserID        = "user_id"
	KeyUsername      = "username"
	KeyIsAdmin       = "isAdmin"
	KeyIsPremium     = "isPremium"
	KeyFromProtected = "from_protected"
	KeyContext       = "USER_CONTEXT"
)
