package supabase

import "time"

// User is the GoTrue auth user as returned by the token and user
// endpoints. AppMetadata carries the role claim when one is assigned.
type User struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	AppMetadata  map[string]interface{} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

// Session is the application's read-only cached copy of a GoTrue
// session. GoTrue owns the lifecycle; this struct is never mutated
// after construction.
type Session struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user"`
}

// EventType mirrors the GoTrue auth-change events the frontend SDK
// emits. The refresh loop translates token lifecycle into these.
type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// Event is delivered to session-change listeners.
type Event struct {
	Type    EventType
	Session *Session // nil on SIGNED_OUT
}
