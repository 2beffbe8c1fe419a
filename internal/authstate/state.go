// Package authstate is the authoritative auth/role reconciliation state
// machine. It replaces the three overlapping resolution layers the
// frontend used to carry (session state, client-record state, unified
// state) with a single writer and read-only snapshot subscribers.
package authstate

import (
	"strings"

	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/supabase"
)

// ClientRecordStatus tracks the business-profile lookup for the
// authenticated user.
type ClientRecordStatus string

const (
	RecordLoading  ClientRecordStatus = "loading"
	RecordFound    ClientRecordStatus = "found"
	RecordNotFound ClientRecordStatus = "not-found"
	RecordError    ClientRecordStatus = "error"
)

// Resolution makes the availability-over-consistency trade-off explicit:
// Degraded means a timeout forced the terminal state and consumers may
// be acting on best-effort data (e.g. the cached admin flag).
type Resolution string

const (
	ResolutionPending  Resolution = "pending"
	ResolutionResolved Resolution = "resolved"
	ResolutionDegraded Resolution = "degraded"
)

// Snapshot is the immutable unified auth state. All boolean flags
// below the session fields are derived on every merge, never cached
// from a partial update.
type Snapshot struct {
	User    *supabase.User    `json:"user"`
	Session *supabase.Session `json:"-"`

	Loading         bool `json:"loading"`
	Initialized     bool `json:"initialized"`
	IsAuthenticated bool `json:"is_authenticated"`

	ClientID              string             `json:"client_id,omitempty"`
	Authenticating        bool               `json:"authenticating"`
	HasLinkedClientRecord bool               `json:"has_linked_client_record"`
	HasNoClientRecord     bool               `json:"has_no_client_record"`
	ClientRecordStatus    ClientRecordStatus `json:"client_record_status"`
	ErrorState            string             `json:"error_state,omitempty"`

	Role domain.Role `json:"role"`

	AuthLoadingTimeout       bool       `json:"auth_loading_timeout"`
	ClientAuthLoadingTimeout bool       `json:"client_auth_loading_timeout"`
	Resolution               Resolution `json:"resolution"`
}

// initialSnapshot is the state of a machine before its first session
// resolution settles.
func initialSnapshot() Snapshot {
	return Snapshot{
		Loading:            true,
		ClientRecordStatus: RecordLoading,
		Resolution:         ResolutionPending,
	}
}

// signedOutSnapshot is the terminal state after logout. A full session
// transition is the only thing that clears latched timeout flags.
func signedOutSnapshot() Snapshot {
	return Snapshot{
		Initialized:        true,
		ClientRecordStatus: RecordNotFound,
		Resolution:         ResolutionResolved,
	}
}

// Delta is a partial update. A zero Delta is a no-op merge (the
// derivations still re-run). Set* flags distinguish "field absent"
// from "field set to its zero value": a Delta that sets User to nil is
// an explicit de-authentication, not a missing field.
type Delta struct {
	SetUser bool
	User    *supabase.User

	SetSession bool
	Session    *supabase.Session

	SetLoading bool
	Loading    bool

	SetInitialized bool
	Initialized    bool

	SetClientID bool
	ClientID    string

	SetAuthenticating bool
	Authenticating    bool

	SetClientRecordStatus bool
	ClientRecordStatus    ClientRecordStatus

	SetErrorState bool
	ErrorState    string

	SetRole bool
	Role    domain.Role

	SetAuthLoadingTimeout bool
	AuthLoadingTimeout    bool

	SetClientAuthLoadingTimeout bool
	ClientAuthLoadingTimeout    bool

	SetResolution bool
	Resolution    Resolution
}

// reduce merges a Delta into a Snapshot and re-derives every derived
// flag from primitive fields. Invariants enforced here, not by callers:
//
//   - IsAuthenticated == (User != nil), always.
//   - HasLinkedClientRecord == (ClientRecordStatus == found && ClientID != "").
//   - HasNoClientRecord == (ClientRecordStatus == not-found).
//   - Initialized is monotonic: once true it cannot revert, no matter
//     what a late async resolution writes.
//   - Timeout flags latch: once true they stay true. Only a full
//     session transition (which replaces the snapshot wholesale rather
//     than reducing) clears them.
//   - Resolution cannot leave Degraded except via session transition.
func reduce(s Snapshot, d Delta) Snapshot {
	if d.SetUser {
		s.User = d.User
	}
	if d.SetSession {
		s.Session = d.Session
	}
	if d.SetLoading {
		s.Loading = d.Loading
	}
	if d.SetInitialized {
		s.Initialized = s.Initialized || d.Initialized
	}
	if d.SetClientID {
		s.ClientID = d.ClientID
	}
	if d.SetAuthenticating {
		s.Authenticating = d.Authenticating
	}
	if d.SetClientRecordStatus {
		s.ClientRecordStatus = d.ClientRecordStatus
	}
	if d.SetErrorState {
		s.ErrorState = d.ErrorState
	}
	if d.SetRole {
		s.Role = d.Role
	}
	if d.SetAuthLoadingTimeout {
		s.AuthLoadingTimeout = s.AuthLoadingTimeout || d.AuthLoadingTimeout
	}
	if d.SetClientAuthLoadingTimeout {
		s.ClientAuthLoadingTimeout = s.ClientAuthLoadingTimeout || d.ClientAuthLoadingTimeout
	}
	if d.SetResolution && s.Resolution != ResolutionDegraded {
		s.Resolution = d.Resolution
	}

	// Derivations re-run on every merge regardless of which fields the
	// delta touched.
	s.IsAuthenticated = s.User != nil
	s.HasLinkedClientRecord = s.ClientRecordStatus == RecordFound && s.ClientID != ""
	s.HasNoClientRecord = s.ClientRecordStatus == RecordNotFound

	return s
}

// DeriveRole matches identity metadata against known role indicators.
// The role is recomputed from the session on every resolution; nothing
// in this service stores it.
func DeriveRole(u *supabase.User, adminEmails []string) domain.Role {
	if u == nil {
		return domain.RoleNone
	}

	if raw, ok := u.AppMetadata["role"]; ok {
		if role, ok := raw.(string); ok && domain.Role(role).Valid() {
			return domain.Role(role)
		}
	}

	for _, admin := range adminEmails {
		if admin != "" && strings.EqualFold(u.Email, admin) {
			return domain.RoleAdmin
		}
	}

	// Any authenticated user without an explicit role is a customer.
	return domain.RoleCustomer
}
