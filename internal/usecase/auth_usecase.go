package usecase

import (
	"context"
	"errors"
	"sync"

	"go-dishlens-backend/internal/authstate"
	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/apperror"
	"go-dishlens-backend/pkg/logger"
	"go-dishlens-backend/pkg/security"
	"go-dishlens-backend/pkg/supabase"
)

type authUsecase struct {
	sb          *supabase.Client
	registry    *authstate.Registry
	adminCache  *security.AdminSessionCache
	adminEmails []string

	mu       sync.Mutex
	managers map[string]*supabase.SessionManager
}

func NewAuthUsecase(sb *supabase.Client, registry *authstate.Registry, adminCache *security.AdminSessionCache, adminEmails []string) domain.AuthUsecase {
	u := &authUsecase{
		sb:          sb,
		registry:    registry,
		adminCache:  adminCache,
		adminEmails: adminEmails,
		managers:    make(map[string]*supabase.SessionManager),
	}
	// The registry owns machine lifecycles; when it evicts one (idle
	// janitor or detach) the cached manager must go with it, or its
	// refresh loop keeps the Supabase session alive forever.
	registry.OnEvict(u.dropManager)
	return u
}

func (u *authUsecase) dropManager(userID string) {
	u.mu.Lock()
	if m, ok := u.managers[userID]; ok {
		m.Close()
		delete(u.managers, userID)
	}
	u.mu.Unlock()
}

// Login authenticates against GoTrue and attaches a fresh reconciliation
// machine for the user. The machine resolves role and client record in
// the background; the login response carries the role so the frontend
// can route immediately.
func (u *authUsecase) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	session, err := u.sb.SignInWithPassword(ctx, email, password)
	if err != nil {
		var authErr *supabase.AuthError
		if errors.As(err, &authErr) && authErr.StatusCode < 500 {
			return nil, apperror.Unauthorized("Invalid email or password")
		}
		logger.Log.Error("supabase sign-in failed", "error", err)
		return nil, apperror.ServiceUnavailable("Authentication service unavailable")
	}
	if session.User == nil {
		return nil, apperror.Unauthorized("Invalid email or password")
	}

	manager := supabase.NewSessionManager(u.sb, session)

	u.mu.Lock()
	if old, ok := u.managers[session.User.ID]; ok {
		old.Close()
	}
	u.managers[session.User.ID] = manager
	u.mu.Unlock()

	u.registry.Attach(context.Background(), session.User.ID, manager)

	role := authstate.DeriveRole(session.User, u.adminEmails)
	if role == domain.RoleAdmin {
		u.adminCache.Mark(ctx, session.User.ID)
	}

	return &domain.LoginResult{
		User: &domain.User{
			ID:    session.User.ID,
			Email: session.User.Email,
		},
		Role:         role,
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresIn:    session.ExpiresIn,
	}, nil
}

// Logout revokes the session and tears down the machine. The cached
// admin flag is cleared with the session: the availability fallback
// must not outlive an explicit logout.
func (u *authUsecase) Logout(ctx context.Context, userID, accessToken string) error {
	u.mu.Lock()
	manager, ok := u.managers[userID]
	delete(u.managers, userID)
	u.mu.Unlock()

	var err error
	if ok {
		err = manager.SignOut(ctx)
		manager.Close()
	} else if accessToken != "" {
		err = u.sb.SignOut(ctx, accessToken)
	}

	u.registry.Detach(userID)
	u.adminCache.Clear(ctx, userID)

	if err != nil {
		logger.Log.Warn("sign-out revocation failed", "user_id", userID, "error", err)
	}
	// Local state is gone either way; a failed revocation is not a
	// reason to tell the user logout failed.
	return nil
}

func (u *authUsecase) ForgotPassword(ctx context.Context, email string) error {
	if err := u.sb.Recover(ctx, email); err != nil {
		var authErr *supabase.AuthError
		if errors.As(err, &authErr) && authErr.StatusCode < 500 {
			// Don't reveal whether the email exists.
			return nil
		}
		return apperror.ServiceUnavailable("Password reset unavailable")
	}
	return nil
}

func (u *authUsecase) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	m := u.registry.Get(userID)
	if m == nil {
		return nil, apperror.Unauthorized("No active session")
	}
	snap := m.Snapshot()
	if snap.User == nil {
		return nil, apperror.Unauthorized("Session expired")
	}
	return &domain.User{
		ID:    snap.User.ID,
		Email: snap.User.Email,
	}, nil
}
