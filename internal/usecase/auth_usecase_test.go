package usecase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-dishlens-backend/internal/authstate"
	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/security"
	"go-dishlens-backend/pkg/supabase"
)

type stubFetcher struct{}

func (stubFetcher) GetByUserID(ctx context.Context, userID string) (*domain.Client, error) {
	return nil, nil
}

// fakeGoTrue serves just enough of the auth API for a password login
// and the health probe the reconciliation machine issues on start.
func fakeGoTrue(t *testing.T, userID string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "access-" + userID,
			"refresh_token": "refresh-" + userID,
			"expires_in":    3600,
			"user": map[string]interface{}{
				"id":    userID,
				"email": userID + "@example.com",
			},
		})
	})
	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/auth/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (u *authUsecase) hasManager(userID string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.managers[userID]
	return ok
}

func TestRegistryEvictionDropsSessionManager(t *testing.T) {
	srv := fakeGoTrue(t, "u1")
	sb := supabase.NewClient(srv.URL, "anon-key")
	registry := authstate.NewRegistry(authstate.Config{}, stubFetcher{},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	uc := NewAuthUsecase(sb, registry, security.NewAdminSessionCache(time.Minute), nil).(*authUsecase)

	res, err := uc.Login(context.Background(), "u1@example.com", "secret")
	require.NoError(t, err)
	require.Equal(t, "u1", res.User.ID)
	require.True(t, uc.hasManager("u1"))
	require.NotNil(t, registry.Get("u1"))

	// The idle janitor tears sessions down through Detach; the cached
	// manager and its refresh loop must not outlive the machine.
	registry.Detach("u1")

	assert.Nil(t, registry.Get("u1"))
	assert.False(t, uc.hasManager("u1"))
}

func TestLogoutDropsSessionManager(t *testing.T) {
	srv := fakeGoTrue(t, "u2")
	sb := supabase.NewClient(srv.URL, "anon-key")
	registry := authstate.NewRegistry(authstate.Config{}, stubFetcher{},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	uc := NewAuthUsecase(sb, registry, security.NewAdminSessionCache(time.Minute), nil).(*authUsecase)

	_, err := uc.Login(context.Background(), "u2@example.com", "secret")
	require.NoError(t, err)

	require.NoError(t, uc.Logout(context.Background(), "u2", ""))

	assert.Nil(t, registry.Get("u2"))
	assert.False(t, uc.hasManager("u2"))
}
