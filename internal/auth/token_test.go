package auth_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expel-io/workbench-go/internal/auth"
)

func TestToken_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		token    *auth.Token
		expected bool
	}{
		{
			name:     "nil token",
			token:    nil,
			expected: false,
		},
		{
			name:     "empty access token",
			token:    &auth.Token{},
			expected: false,
		},
		{
			name:     "token without expiry",
			token:    &auth.Token{AccessToken: "key"},
			expected: true,
		},
		{
			name:     "token with future expiry",
			token:    &auth.Token{AccessToken: "key", ExpiresAt: time.Now().Add(time.Hour)},
			expected: true,
		},
		{
			name:     "expired token",
			token:    &auth.Token{AccessToken: "key", ExpiresAt: time.Now().Add(-time.Hour)},
			expected: false,
		},
		{
			name:     "token expiring within buffer",
			token:    &auth.Token{AccessToken: "key", ExpiresAt: time.Now().Add(15 * time.Second)},
			expected: false,
		},
		{
			name:     "token expiring just outside buffer",
			token:    &auth.Token{AccessToken: "key", ExpiresAt: time.Now().Add(45 * time.Second)},
			expected: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.token.Valid())
		})
	}
}

func TestTokenStore(t *testing.T) {
	t.Parallel()

	store := auth.NewTokenStore()
	assert.Nil(t, store.Get())

	token := &auth.Token{AccessToken: "key", TokenType: "bearer"}
	store.Set(token)

	got := store.Get()
	require.NotNil(t, got)
	assert.Equal(t, "key", got.AccessToken)

	store.Clear()
	assert.Nil(t, store.Get())
}

func TestStaticTokenManager(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	manager := auth.NewStaticTokenManager("api-key")

	token, err := manager.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "api-key", token)

	err = manager.RefreshToken(ctx)
	require.ErrorIs(t, err, auth.ErrStaticTokenCannotRefresh)

	manager.SetToken("other-key", time.Time{})

	token, err = manager.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "other-key", token)
}

func TestStaticTokenManager_EmptyKey(t *testing.T) {
	t.Parallel()

	manager := auth.NewStaticTokenManager("")

	_, err := manager.GetToken(context.Background())
	require.ErrorIs(t, err, auth.ErrNoToken)
}

func TestLoginTokenManager_ExchangesOnce(t *testing.T) {
	t.Parallel()

	var exchanges int32

	manager := auth.NewLoginTokenManager(func(context.Context) (*auth.Token, error) {
		atomic.AddInt32(&exchanges, 1)

		return &auth.Token{
			AccessToken: "session-token",
			ExpiresAt:   time.Now().Add(time.Hour),
		}, nil
	})

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		token, err := manager.GetToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, "session-token", token)
	}

	assert.EqualValues(t, 1, atomic.LoadInt32(&exchanges))
}

func TestLoginTokenManager_ReExchangesExpiredToken(t *testing.T) {
	t.Parallel()

	var exchanges int32

	manager := auth.NewLoginTokenManager(func(context.Context) (*auth.Token, error) {
		n := atomic.AddInt32(&exchanges, 1)
		if n == 1 {
			// Already inside the expiry buffer.
			return &auth.Token{AccessToken: "stale", ExpiresAt: time.Now().Add(time.Second)}, nil
		}

		return &auth.Token{AccessToken: "fresh", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})

	ctx := context.Background()

	token, err := manager.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stale", token)

	token, err = manager.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh", token)
	assert.EqualValues(t, 2, atomic.LoadInt32(&exchanges))
}

func TestLoginTokenManager_LoginFailureSurfaces(t *testing.T) {
	t.Parallel()

	manager := auth.NewLoginTokenManager(func(context.Context) (*auth.Token, error) {
		return nil, assert.AnError
	})

	_, err := manager.GetToken(context.Background())
	require.ErrorIs(t, err, assert.AnError)
}

func TestLoginTokenManager_DefaultLifetimeApplied(t *testing.T) {
	t.Parallel()

	manager := auth.NewLoginTokenManager(func(context.Context) (*auth.Token, error) {
		return &auth.Token{AccessToken: "no-expiry"}, nil
	})

	ctx := context.Background()

	token, err := manager.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "no-expiry", token)

	// A token without expiry gets a default lifetime rather than being
	// re-exchanged on every call.
	token, err = manager.GetToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "no-expiry", token)
}

func TestLoginTokenManager_ConcurrentCallersShareOneExchange(t *testing.T) {
	t.Parallel()

	var exchanges int32

	manager := auth.NewLoginTokenManager(func(context.Context) (*auth.Token, error) {
		atomic.AddInt32(&exchanges, 1)
		time.Sleep(10 * time.Millisecond)

		return &auth.Token{AccessToken: "shared", ExpiresAt: time.Now().Add(time.Hour)}, nil
	})

	ctx := context.Background()

	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			token, err := manager.GetToken(ctx)
			assert.NoError(t, err)
			assert.Equal(t, "shared", token)
		}()
	}

	wg.Wait()
	assert.EqualValues(t, 1, atomic.LoadInt32(&exchanges))
}

func TestLoginTokenManager_SetTokenBypassesExchange(t *testing.T) {
	t.Parallel()

	manager := auth.NewLoginTokenManager(func(context.Context) (*auth.Token, error) {
		t.Error("exchange must not run when a token was installed")

		return nil, assert.AnError
	})

	manager.SetToken("installed", time.Now().Add(time.Hour))

	token, err := manager.GetToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "installed", token)
}
