package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expel-io/workbench-go/internal/auth"
)

func TestNewPasswordLogin(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assert.Equal(t, http.MethodPost, request.Method)
		assert.Equal(t, "/auth/v0/login", request.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", request.Header.Get("Content-Type"))

		require.NoError(t, request.ParseForm())
		assert.Equal(t, "password", request.PostForm.Get("grant_type"))
		assert.Equal(t, "analyst@example.com", request.PostForm.Get("username"))
		assert.Equal(t, "hunter2", request.PostForm.Get("password"))

		_, _ = writer.Write([]byte(`{"access_token": "session-token", "token_type": "bearer", "expires_in": 3600}`))
	}))
	defer server.Close()

	login := auth.NewPasswordLogin(server.URL, auth.Credentials{
		Username: "analyst@example.com",
		Password: "hunter2",
	}, time.Second)

	token, err := login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "session-token", token.AccessToken)
	assert.Equal(t, "bearer", token.TokenType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, time.Minute)
}

func TestNewPasswordLogin_MFA(t *testing.T) {
	t.Parallel()

	var sawMFA bool

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		require.NoError(t, request.ParseForm())

		switch request.URL.Path {
		case "/auth/v0/login":
			_, _ = writer.Write([]byte(`{}`))
		case "/auth/v0/mfa":
			sawMFA = true

			assert.Equal(t, "123456", request.PostForm.Get("code"))
			_, _ = writer.Write([]byte(`{"access_token": "mfa-token", "token_type": "bearer"}`))
		default:
			t.Errorf("unexpected path %s", request.URL.Path)
		}
	}))
	defer server.Close()

	login := auth.NewPasswordLogin(server.URL, auth.Credentials{
		Username: "analyst@example.com",
		Password: "hunter2",
		MFACode:  "123456",
	}, time.Second)

	token, err := login(context.Background())
	require.NoError(t, err)
	assert.True(t, sawMFA)
	assert.Equal(t, "mfa-token", token.AccessToken)
	assert.True(t, token.ExpiresAt.IsZero())
}

func TestNewPasswordLogin_BadCredentials(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	login := auth.NewPasswordLogin(server.URL, auth.Credentials{
		Username: "analyst@example.com",
		Password: "wrong",
	}, time.Second)

	_, err := login(context.Background())
	require.ErrorIs(t, err, auth.ErrLoginFailed)
}

func TestNewPasswordLogin_MissingToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		_, _ = writer.Write([]byte(`{"token_type": "bearer"}`))
	}))
	defer server.Close()

	login := auth.NewPasswordLogin(server.URL, auth.Credentials{
		Username: "analyst@example.com",
		Password: "hunter2",
	}, time.Second)

	_, err := login(context.Background())
	require.ErrorIs(t, err, auth.ErrLoginFailed)
}
