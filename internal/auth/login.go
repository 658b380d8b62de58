package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/expel-io/workbench-go/internal/constants"
)

// Login errors.
var (
	ErrLoginFailed = errors.New("login failed")
	ErrMFAFailed   = errors.New("MFA verification failed")
)

const mfaPath = "/auth/v0/mfa"

// Credentials drive the password login exchange.
type Credentials struct {
	Username string
	Password string
	MFACode  string
}

// loginResponse is the token payload both login endpoints return.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// NewPasswordLogin returns a LoginFunc that exchanges username/password
// credentials at the login endpoint, completing MFA verification when a
// code is configured. The returned func owns its own plain HTTP client:
// it runs before the authenticated transport exists.
func NewPasswordLogin(apiEndpoint string, creds Credentials, timeout time.Duration) LoginFunc {
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	httpClient := &http.Client{Timeout: timeout}

	return func(ctx context.Context) (*Token, error) {
		form := url.Values{}
		form.Set("grant_type", "password")
		form.Set("username", creds.Username)
		form.Set("password", creds.Password)

		body, err := postForm(ctx, httpClient, apiEndpoint+constants.AuthLoginPath, form, ErrLoginFailed)
		if err != nil {
			return nil, err
		}

		if creds.MFACode != "" {
			mfaForm := url.Values{}
			mfaForm.Set("code", creds.MFACode)

			body, err = postForm(ctx, httpClient, apiEndpoint+mfaPath, mfaForm, ErrMFAFailed)
			if err != nil {
				return nil, err
			}
		}

		var payload loginResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("parsing login response: %w", err)
		}

		if payload.AccessToken == "" {
			return nil, fmt.Errorf("%w: response carries no access token", ErrLoginFailed)
		}

		token := &Token{
			AccessToken: payload.AccessToken,
			TokenType:   payload.TokenType,
		}
		if payload.ExpiresIn > 0 {
			token.ExpiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
		}

		return token, nil
	}
}

func postForm(ctx context.Context, client *http.Client, endpoint string, form url.Values, failure error) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building login request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", failure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading login response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", failure, resp.StatusCode)
	}

	return body, nil
}
