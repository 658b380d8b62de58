package exclient_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expel-io/workbench-go/pkg/exclient"
	"github.com/expel-io/workbench-go/pkg/workbench"
)

func TestNew_NilConfig(t *testing.T) {
	t.Parallel()

	_, err := exclient.New(context.Background(), nil)
	require.ErrorIs(t, err, exclient.ErrConfigRequired)
}

func TestNew_NoCredentials(t *testing.T) {
	t.Parallel()

	_, err := exclient.New(context.Background(), &workbench.Config{
		APIEndpoint: "https://workbench.example.test",
	})
	require.ErrorIs(t, err, exclient.ErrCredentialsRequired)
}

func TestNew_NormalizesEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		endpoint string
		expected string
	}{
		{
			name:     "trailing slash stripped",
			endpoint: "https://workbench.example.test/",
			expected: "https://workbench.example.test",
		},
		{
			name:     "scheme added",
			endpoint: "workbench.example.test",
			expected: "https://workbench.example.test",
		},
		{
			name:     "http left alone",
			endpoint: "http://localhost:8080",
			expected: "http://localhost:8080",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			config := &workbench.Config{APIEndpoint: tt.endpoint, APIKey: "test-key"}

			session, err := exclient.New(context.Background(), config)
			require.NoError(t, err)
			require.NotNil(t, session)

			assert.Equal(t, tt.expected, config.APIEndpoint)
		})
	}
}

func TestNew_SessionIsUsable(t *testing.T) {
	t.Parallel()

	session, err := exclient.New(context.Background(), &workbench.Config{APIKey: "test-key"})
	require.NoError(t, err)

	assert.Equal(t, "investigations", session.Investigations().Type())
}
