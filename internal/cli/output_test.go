package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"evault/internal/backend"
	"evault/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputFormatTable, false},
		{"table", OutputFormatTable, false},
		{"json", OutputFormatJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintRepositories(t *testing.T) {
	desc := "secrets for the api"
	repos := []backend.Repository{
		{ID: 42, FullName: "octo/api", Private: true, Description: &desc},
		{ID: 7, FullName: "octo/site"},
	}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintRepositories(&buf, repos, OutputFormatTable))
		out := buf.String()
		assert.Contains(t, out, "octo/api")
		assert.Contains(t, out, "octo/site")
		assert.Contains(t, out, "private")
		assert.Contains(t, out, "secrets for the api")
		assert.Contains(t, out, "Total: 2")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintRepositories(&buf, repos, OutputFormatJSON))
		var decoded []backend.Repository
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Len(t, decoded, 2)
		assert.Equal(t, int64(42), decoded[0].ID)
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintRepositories(&buf, nil, OutputFormatTable))
		assert.Contains(t, buf.String(), "No repositories found")
	})
}

func TestRepositoryStatusText(t *testing.T) {
	assert.Contains(t, RepositoryStatusText(http.StatusOK), "Vault exists")
	assert.Contains(t, RepositoryStatusText(http.StatusNotFound), "No vault yet")
	assert.Contains(t, RepositoryStatusText(http.StatusForbidden), "Not repository owner")
	assert.Contains(t, RepositoryStatusText(http.StatusTeapot), "418")
}

func TestPrintRepositoryChecks(t *testing.T) {
	checks := []RepositoryCheck{
		{Remote: "origin", ID: 42, FullName: "octo/api", Status: http.StatusOK},
		{FullName: "someone/else"},
	}
	var buf bytes.Buffer
	require.NoError(t, PrintRepositoryChecks(&buf, checks, OutputFormatTable))
	out := buf.String()
	assert.Contains(t, out, "origin")
	assert.Contains(t, out, "Vault exists")
	assert.Contains(t, out, "Not in your repositories")
}

func TestPrintIdentity(t *testing.T) {
	id := &session.Identity{ID: 1, Login: "octocat", Name: "The Octocat"}

	var buf bytes.Buffer
	require.NoError(t, PrintIdentity(&buf, id, OutputFormatTable))
	assert.Contains(t, buf.String(), "octocat")
	assert.Contains(t, buf.String(), "The Octocat")
	assert.NotContains(t, buf.String(), "Email")

	buf.Reset()
	require.NoError(t, PrintIdentity(&buf, id, OutputFormatJSON))
	assert.Contains(t, buf.String(), `"login": "octocat"`)
}
