package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchapi-console/internal/client"
	"github.com/searchapi-console/internal/model"
)

// fakeAPI is a minimal search-API service.
type fakeAPI struct {
	mu   sync.Mutex
	keys []model.APIKey
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reply := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}

	switch r.URL.Path {
	case "/login":
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "hunter22" {
			reply(http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
			return
		}
		reply(http.StatusOK, model.TokenPair{AccessToken: "tok", RefreshToken: "ref"})
		return
	case "/register":
		var reg model.Registration
		json.NewDecoder(r.Body).Decode(&reg)
		reply(http.StatusCreated, model.Account{ID: 7, FirstName: reg.FirstName, LastName: reg.LastName, Email: reg.Email})
		return
	case "/api/search":
		if r.Header.Get("X-API-Key") != "sk_1" {
			reply(http.StatusUnauthorized, map[string]string{"detail": "Invalid API key"})
			return
		}
		w.Write([]byte(`{"organic_results":[{"position":1,"title":"The Go Programming Language","link":"https://go.dev"}],"extra":true}`))
		return
	}

	if r.Header.Get("Authorization") != "Bearer tok" {
		reply(http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.URL.Path == "/me":
		reply(http.StatusOK, model.Account{ID: 7, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"})
	case r.URL.Path == "/tokens" && r.Method == http.MethodGet:
		reply(http.StatusOK, f.keys)
	case r.URL.Path == "/tokens" && r.Method == http.MethodPost:
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		id := int64(len(f.keys) + 1)
		k := model.APIKey{ID: id, Name: body["name"], Token: fmt.Sprintf("sk_%d", id), IsActive: true,
			CreatedAt: time.Date(2024, 1, int(id), 0, 0, 0, 0, time.UTC), Package: model.Package{Name: "Pro", RequestLimit: 1000}}
		f.keys = append(f.keys, k)
		reply(http.StatusCreated, k)
	case strings.HasPrefix(r.URL.Path, "/tokens/") && r.Method == http.MethodDelete:
		if r.URL.Path != "/tokens/1" {
			reply(http.StatusNotFound, map[string]string{"detail": "Token not found"})
			return
		}
		f.keys = f.keys[1:]
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/usage-stats":
		reply(http.StatusOK, []model.UsagePoint{
			{Name: "prod", RequestsUsed: 10, RequestLimit: 100},
			{Name: "dev", RequestsUsed: 10, RequestLimit: 1000},
		})
	case r.URL.Path == "/my-packages":
		reply(http.StatusInternalServerError, map[string]string{"detail": "boom"})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// setupEnv points the CLI at a fake API with a file credential store in
// a temp dir.
func setupEnv(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	t.Setenv("API_URL", srv.URL)
	t.Setenv("CREDENTIAL_STORE", "file")
	t.Setenv("CREDENTIAL_FILE", filepath.Join(t.TempDir(), "credentials.json"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SEARCH_API_KEY", "")
	return api
}

// run executes the CLI and returns stdout and stderr.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--env-file="}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd()
	require.NotNil(t, cmd)
	assert.Equal(t, "searchctl", cmd.Use)
	assert.Equal(t, Version, cmd.Version)

	subCmds := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subCmds[sub.Name()] = true
	}
	for _, name := range []string{"login", "logout", "register", "whoami", "status", "keys", "usage", "search", "serve"} {
		assert.True(t, subCmds[name], "root should have subcommand %q", name)
	}
}

func TestRootCmdShowsHelp(t *testing.T) {
	out, _, err := run(t, "")
	require.NoError(t, err)
	assert.Contains(t, out, "searchctl")
	assert.Contains(t, out, "manages API keys")
}

func TestRootCmdVersionFlag(t *testing.T) {
	out, _, err := run(t, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestMissingAPIURL(t *testing.T) {
	t.Setenv("API_URL", "")
	_, _, err := run(t, "", "status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_URL")
}

func TestLoginFlow(t *testing.T) {
	setupEnv(t)

	out, _, err := run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "anonymous")

	_, _, err = run(t, "", "whoami")
	require.ErrorIs(t, err, errNotLoggedIn)

	_, _, err = run(t, "", "login", "--email", "ada@example.com", "--password", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, "Incorrect email or password", errorText(err))

	out, _, err = run(t, "hunter22\n", "login", "--email", "ada@example.com", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as ada@example.com")

	out, _, err = run(t, "", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace <ada@example.com>\n", out)

	out, _, err = run(t, "", "--json", "status")
	require.NoError(t, err)
	var st statusOutput
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.Equal(t, model.SessionAuthenticated, st.Status)
	assert.True(t, st.LoggedIn)
	assert.Equal(t, "file", st.Backend)

	out, _, err = run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	out, _, err = run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "anonymous")
}

func TestLoginRejectsEmptyPasswordLocally(t *testing.T) {
	setupEnv(t)
	_, _, err := run(t, "", "login", "--email", "ada@example.com")
	require.Error(t, err)
	assert.True(t, client.IsValidation(err))
}

func TestRegister(t *testing.T) {
	setupEnv(t)

	out, _, err := run(t, "", "register", "--first-name", "Ada", "--last-name", "Lovelace",
		"--email", "ada@example.com", "--password", "hunter22")
	require.NoError(t, err)
	assert.Contains(t, out, "Account created for ada@example.com")

	_, _, err = run(t, "", "register", "--first-name", "Ada", "--last-name", "Lovelace",
		"--email", "not-an-email", "--password", "hunter22")
	require.Error(t, err)
	assert.True(t, client.IsValidation(err))
}

func TestKeysCommands(t *testing.T) {
	setupEnv(t)

	_, _, err := run(t, "", "keys", "list")
	require.ErrorIs(t, err, errNotLoggedIn)

	_, _, err = run(t, "", "login", "--email", "ada@example.com", "--password", "hunter22")
	require.NoError(t, err)

	out, _, err := run(t, "", "keys", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No API keys found.")

	out, _, err = run(t, "", "keys", "create", "production")
	require.NoError(t, err)
	assert.Contains(t, out, "Token: sk_1")

	_, _, err = run(t, "", "keys", "create", "staging")
	require.NoError(t, err)

	_, _, err = run(t, "", "keys", "create", "   ")
	require.Error(t, err)
	assert.True(t, client.IsValidation(err))

	out, _, err = run(t, "", "keys", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk_1")
	assert.Less(t, strings.Index(out, "staging"), strings.Index(out, "production"), "newest first")
	assert.Contains(t, out, "Total keys: 2  Active: 2  Requests: 0")

	out, _, err = run(t, "", "keys", "list", "--reveal", "1", "-q", "prod")
	require.NoError(t, err)
	assert.Contains(t, out, "sk_1")
	assert.NotContains(t, out, "staging")

	out, _, err = run(t, "", "--json", "keys", "list", "--status", "inactive")
	require.NoError(t, err)
	var view keysOutput
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Empty(t, view.Items)
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, 0, view.TotalPages)

	_, _, err = run(t, "", "keys", "list", "--status", "expired")
	require.Error(t, err)

	_, _, err = run(t, "", "keys", "delete", "9")
	require.Error(t, err)
	assert.True(t, client.IsNotFound(err))

	out, _, err = run(t, "", "keys", "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted key 1")

	_, _, err = run(t, "", "keys", "delete", "abc")
	require.Error(t, err)
}

func TestUsageShowsPartialResults(t *testing.T) {
	setupEnv(t)
	_, _, err := run(t, "", "login", "--email", "ada@example.com", "--password", "hunter22")
	require.NoError(t, err)

	out, errOut, err := run(t, "", "usage")
	require.NoError(t, err)
	assert.Contains(t, out, "prod")
	assert.Contains(t, out, "average 5.5%")
	assert.Contains(t, errOut, "packages unavailable")

	out, _, err = run(t, "", "--json", "usage")
	require.NoError(t, err)
	var got usageOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NotNil(t, got.Usage)
	assert.Len(t, got.Usage.Rows, 2)
	assert.InDelta(t, 5.5, got.Usage.Summary.AveragePercentage, 1e-9)
	assert.NotEmpty(t, got.PackagesError)
}

func TestSearch(t *testing.T) {
	setupEnv(t)

	_, _, err := run(t, "", "search", "golang")
	require.Error(t, err)
	assert.True(t, client.IsValidation(err), "a key is required")

	out, _, err := run(t, "", "search", "--api-key", "sk_1", "golang")
	require.NoError(t, err)
	assert.Contains(t, out, "1. The Go Programming Language")
	assert.Contains(t, out, "https://go.dev")

	t.Setenv("SEARCH_API_KEY", "sk_1")
	out, _, err = run(t, "", "--json", "search", "golang", "generics")
	require.NoError(t, err)
	assert.Contains(t, out, `"extra":true`)

	_, _, err = run(t, "", "search", "--api-key", "sk_bad", "golang")
	require.Error(t, err)
	assert.True(t, client.IsUnauthorized(err))

	// A rejected search key leaves the dashboard session alone.
	_, _, err = run(t, "", "login", "--email", "ada@example.com", "--password", "hunter22")
	require.NoError(t, err)
	_, _, err = run(t, "", "search", "--api-key", "sk_bad", "golang")
	require.Error(t, err)
	out, _, err = run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "authenticated")
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "name is required", errorText(client.NewValidation("name is required")))
	assert.Equal(t, "plain failure", errorText(errors.New("plain failure\n")))
	assert.Equal(t, "name is required", errorText(fmt.Errorf("create: %w", client.NewValidation("name is required"))))
}

func TestReadSecret(t *testing.T) {
	got, err := readSecret(strings.NewReader("pa ss\r\nignored"))
	require.NoError(t, err)
	assert.Equal(t, "pa ss", got)

	got, err = readSecret(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", got)
}
