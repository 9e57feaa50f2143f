package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", t.TempDir() + "/none.env"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestKeysCmd(t *testing.T) {
	out, err := run(t, "keys")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "public_key="))
	require.Len(t, strings.TrimPrefix(lines[0], "public_key="), 64)
	require.Len(t, strings.TrimPrefix(lines[2], "nonce="), 48)
}

func TestKeysCmd_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.env")
	out, err := run(t, "keys", "--write", path)
	require.NoError(t, err)
	require.NotContains(t, out, "private_key")
	require.Contains(t, out, "written="+path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, strings.Split(strings.TrimSpace(string(b)), "\n"), 3)
	require.Contains(t, string(b), "private_key=")
}

func TestGrantCmd(t *testing.T) {
	var gotKey, gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Admin-API-Key")
		gotPath = r.Method + " " + r.URL.Path
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"identifier":"raw"}`)
	}))
	defer srv.Close()

	out, err := run(t, "grant", "--admin-api-url", srv.URL, "--admin-api-key", "k", "--requester", "admin-1", "--out", "json")
	require.NoError(t, err)
	require.Equal(t, "k", gotKey)
	require.Equal(t, "POST /admin/access", gotPath)
	require.Equal(t, "admin-1", gotBody["requester_id"])
	require.Contains(t, out, `"identifier": "raw"`)
}

func TestRevokeCmd_StatusError(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":"not_found"}`)
	}))
	defer srv.Close()

	out, err := run(t, "revoke", "all", "--admin-api-url", srv.URL, "--admin-api-key", "k")
	require.Error(t, err)
	require.Equal(t, "/admin/access/all", gotPath)
	require.Contains(t, out, "not_found")
}

func TestAdminCmd_RequiresKey(t *testing.T) {
	t.Setenv("TL_ADMIN_API_KEY", "")
	_, err := run(t, "list", "--admin-api-url", "http://127.0.0.1:1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "API key")
}
