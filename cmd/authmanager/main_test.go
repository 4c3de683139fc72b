package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	t    *testing.T
	args []string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "auth.db")
	t.Setenv("AUTHMANAGER_TOKEN_SIGNING_KEY", "test-signing-key")
	t.Setenv("AUTHMANAGER_AUTH_BCRYPT_COST", "4")
	t.Setenv("AUTHMANAGER_LOG_LEVEL", "error")
	c := &cli{t: t, args: []string{"--driver", "sqlite", "--dsn", dsn}}
	c.run("migrate")
	return c
}

func (c *cli) exec(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(append([]string{}, c.args...), args...))
	err := root.Execute()
	return out.String(), err
}

func (c *cli) run(args ...string) string {
	c.t.Helper()
	out, err := c.exec(args...)
	require.NoError(c.t, err, out)
	return out
}

func (c *cli) json(args ...string) map[string]any {
	c.t.Helper()
	var v map[string]any
	require.NoError(c.t, json.Unmarshal([]byte(c.run(args...)), &v))
	return v
}

func TestUserLifecycleThroughCLI(t *testing.T) {
	c := newCLI(t)

	created := c.json("user", "create", "alice", "--email", "alice@example.com", "--password", "p1")
	assert.Equal(t, "alice", created["username"])
	assert.Equal(t, "active", created["state"])

	login := c.json("login", "alice", "--password", "p1")
	assert.NotEmpty(t, login["token"])
	assert.Equal(t, "alice", login["username"])

	token, _ := login["token"].(string)
	refreshed := c.json("refresh", token)
	assert.Equal(t, "alice", refreshed["username"])
	assert.NotEqual(t, token, refreshed["token"])

	_, err := c.exec("refresh", "not-a-token")
	require.Error(t, err)

	_, err = c.exec("login", "alice", "--password", "wrong")
	require.Error(t, err)

	deactivated := c.json("user", "deactivate", "alice", "--reason", "left")
	assert.Equal(t, "inactive", deactivated["state"])

	_, err = c.exec("login", "alice", "--password", "p1")
	require.Error(t, err)

	_, err = c.exec("user", "deactivate", "alice")
	require.Error(t, err)

	c.run("user", "activate", "alice")
	c.run("user", "passwd", "alice", "--password", "p2")
	stale := c.json("login", "alice", "--password", "p2")["token"].(string)

	c.run("user", "delete", "alice")
	_, err = c.exec("user", "get", "alice")
	require.Error(t, err)

	_, err = c.exec("refresh", stale)
	require.Error(t, err)
}

func TestGroupsThroughCLI(t *testing.T) {
	c := newCLI(t)
	c.run("user", "create", "alice", "--password", "p1")
	c.run("user", "create", "bob", "--password", "p1")

	c.run("group", "create", "staff")
	c.run("group", "grant", "staff", "alice", "editor", "reviewer")
	c.run("group", "add", "staff", "bob")

	roles := c.json("user", "roles", "alice")
	assert.Equal(t, []any{"editor", "reviewer"}, roles["staff"])

	profile := c.json("user", "get", "bob")
	assert.ElementsMatch(t, []any{"__default__", "staff"}, profile["groups"])

	c.run("group", "revoke", "staff", "alice", "editor", "reviewer")
	group := c.json("group", "get", "staff")
	members, ok := group["members"].([]any)
	require.True(t, ok)
	assert.Len(t, members, 1)

	_, err := c.exec("group", "delete", "__default__")
	require.Error(t, err)
	c.run("group", "delete", "staff")
}

func TestAPIKeysThroughCLI(t *testing.T) {
	c := newCLI(t)
	c.run("user", "create", "alice", "--password", "p1")

	issued := c.json("apikey", "issue", "alice", "--label", "ci")
	header, _ := issued["header"].(string)
	require.NotEmpty(t, header)

	identity := c.json("apikey", "verify", header)
	assert.Equal(t, "alice", identity["username"])

	_, err := c.exec("apikey", "verify", header+"x")
	require.Error(t, err)

	id, _ := issued["id"].(string)
	c.run("apikey", "revoke", id)
	_, err = c.exec("apikey", "verify", header)
	require.Error(t, err)
}
