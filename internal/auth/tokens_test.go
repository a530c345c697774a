/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenIsRandom(t *testing.T) {
	a, err := GenerateToken()
	require.NoError(t, err)
	b, err := GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 44)
}

func TestHashToken(t *testing.T) {
	assert.Equal(t,
		"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		HashToken("test"))
}

func TestAuthenticate(t *testing.T) {
	store := NewTokenStore("")
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	require.NoError(t, store.AddToken("live", HashToken("live-token"), "", &future))
	require.NoError(t, store.AddToken("forever", HashToken("forever-token"), "", nil))
	require.NoError(t, store.AddToken("old", HashToken("old-token"), "", &past))

	id, err := store.Authenticate("live-token")
	require.NoError(t, err)
	assert.Equal(t, "live", id)

	id, err = store.Authenticate("forever-token")
	require.NoError(t, err)
	assert.Equal(t, "forever", id)

	_, err = store.Authenticate("old-token")
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = store.Authenticate("nope")
	assert.ErrorIs(t, err, ErrTokenUnknown)
}

func TestAddTokenRejectsDuplicateID(t *testing.T) {
	store := NewTokenStore("")
	require.NoError(t, store.AddToken("a", HashToken("x"), "", nil))
	assert.Error(t, store.AddToken("a", HashToken("y"), "", nil))
}

func TestRemoveToken(t *testing.T) {
	store := NewTokenStore("")
	require.NoError(t, store.AddToken("by-id", HashToken("one"), "", nil))
	require.NoError(t, store.AddToken("by-hash", HashToken("two"), "", nil))

	assert.True(t, store.RemoveToken("by-id"))
	assert.False(t, store.RemoveToken("by-id"))

	hash := HashToken("two")
	assert.False(t, store.RemoveToken(hash[:4]), "short prefixes are refused")
	assert.False(t, store.RemoveToken(hash+"ff"), "longer than the hash never matches")
	assert.True(t, store.RemoveToken(hash[:10]))
	assert.Empty(t, store.ListTokens())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.yaml")
	store := NewTokenStore(path)
	require.NoError(t, store.AddToken("b", HashToken("b"), "second", nil))
	require.NoError(t, store.AddToken("a", HashToken("a"), "first", nil))
	require.NoError(t, store.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadTokenStore(path)
	require.NoError(t, err)
	list := loaded.ListTokens()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "first", list[0].Annotation)
	assert.Equal(t, HashToken("a")[:12], list[0].HashPrefix)
	assert.Equal(t, "b", list[1].ID)
}

func TestOpenTokenStoreMissingFile(t *testing.T) {
	store, err := OpenTokenStore(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, store.ListTokens())

	_, err = LoadTokenStore(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadTokenStoreMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tokens: [not, a, map"), 0600))
	_, err := LoadTokenStore(path)
	assert.Error(t, err)
}

func TestCleanupExpiredTokens(t *testing.T) {
	store := NewTokenStore("")
	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.AddToken("old", HashToken("old"), "", &past))
	require.NoError(t, store.AddToken("new", HashToken("new"), "", nil))

	assert.Equal(t, 1, store.CleanupExpiredTokens())
	list := store.ListTokens()
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].ID)
}

func TestReloadPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	store := NewTokenStore(path)
	require.NoError(t, store.Save())

	other := NewTokenStore(path)
	require.NoError(t, other.AddToken("added", HashToken("added"), "", nil))
	require.NoError(t, other.Save())

	require.NoError(t, store.Reload())
	id, err := store.Authenticate("added")
	require.NoError(t, err)
	assert.Equal(t, "added", id)

	assert.Error(t, NewTokenStore("").Reload())
}

func TestStartWatchingReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	store := NewTokenStore(path)
	require.NoError(t, store.Save())
	require.NoError(t, store.StartWatching())
	defer store.StopWatching()

	writer := NewTokenStore(path)
	require.NoError(t, writer.AddToken("late", HashToken("late"), "", nil))
	require.NoError(t, writer.Save())

	assert.Eventually(t, func() bool {
		_, err := store.Authenticate("late")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestGetDefaultTokenPath(t *testing.T) {
	path := GetDefaultTokenPath("/opt/agent/bin/bq-data-agent")
	if path != filepath.Join("/etc/bq-data-agent", DefaultTokenFileName) {
		assert.Equal(t, filepath.Join("/opt/agent/bin", DefaultTokenFileName), path)
	}
}
