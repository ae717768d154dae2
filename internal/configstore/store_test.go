package configstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicolas-rabault/lelab/internal/infrastructure/logging"
)

func writeConfig(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(`{}`), 0o644))
}

func testStore(t *testing.T) (*Store, string, string) {
	t.Helper()
	leader := t.TempDir()
	follower := t.TempDir()
	return New(leader, follower, logging.NewNop()), leader, follower
}

func TestListFiltersAndSorts(t *testing.T) {
	store, _, follower := testStore(t)
	writeConfig(t, follower, "zeta.json")
	writeConfig(t, follower, "alpha.json")
	writeConfig(t, follower, "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(follower, "nested.json"), 0o755))

	entries, err := store.List("robot")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alpha", entries[0].Name)
	assert.Equal(t, "alpha.json", entries[0].Filename)
	assert.Equal(t, "zeta", entries[1].Name)
	assert.Greater(t, entries[0].Size, int64(0))
}

func TestListRoutesDeviceKinds(t *testing.T) {
	store, leader, follower := testStore(t)
	writeConfig(t, leader, "leader_arm.json")
	writeConfig(t, follower, "follower_arm.json")

	entries, err := store.List("teleop")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "leader_arm", entries[0].Name)

	entries, err = store.List("robot")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "follower_arm", entries[0].Name)
}

func TestListUnknownDeviceKind(t *testing.T) {
	store, _, _ := testStore(t)

	_, err := store.List("drone")
	assert.ErrorIs(t, err, ErrUnknownDeviceKind)
}

func TestListMissingDirIsEmpty(t *testing.T) {
	store := New("/nonexistent/leader", "/nonexistent/follower", logging.NewNop())

	entries, err := store.List("robot")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListAll(t *testing.T) {
	store, leader, follower := testStore(t)
	writeConfig(t, leader, "left.json")
	writeConfig(t, follower, "right.json")

	leaderNames, followerNames := store.ListAll()
	assert.Equal(t, []string{"left.json"}, leaderNames)
	assert.Equal(t, []string{"right.json"}, followerNames)
}

func TestDelete(t *testing.T) {
	store, _, follower := testStore(t)
	writeConfig(t, follower, "old_arm.json")

	require.NoError(t, store.Delete("robot", "old_arm"))
	assert.NoFileExists(t, filepath.Join(follower, "old_arm.json"))
}

func TestDeleteMissing(t *testing.T) {
	store, _, _ := testStore(t)
	assert.ErrorIs(t, store.Delete("robot", "no_such"), ErrNotFound)
}

func TestDeleteRejectsPathTraversal(t *testing.T) {
	store, _, follower := testStore(t)
	writeConfig(t, follower, "safe.json")

	assert.Error(t, store.Delete("robot", "../escape"))
	assert.Error(t, store.Delete("robot", "sub/dir"))
	assert.Error(t, store.Delete("robot", ""))
	assert.FileExists(t, filepath.Join(follower, "safe.json"))
}
