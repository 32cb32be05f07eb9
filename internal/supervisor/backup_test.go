package supervisor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempDB(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "knowledge_graph.db")
	require.NoError(t, os.WriteFile(path, []byte("fake sqlite contents"), 0o600))
	return path
}

func TestBackupPolicy_RunWritesFileAndManifest(t *testing.T) {
	dir := t.TempDir()
	dbPath := writeTempDB(t, dir)
	backupDir := filepath.Join(dir, "backups")

	policy := BackupPolicy{Dir: backupDir, MinBackups: 2, MinBackupAge: time.Hour}
	now := time.Unix(1_700_000_000, 0).UTC()

	dest, err := policy.Run(dbPath, now)
	require.NoError(t, err)
	assert.FileExists(t, dest)
	assert.FileExists(t, manifestPath(dest))

	m, err := readManifest(dest)
	require.NoError(t, err)
	assert.Equal(t, dbPath, m.SourcePath)
	assert.Equal(t, now, m.CreatedAt.UTC())
	assert.Positive(t, m.SizeBytes)
}

func TestBackupPolicy_PruneKeepsMinBackupsAndRemovesManifests(t *testing.T) {
	dir := t.TempDir()
	dbPath := writeTempDB(t, dir)
	backupDir := filepath.Join(dir, "backups")

	policy := BackupPolicy{Dir: backupDir, MinBackups: 1, MinBackupAge: 0}

	base := time.Unix(1_700_000_000, 0).UTC()
	var firstDest string
	for i := 0; i < 3; i++ {
		dest, err := policy.Run(dbPath, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		if i == 0 {
			firstDest = dest
		}
	}

	// The oldest backup (and its manifest) should have been pruned, since
	// MinBackupAge is zero and only the newest MinBackups=1 is protected.
	assert.NoFileExists(t, firstDest)
	assert.NoFileExists(t, manifestPath(firstDest))

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2) // newest backup + its manifest
}

func TestBackupPolicy_PruneRespectsMinBackupAge(t *testing.T) {
	dir := t.TempDir()
	dbPath := writeTempDB(t, dir)
	backupDir := filepath.Join(dir, "backups")

	policy := BackupPolicy{Dir: backupDir, MinBackups: 0, MinBackupAge: time.Hour}
	now := time.Unix(1_700_000_000, 0).UTC()

	dest, err := policy.Run(dbPath, now)
	require.NoError(t, err)

	// Pruning again immediately should not remove the backup: it is younger
	// than MinBackupAge even though MinBackups is 0.
	require.NoError(t, policy.prune(now.Add(time.Minute)))
	assert.FileExists(t, dest)
}

func TestParseBackupTimestamp(t *testing.T) {
	ts, ok := parseBackupTimestamp("knowledge_graph_1700000000.db")
	require.True(t, ok)
	assert.EqualValues(t, 1700000000, ts)

	_, ok = parseBackupTimestamp("knowledge_graph_1700000000.db.manifest.yaml")
	assert.False(t, ok)

	_, ok = parseBackupTimestamp("not-a-backup.txt")
	assert.False(t, ok)
}
