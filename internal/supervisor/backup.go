package supervisor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// backupManifest records the provenance of a single backup file, written
// alongside it as <name>.manifest.yaml. This mirrors the teacher's
// config.yaml convention for human-editable sidecar metadata (see
// cmd/bd/doctor's config.yaml validation) rather than folding the same
// fields into the database itself.
type backupManifest struct {
	SourcePath string    `yaml:"source_path"`
	CreatedAt  time.Time `yaml:"created_at"`
	SizeBytes  int64     `yaml:"size_bytes"`
}

func writeManifest(backupPath, sourcePath string, createdAt time.Time) error {
	info, err := os.Stat(backupPath)
	if err != nil {
		return fmt.Errorf("backup: stat for manifest: %w", err)
	}
	m := backupManifest{SourcePath: sourcePath, CreatedAt: createdAt, SizeBytes: info.Size()}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("backup: marshal manifest: %w", err)
	}
	return os.WriteFile(manifestPath(backupPath), data, 0o600)
}

func manifestPath(backupPath string) string {
	return backupPath + ".manifest.yaml"
}

// readManifest loads a backup's manifest, used by doctor-style diagnostics
// to confirm a backup's origin without having to open the sqlite file.
func readManifest(backupPath string) (*backupManifest, error) {
	data, err := os.ReadFile(manifestPath(backupPath))
	if err != nil {
		return nil, err
	}
	var m backupManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("backup: parse manifest: %w", err)
	}
	return &m, nil
}

// BackupPolicy controls retention: the most recent MinBackups are always
// kept, and no backup younger than MinBackupAge is ever deleted, even if
// that means keeping more than MinBackups files.
type BackupPolicy struct {
	Dir          string
	MinBackups   int
	MinBackupAge time.Duration
}

// backupFileName matches the on-disk layout's backup/knowledge_graph_<unix-ts>.db.
func backupFileName(unixTS int64) string {
	return fmt.Sprintf("knowledge_graph_%d.db", unixTS)
}

// Run copies dbPath into the backup directory under a timestamped name,
// then applies retention: delete oldest-first, but never a backup younger
// than MinBackupAge, and never below MinBackups of the newest files kept.
func (p BackupPolicy) Run(dbPath string, now time.Time) (string, error) {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", fmt.Errorf("backup: create dir: %w", err)
	}

	dest := filepath.Join(p.Dir, backupFileName(now.Unix()))
	if err := copyFile(dbPath, dest); err != nil {
		return "", fmt.Errorf("backup: copy: %w", err)
	}
	if err := writeManifest(dest, dbPath, now); err != nil {
		return dest, fmt.Errorf("backup: manifest: %w", err)
	}

	if err := p.prune(now); err != nil {
		return dest, fmt.Errorf("backup: prune: %w", err)
	}
	return dest, nil
}

// prune removes backups beyond MinBackups, oldest first, skipping any
// backup younger than MinBackupAge regardless of count.
func (p BackupPolicy) prune(now time.Time) error {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return err
	}

	type backupFile struct {
		path string
		ts   int64
	}
	var files []backupFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ts, ok := parseBackupTimestamp(e.Name())
		if !ok {
			continue
		}
		files = append(files, backupFile{path: filepath.Join(p.Dir, e.Name()), ts: ts})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ts > files[j].ts }) // newest first

	if len(files) <= p.MinBackups {
		return nil
	}

	for _, f := range files[p.MinBackups:] {
		age := now.Sub(time.Unix(f.ts, 0))
		if age < p.MinBackupAge {
			continue
		}
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		if err := os.Remove(manifestPath(f.path)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func parseBackupTimestamp(name string) (int64, bool) {
	const prefix, suffix = "knowledge_graph_", ".db"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return 0, false
	}
	tsStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
