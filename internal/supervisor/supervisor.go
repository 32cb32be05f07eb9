package supervisor

import (
	"context"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kgraphd/kgraphd/internal/lockfile"
)

// Closer is the part of the storage engine the supervisor needs to shut it
// down as the final step of graceful shutdown. sqlite.Store.Close does not
// checkpoint, so Shutdown calls Checkpoint explicitly before Close.
type Closer interface {
	Checkpoint(ctx context.Context) error
	Close() error
}

// Options configures a Supervisor.
type Options struct {
	Host             string
	PreferredPort    int
	MaxPortProbe     int
	BaseDir          string
	DatabasePath     string
	Name             string
	Version          string
	InDocker         bool
	BackupDir        string
	MinBackups       int
	MinBackupAge     time.Duration
	BackupInterval   time.Duration
	DrainTimeout     time.Duration
	Logger           *slog.Logger
}

// Supervisor owns port negotiation, the identity file, the backup ticker,
// and graceful shutdown. It is constructed once per process and is not
// itself safe for concurrent Start calls (a process has at most one
// supervisor bound to one database file, per the storage engine's
// ownership contract).
type Supervisor struct {
	opts Options
	log  *slog.Logger

	listener     net.Listener
	boundPort    int
	identityPath string

	store Closer

	backupTicker *time.Ticker
	watcher      *fsnotify.Watcher

	stopBackup chan struct{}
	wg         sync.WaitGroup

	lockFile *os.File
}

// New constructs a Supervisor. Start must be called before it is usable.
func New(opts Options) *Supervisor {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxPortProbe <= 0 {
		opts.MaxPortProbe = 100
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 10 * time.Second
	}
	return &Supervisor{opts: opts, log: opts.Logger, stopBackup: make(chan struct{})}
}

// Start negotiates a listen port, writes the identity file (guarded by an
// advisory flock so two supervisors racing on the same base dir don't
// clobber each other's identity mid-write), and begins the backup ticker
// and sibling-discovery watcher. The returned listener is ready for an
// http.Server to Serve on.
func (s *Supervisor) Start(ctx context.Context, store Closer) (net.Listener, error) {
	s.store = store

	ln, port, err := NegotiatePort(s.opts.Host, s.opts.PreferredPort, s.opts.MaxPortProbe)
	if err != nil {
		return nil, err
	}
	s.listener = ln
	s.boundPort = port

	s.identityPath = IdentityPath(s.opts.BaseDir)
	if err := s.acquireIdentityLock(); err != nil {
		ln.Close() //nolint:errcheck
		return nil, err
	}

	id := Identity{
		Name:         s.opts.Name,
		Version:      s.opts.Version,
		PID:          os.Getpid(),
		Host:         s.opts.Host,
		Port:         port,
		InDocker:     s.opts.InDocker,
		DatabasePath: s.opts.DatabasePath,
		StartedAt:    time.Now().UTC(),
	}
	if err := WriteIdentity(s.identityPath, id); err != nil {
		s.log.Warn("failed to write identity file", "error", err)
	}

	if err := s.startSiblingWatch(); err != nil {
		s.log.Warn("sibling discovery watch unavailable", "error", err)
	}

	if s.opts.BackupDir != "" {
		s.runStartupBackup()
		s.startBackupTicker()
	}

	s.log.Info("supervisor started", "host", s.opts.Host, "port", port, "database_path", s.opts.DatabasePath)
	return ln, nil
}

// Port returns the port NegotiatePort actually bound, which may differ from
// PreferredPort if that port was already in use.
func (s *Supervisor) Port() int { return s.boundPort }

// acquireIdentityLock takes a non-blocking advisory lock on a sidecar file
// next to the identity file (its path plus ".lock"), belt-and-suspenders
// alongside fsnotify's best-effort
// sibling discovery: a second daemon racing to start against the same
// database file can detect a live sibling deterministically rather than
// relying on a filesystem-event race.
func (s *Supervisor) acquireIdentityLock() error {
	if err := os.MkdirAll(filepath.Dir(s.identityPath), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.identityPath+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	if err := lockfile.FlockExclusiveNonBlocking(f); err != nil {
		f.Close() //nolint:errcheck
		if lockfile.IsLocked(err) {
			return err
		}
		return err
	}
	s.lockFile = f
	return nil
}

// startSiblingWatch watches the identity file's directory with fsnotify so
// a second daemon attempting to start against the same database can detect
// a live sibling without racing the port-probe.
func (s *Supervisor) startSiblingWatch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(s.identityPath)); err != nil {
		w.Close() //nolint:errcheck
		return err
	}
	s.watcher = w

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Name == s.identityPath && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					s.log.Debug("identity file touched by another process", "event", event.Op.String())
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("identity watcher error", "error", err)
			case <-s.stopBackup:
				return
			}
		}
	}()
	return nil
}

func (s *Supervisor) runStartupBackup() {
	policy := BackupPolicy{Dir: s.opts.BackupDir, MinBackups: s.opts.MinBackups, MinBackupAge: s.opts.MinBackupAge}
	dest, err := policy.Run(s.opts.DatabasePath, time.Now().UTC())
	if err != nil {
		s.log.Warn("startup backup failed", "error", err)
		return
	}
	if m, err := readManifest(dest); err == nil {
		s.log.Info("startup backup complete", "path", dest, "size_bytes", m.SizeBytes)
	}
}

func (s *Supervisor) startBackupTicker() {
	interval := s.opts.BackupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	s.backupTicker = time.NewTicker(interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		policy := BackupPolicy{Dir: s.opts.BackupDir, MinBackups: s.opts.MinBackups, MinBackupAge: s.opts.MinBackupAge}
		for {
			select {
			case <-s.backupTicker.C:
				if _, err := policy.Run(s.opts.DatabasePath, time.Now().UTC()); err != nil {
					s.log.Warn("periodic backup failed", "error", err)
				}
			case <-s.stopBackup:
				return
			}
		}
	}()
}

// Shutdown stops the backup ticker and sibling watcher, closes the storage
// engine (after a final checkpoint), and removes the identity file. It is
// the last step of the graceful-shutdown sequence: callers are expected to
// have already stopped accepting new requests and drained in-flight ones.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	close(s.stopBackup)
	if s.backupTicker != nil {
		s.backupTicker.Stop()
	}
	if s.watcher != nil {
		s.watcher.Close() //nolint:errcheck
	}
	s.wg.Wait()

	var firstErr error
	if s.store != nil {
		if err := s.store.Checkpoint(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := RemoveIdentity(s.identityPath); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.lockFile != nil {
		lockfile.FlockUnlock(s.lockFile) //nolint:errcheck
		s.lockFile.Close()               //nolint:errcheck
		os.Remove(s.lockFile.Name())     //nolint:errcheck
	}

	s.log.Info("supervisor stopped")
	return firstErr
}
