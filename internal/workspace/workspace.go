// Package workspace lays out the melodex data directory and guards it
// against concurrent daemon instances.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/melodex/melodex/internal/utils"
)

const (
	logsDir  = "logs"
	lockFile = "melodex.lock"
	dbFile   = "sync.db"
	logFile  = "melodex.log"
)

var ErrWorkspaceLocked = errors.New("data directory locked by another melodex instance")

type Workspace struct {
	Root    string
	LogsDir string
	DBPath  string
	LogPath string

	flock *flock.Flock
}

func NewWorkspace(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir %s: %w", rootDir, err)
	}

	return &Workspace{
		Root:    root,
		LogsDir: filepath.Join(root, logsDir),
		DBPath:  filepath.Join(root, dbFile),
		LogPath: filepath.Join(root, logsDir, logFile),
		flock:   flock.New(filepath.Join(root, lockFile)),
	}, nil
}

// Setup creates the directory tree.
func (w *Workspace) Setup() error {
	if err := utils.EnsureDir(w.Root); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := utils.EnsureDir(w.LogsDir); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	return nil
}

// Lock takes the instance lock, failing if another daemon holds it.
func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.Root); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("lock data dir: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}
	return nil
}

// Unlock releases the instance lock and removes the lock file. A no-op if
// this process never held the lock.
func (w *Workspace) Unlock() error {
	if !w.flock.Locked() {
		return nil
	}
	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("unlock data dir: %w", err)
	}
	return os.Remove(w.flock.Path())
}
