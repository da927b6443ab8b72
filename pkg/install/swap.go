package install

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/e5r/dev/pkg/errdefs"
	"github.com/e5r/dev/pkg/fsutil"
	"github.com/e5r/dev/pkg/util"
)

// Sibling suffixes of an installation target
const (
	StagingSuffix = "_new"
	BackupSuffix  = "_old"
)

// removeBackup drops the backup once staging has been promoted
var removeBackup = os.RemoveAll

// Target is the final, staging and backup path set of one engine version.
// At most one of FinalPath and BackupPath holds a completed installation.
type Target struct {
	Engine      string
	Version     string
	FinalPath   string
	StagingPath string
	BackupPath  string
}

// NewTarget derives the target paths of version under installRoot
// (<root>/env/<engine>)
func NewTarget(installRoot, version string) *Target {
	final := filepath.Join(installRoot, version)
	return &Target{
		Engine:      filepath.Base(installRoot),
		Version:     version,
		FinalPath:   final,
		StagingPath: final + StagingSuffix,
		BackupPath:  final + BackupSuffix,
	}
}

func (t *Target) fsError(stage string, err error) error {
	return errdefs.Filesystem(t.Engine, t.Version, stage, err)
}

// Recover clears what an interrupted operation left behind. Staging is
// removed. A backup is dropped when a final directory exists, and restored
// as the final directory otherwise.
func Recover(t *Target) error {
	if fsutil.Exists(t.StagingPath) {
		util.LogVerbose("Removing leftover staging directory %s", t.StagingPath)
		if err := os.RemoveAll(t.StagingPath); err != nil {
			return t.fsError(errdefs.StagePrepare, fmt.Errorf("failed to remove staging directory: %w", err))
		}
	}

	if !fsutil.Exists(t.BackupPath) {
		return nil
	}

	if fsutil.Exists(t.FinalPath) {
		util.LogVerbose("Removing leftover backup directory %s", t.BackupPath)
		if err := os.RemoveAll(t.BackupPath); err != nil {
			return t.fsError(errdefs.StagePrepare, fmt.Errorf("failed to remove backup directory: %w", err))
		}
		return nil
	}

	util.LogVerbose("Restoring backup %s", t.BackupPath)
	if err := os.Rename(t.BackupPath, t.FinalPath); err != nil {
		return t.fsError(errdefs.StagePrepare, fmt.Errorf("failed to restore backup directory: %w", err))
	}
	return nil
}

// Prepare recovers the target, creates an empty staging directory and moves
// an existing final directory aside as the backup
func Prepare(installRoot, version string) (*Target, error) {
	t := NewTarget(installRoot, version)

	if err := Recover(t); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(t.StagingPath, 0755); err != nil {
		return nil, t.fsError(errdefs.StagePrepare, fmt.Errorf("failed to create staging directory: %w", err))
	}

	if fsutil.Exists(t.FinalPath) {
		if err := os.Rename(t.FinalPath, t.BackupPath); err != nil {
			os.RemoveAll(t.StagingPath)
			return nil, t.fsError(errdefs.StagePrepare, fmt.Errorf("failed to move existing installation aside: %w", err))
		}
	}

	return t, nil
}

// Commit promotes staging to final and drops the backup. The installation
// is committed once staging is renamed: a backup that cannot be removed is
// left for Recover.
func Commit(t *Target) error {
	if fsutil.Exists(t.FinalPath) {
		return t.fsError(errdefs.StageCommit, fmt.Errorf("%s already exists", t.FinalPath))
	}

	if err := os.Rename(t.StagingPath, t.FinalPath); err != nil {
		return t.fsError(errdefs.StageCommit, fmt.Errorf("failed to promote staging directory: %w", err))
	}

	if fsutil.Exists(t.BackupPath) {
		if err := removeBackup(t.BackupPath); err != nil {
			util.Logger().Warn("failed to remove backup directory", "path", t.BackupPath, "err", err)
		}
	}
	return nil
}

// Rollback drops staging and restores the backup, if any, as final.
// Without a backup the final path stays as it is.
func Rollback(t *Target) error {
	if err := os.RemoveAll(t.StagingPath); err != nil {
		return t.fsError(errdefs.StageRollback, fmt.Errorf("failed to remove staging directory: %w", err))
	}

	if !fsutil.Exists(t.BackupPath) {
		return nil
	}

	if err := os.RemoveAll(t.FinalPath); err != nil {
		return t.fsError(errdefs.StageRollback, fmt.Errorf("failed to remove partial installation: %w", err))
	}
	if err := os.Rename(t.BackupPath, t.FinalPath); err != nil {
		return t.fsError(errdefs.StageRollback, fmt.Errorf("failed to restore backup directory: %w", err))
	}
	return nil
}
