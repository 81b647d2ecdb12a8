package editor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"latex-workbench/internal/logger"
	"latex-workbench/internal/types"
)

// backupStamp sorts lexically in time order.
const backupStamp = "20060102_150405.000000"

// BackupManager manages file backups for safe editing
type BackupManager struct {
	backupDir string
	now       func() time.Time
}

// NewBackupManager creates a new BackupManager
// If backupDir is empty, backups are created in the same directory as the original file
func NewBackupManager(backupDir string) *BackupManager {
	return &BackupManager{
		backupDir: backupDir,
		now:       time.Now,
	}
}

func (m *BackupManager) dirFor(path string) string {
	if m.backupDir != "" {
		return m.backupDir
	}
	return filepath.Dir(path)
}

// CreateBackup copies path to <name>.backup_<timestamp> and returns the
// backup's path.
func (m *BackupManager) CreateBackup(path string) (string, error) {
	logger.Debug("creating backup", logger.String("path", path))

	if _, err := os.Stat(path); err != nil {
		return "", types.NewIOError("cannot back up file", path, err)
	}

	dir := m.dirFor(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create backup directory", err)
		return "", types.NewIOError("failed to create backup directory", dir, err)
	}

	backupPath := filepath.Join(dir, fmt.Sprintf("%s.backup_%s", filepath.Base(path), m.now().Format(backupStamp)))
	if err := copyFile(path, backupPath); err != nil {
		logger.Error("failed to copy file", err)
		return "", types.NewIOError("failed to create backup", backupPath, err)
	}

	logger.Info("backup created", logger.String("backupPath", backupPath))
	return backupPath, nil
}

// Restore restores a file from its backup
func (m *BackupManager) Restore(backupPath string, originalPath string) error {
	logger.Debug("restoring from backup",
		logger.String("backupPath", backupPath),
		logger.String("originalPath", originalPath))

	if err := copyFile(backupPath, originalPath); err != nil {
		logger.Error("failed to restore backup", err)
		return types.NewIOError("failed to restore backup", backupPath, err)
	}

	logger.Info("file restored from backup", logger.String("path", originalPath))
	return nil
}

// ListBackups lists all backups for a given file, newest first
func (m *BackupManager) ListBackups(path string) ([]string, error) {
	searchDir := m.dirFor(path)
	entries, err := os.ReadDir(searchDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, types.NewIOError("failed to read backup directory", searchDir, err)
	}

	var backups []string
	prefix := filepath.Base(path) + ".backup_"
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, filepath.Join(searchDir, entry.Name()))
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

// Prune removes old backups, keeping only the most recent keep backups.
// keep <= 0 keeps everything.
func (m *BackupManager) Prune(path string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	backups, err := m.ListBackups(path)
	if err != nil {
		return 0, err
	}

	removed := 0
	for i := keep; i < len(backups); i++ {
		if err := os.Remove(backups[i]); err != nil {
			logger.Warn("failed to remove backup", logger.Err(err), logger.String("path", backups[i]))
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Debug("old backups removed",
			logger.String("path", path),
			logger.Int("kept", min(len(backups), keep)),
			logger.Int("removed", removed))
	}
	return removed, nil
}

// LatestBackup returns the path to the most recent backup for a file
func (m *BackupManager) LatestBackup(path string) (string, error) {
	backups, err := m.ListBackups(path)
	if err != nil {
		return "", err
	}
	if len(backups) == 0 {
		return "", types.NewAppErrorWithDetails(types.ErrNotFound, "no backups found", path, nil)
	}
	return backups[0], nil
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	if err := destFile.Sync(); err != nil {
		return err
	}

	sourceInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, sourceInfo.Mode())
}
