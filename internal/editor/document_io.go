package editor

import (
	"errors"
	"os"

	"latex-workbench/internal/logger"
	"latex-workbench/internal/types"
)

// DocumentIO reads and writes whole documents through an EncodingHandler,
// backing up any file it overwrites.
type DocumentIO struct {
	encoding   *EncodingHandler
	backupMgr  *BackupManager
	backupKeep int
}

// NewDocumentIO creates a DocumentIO. backupKeep <= 0 keeps every backup.
func NewDocumentIO(encoding *EncodingHandler, backupMgr *BackupManager, backupKeep int) *DocumentIO {
	return &DocumentIO{
		encoding:   encoding,
		backupMgr:  backupMgr,
		backupKeep: backupKeep,
	}
}

// Backups returns the backup manager.
func (d *DocumentIO) Backups() *BackupManager {
	return d.backupMgr
}

// ReadText reads path and returns its content as UTF-8 text.
func (d *DocumentIO) ReadText(path string) (string, error) {
	logger.Debug("reading document", logger.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read file", err, logger.String("path", path))
		return "", types.NewIOError("failed to read file", path, err)
	}

	text, enc, err := d.encoding.Decode(data)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Details == "" {
			appErr.Details = path
		}
		return "", err
	}

	logger.Debug("document read",
		logger.String("path", path),
		logger.String("encoding", enc),
		logger.Int("bytes", len(data)))
	return text, nil
}

// WriteText replaces path with text. An existing file is backed up first
// and restored if the write fails; old backups are then pruned.
func (d *DocumentIO) WriteText(path, text string) error {
	existing, err := os.ReadFile(path)
	exists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return types.NewIOError("failed to read file", path, err)
	}

	data, err := d.encoding.Encode(text, d.encoding.TargetEncoding(existing))
	if err != nil {
		return err
	}

	var backup string
	if exists && d.backupMgr != nil {
		if backup, err = d.backupMgr.CreateBackup(path); err != nil {
			return err
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		logger.Error("failed to write file", err, logger.String("path", path))
		if backup != "" {
			if rerr := d.backupMgr.Restore(backup, path); rerr != nil {
				logger.Error("failed to restore after write error", rerr, logger.String("path", path))
			}
		}
		return types.NewIOError("failed to write file", path, err)
	}

	if backup != "" {
		if _, err := d.backupMgr.Prune(path, d.backupKeep); err != nil {
			logger.Warn("failed to prune backups", logger.Err(err), logger.String("path", path))
		}
	}

	logger.Info("document written", logger.String("path", path), logger.Int("bytes", len(data)))
	return nil
}
