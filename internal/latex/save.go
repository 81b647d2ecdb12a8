package latex

import (
	"bufio"
	"os"

	"latex-workbench/internal/logger"
	"latex-workbench/internal/types"
)

// SaveToFile writes lines to path, each terminated by "\n".
func SaveToFile(lines []string, path string) error {
	file, err := os.Create(path)
	if err != nil {
		logger.Error("failed to create file", err, logger.String("path", path))
		return types.NewIOError("failed to save file", path, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			return types.NewIOError("failed to save file", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return types.NewIOError("failed to save file", path, err)
	}
	if err := file.Close(); err != nil {
		return types.NewIOError("failed to save file", path, err)
	}

	logger.Info("content saved", logger.String("path", path), logger.Int("lines", len(lines)))
	return nil
}

// SaveToFile writes lines to path. It does not touch the snapshot.
func (e *Extractor) SaveToFile(lines []string, path string) error {
	return SaveToFile(lines, path)
}
