package cache

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/NgnPhamGiaHuy/media-crawler/pkg/utils"
)

const (
	indentPrefix    = "    "
	entryPrefix     = "├── "
	lastEntryPrefix = "└── "
	verticalLine    = "│   "
)

// WriteSessionTree writes a text tree of a session directory to w, with the
// size of every file. Directories come first, then files by name.
func (m *Manager) WriteSessionTree(w io.Writer, id string) error {
	if !m.SessionExists(id) {
		return fmt.Errorf("%w: '%s'", utils.ErrSessionNotFound, id)
	}
	dir := m.paths.SessionDir(id)

	writer := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(writer, "%s/\n", id); err != nil {
		return err
	}
	if err := writeTreeLevel(writer, dir, ""); err != nil {
		m.log.WithField("session_id", id).Warnf("Failed to list session tree: %v", err)
		return fmt.Errorf("%w: listing session '%s': %w", utils.ErrFilesystem, id, err)
	}
	return writer.Flush()
}

func writeTreeLevel(w io.Writer, dirPath, indent string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return err
	}

	slices.SortFunc(entries, func(a, b os.DirEntry) int {
		if a.IsDir() != b.IsDir() {
			if a.IsDir() {
				return -1
			}
			return 1
		}
		return strings.Compare(strings.ToLower(a.Name()), strings.ToLower(b.Name()))
	})

	for i, entry := range entries {
		isLast := i == len(entries)-1
		connector := entryPrefix
		if isLast {
			connector = lastEntryPrefix
		}

		if entry.IsDir() {
			if _, err := fmt.Fprintf(w, "%s%s%s/\n", indent, connector, entry.Name()); err != nil {
				return err
			}
			next := indent + verticalLine
			if isLast {
				next = indent + indentPrefix
			}
			if err := writeTreeLevel(w, filepath.Join(dirPath, entry.Name()), next); err != nil {
				return err
			}
			continue
		}

		size := int64(0)
		if info, err := entry.Info(); err == nil {
			size = info.Size()
		}
		if _, err := fmt.Fprintf(w, "%s%s%s (%s)\n", indent, connector, entry.Name(), formatBytes(size)); err != nil {
			return err
		}
	}
	return nil
}

// formatBytes renders n with a binary unit, e.g. 1.5 KiB
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
