package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// DiskSpaceInfo contains disk space information
type DiskSpaceInfo struct {
	Total     uint64 `json:"total"`     // Total disk space in bytes
	Free      uint64 `json:"free"`      // Free disk space in bytes
	Available uint64 `json:"available"` // Available to non-root users
	UsedPct   int    `json:"used_pct"`  // Percentage of disk used
}

// DiskSpace reports the volume holding path. Paths that do not exist yet are
// measured through their nearest existing ancestor.
func DiskSpace(path string) (*DiskSpaceInfo, error) {
	dir, err := existingAncestor(path)
	if err != nil {
		return nil, err
	}
	total, free, available, err := statDisk(dir)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to get disk stats for %s: %w", dir, err)
	}
	info := &DiskSpaceInfo{Total: total, Free: free, Available: available}
	if total > 0 {
		info.UsedPct = int(100 * (total - free) / total)
	}
	return info, nil
}

func existingAncestor(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("vault: invalid path: %w", err)
	}
	for {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("vault: failed to stat %s: %w", p, err)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p, nil
		}
		p = parent
	}
}

// CheckDiskSpace returns disk space information for the vault file.
func (s *Session) CheckDiskSpace() (*DiskSpaceInfo, error) {
	return DiskSpace(s.path)
}

// checkDiskSpaceForWrite fails with ErrInsufficientDisk when fewer than
// MinDiskSpaceBytes, or twice dataSize, are available. Failing to measure
// the disk only logs a warning.
func checkDiskSpaceForWrite(path string, dataSize int, logger *slog.Logger) error {
	info, err := DiskSpace(path)
	if err != nil {
		logger.Warn("failed to check disk space", slog.Any("error", err))
		return nil
	}

	required := uint64(MinDiskSpaceBytes)
	if uint64(dataSize)*2 > required {
		required = uint64(dataSize) * 2
	}

	if info.Available < required {
		return fmt.Errorf("%w: only %d MB available, need at least %d MB",
			ErrInsufficientDisk,
			info.Available/(1024*1024),
			required/(1024*1024))
	}

	if info.UsedPct >= DiskWarningPercent {
		logger.Warn("disk is almost full, consider freeing space", slog.Int("used_pct", info.UsedPct))
	}
	return nil
}
