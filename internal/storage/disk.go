package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskUsage sums the on-disk size of the database file (with its WAL and shared-memory
// companions) and the keyword index directory. Missing paths count as zero.
func DiskUsage(databasePath, indexPath string) (int64, error) {
	var total int64
	for _, p := range []string{databasePath, databasePath + "-wal", databasePath + "-shm", indexPath} {
		if p == "" || p == "-wal" || p == "-shm" {
			continue
		}
		n, err := pathSize(p)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func pathSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	return total, err
}
