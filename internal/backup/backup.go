// Package backup keeps whole-file copies of the SQLite database.
package backup

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/gradebook/internal/apperr"
	"github.com/shrimpsizemoose/gradebook/internal/store/sqlite"
)

const (
	filePrefix  = "student_"
	fileSuffix  = ".db"
	stampLayout = "20060102_150405"
)

// sqliteMagic opens every SQLite 3 database file.
var sqliteMagic = []byte("SQLite format 3\x00")

type Entry struct {
	Path      string
	CreatedAt time.Time
	Size      int64
}

// FileName is the backup name for a copy taken at t.
func FileName(t time.Time) string {
	return filePrefix + t.Format(stampLayout) + fileSuffix
}

// Create copies dbPath into dir and returns the new backup's path.
func Create(dbPath, dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperr.IO("backup", fmt.Errorf("failed to create backup directory: %w", err))
	}
	dst := filepath.Join(dir, FileName(now))
	if err := copyFile(dbPath, dst); err != nil {
		return "", apperr.IO("backup", err)
	}
	logger.Info.Printf("Backed up %s to %s", dbPath, dst)
	return dst, nil
}

// List returns the backups in dir, newest first. A missing directory has
// no backups.
func List(dir string) ([]Entry, error) {
	items, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.IO("list backups", err)
	}

	var entries []Entry
	for _, it := range items {
		name := it.Name()
		if it.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		t, err := time.ParseInLocation(stampLayout, stamp, time.Local)
		if err != nil {
			logger.Debug.Printf("Ignoring %s in backup directory", name)
			continue
		}
		info, err := it.Info()
		if err != nil {
			return nil, apperr.IO("list backups", err)
		}
		entries = append(entries, Entry{
			Path:      filepath.Join(dir, name),
			CreatedAt: t,
			Size:      info.Size(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// Latest returns the newest backup in dir.
func Latest(dir string) (*Entry, error) {
	entries, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, apperr.NotFound("latest backup", "no backups in %s", dir)
	}
	return &entries[0], nil
}

// Due reports whether a new backup should be taken: there is none yet, or
// the newest is at least interval days old.
func Due(dir string, interval int, now time.Time) (bool, error) {
	latest, err := Latest(dir)
	if errors.Is(err, apperr.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return now.Sub(latest.CreatedAt) >= time.Duration(interval)*24*time.Hour, nil
}

// Restore swaps dbPath for a copy of the backup at src. The copy is opened,
// migrated and integrity checked before it goes live, so a bad backup never
// replaces the database. The old file is kept at PrevPath(dbPath) until
// Commit or Rollback; an open handle on it stays usable meanwhile.
func Restore(src, dbPath string) error {
	if err := checkMagic(src); err != nil {
		return err
	}

	staged := dbPath + ".restore"
	defer os.Remove(staged)
	if err := copyFile(src, staged); err != nil {
		return apperr.IO("restore", err)
	}
	if err := Verify(staged); err != nil {
		return apperr.Invalid("restore", "%s is not a usable database: %v", src, err)
	}

	prev := PrevPath(dbPath)
	if err := os.Rename(dbPath, prev); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.IO("restore", fmt.Errorf("failed to move current database aside: %w", err))
	}
	if err := os.Rename(staged, dbPath); err != nil {
		if rbErr := Rollback(dbPath); rbErr != nil {
			logger.Error.Printf("Rollback of %s failed: %v", dbPath, rbErr)
		}
		return apperr.IO("restore", fmt.Errorf("failed to move backup into place: %w", err))
	}

	logger.Info.Printf("Restored %s from %s", dbPath, src)
	return nil
}

// PrevPath is where Restore keeps the database it replaced.
func PrevPath(dbPath string) string {
	return dbPath + ".prev"
}

// Rollback puts the database replaced by Restore back in place.
func Rollback(dbPath string) error {
	prev := PrevPath(dbPath)
	if _, err := os.Stat(prev); errors.Is(err, fs.ErrNotExist) {
		return os.Remove(dbPath)
	}
	if err := os.Rename(prev, dbPath); err != nil {
		return fmt.Errorf("failed to restore %s: %w", prev, err)
	}
	logger.Info.Printf("Rolled back %s", dbPath)
	return nil
}

// Commit drops the database replaced by Restore.
func Commit(dbPath string) error {
	err := os.Remove(PrevPath(dbPath))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Verify opens path as a gradebook database, applies pending migrations and
// runs SQLite's quick_check on it.
func Verify(path string) error {
	s, err := sqlite.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer s.Close()

	var result string
	if err := s.DB.Get(&result, "PRAGMA quick_check"); err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("quick_check: %s", result)
	}
	return nil
}

func checkMagic(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return apperr.NotFound("restore", "backup %s does not exist", path)
	}
	if err != nil {
		return apperr.IO("restore", err)
	}
	defer f.Close()

	head := make([]byte, len(sqliteMagic))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, sqliteMagic) {
		return apperr.Invalid("restore", "%s is not a SQLite database", path)
	}
	return nil
}

// copyFile writes src to a temp file next to dst, syncs it and renames it
// into place.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-"+filepath.Base(dst)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("failed to move backup into place: %w", err)
	}
	return nil
}
