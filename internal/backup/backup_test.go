package backup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/gradebook/internal/apperr"
	"github.com/shrimpsizemoose/gradebook/internal/store/sqlite"
)

var testNow = time.Date(2024, 6, 10, 8, 15, 30, 0, time.Local)

// newDatabase creates a real SQLite file holding one student.
func newDatabase(t *testing.T, dir, number string) string {
	t.Helper()
	path := filepath.Join(dir, "student.db")
	s, err := sqlite.NewSQLiteStore(path)
	require.NoError(t, err)
	_, err = s.AddStudent(number, "홍길동")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	return path
}

func TestCreateAndList(t *testing.T) {
	dir := t.TempDir()
	db := newDatabase(t, dir, "20240001")
	backups := filepath.Join(dir, "backups")

	first, err := Create(db, backups, testNow)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(backups, "student_20240610_081530.db"), first)

	second, err := Create(db, backups, testNow.Add(24*time.Hour))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(backups, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(backups, "student_garbage.db"), []byte("x"), 0o644))

	entries, err := List(backups)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second, entries[0].Path)
	assert.Equal(t, first, entries[1].Path)
	assert.NotZero(t, entries[0].Size)

	latest, err := Latest(backups)
	require.NoError(t, err)
	assert.Equal(t, second, latest.Path)

	leftovers, err := filepath.Glob(filepath.Join(backups, ".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestListMissingDirectory(t *testing.T) {
	entries, err := List(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = Latest(filepath.Join(t.TempDir(), "nope"))
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestDue(t *testing.T) {
	dir := t.TempDir()
	db := newDatabase(t, dir, "20240001")
	backups := filepath.Join(dir, "backups")

	due, err := Due(backups, 7, testNow)
	require.NoError(t, err)
	assert.True(t, due, "no backups yet")

	_, err = Create(db, backups, testNow)
	require.NoError(t, err)

	due, err = Due(backups, 7, testNow.Add(6*24*time.Hour))
	require.NoError(t, err)
	assert.False(t, due)

	due, err = Due(backups, 7, testNow.Add(7*24*time.Hour))
	require.NoError(t, err)
	assert.True(t, due)
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	db := newDatabase(t, dir, "20240001")
	backups := filepath.Join(dir, "backups")

	saved, err := Create(db, backups, testNow)
	require.NoError(t, err)

	s, err := sqlite.NewSQLiteStore(db)
	require.NoError(t, err)
	_, err = s.AddStudent("20240002", "김철수")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.NoError(t, Restore(saved, db))
	assert.FileExists(t, PrevPath(db))
	require.NoError(t, Commit(db))
	assert.NoFileExists(t, PrevPath(db))

	s, err = sqlite.NewSQLiteStore(db)
	require.NoError(t, err)
	defer s.Close()

	students, err := s.ListStudents("")
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "20240001", students[0].StudentNumber)
}

func TestRestoreRejectsNonDatabase(t *testing.T) {
	dir := t.TempDir()
	db := newDatabase(t, dir, "20240001")
	before, err := os.ReadFile(db)
	require.NoError(t, err)

	bogus := filepath.Join(dir, "bogus.db")
	require.NoError(t, os.WriteFile(bogus, []byte("definitely not sqlite"), 0o644))

	err = Restore(bogus, db)
	assert.True(t, errors.Is(err, apperr.ErrInvalid))

	after, err := os.ReadFile(db)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	err = Restore(filepath.Join(dir, "missing.db"), db)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestRestoreRejectsTruncatedDatabase(t *testing.T) {
	dir := t.TempDir()
	db := newDatabase(t, dir, "20240001")
	before, err := os.ReadFile(db)
	require.NoError(t, err)

	// valid header, nothing behind it
	truncated := filepath.Join(dir, "truncated.db")
	content := append([]byte("SQLite format 3\x00"), make([]byte, 200)...)
	require.NoError(t, os.WriteFile(truncated, content, 0o644))

	err = Restore(truncated, db)
	assert.True(t, errors.Is(err, apperr.ErrInvalid), "got %v", err)

	after, err := os.ReadFile(db)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.NoFileExists(t, db+".restore")
	assert.NoFileExists(t, PrevPath(db))
}

func TestRollback(t *testing.T) {
	dir := t.TempDir()
	db := newDatabase(t, dir, "20240001")
	saved, err := Create(db, filepath.Join(dir, "backups"), testNow)
	require.NoError(t, err)

	// the live handle survives the swap and the rollback
	live, err := sqlite.NewSQLiteStore(db)
	require.NoError(t, err)
	defer live.Close()
	_, err = live.AddStudent("20240002", "김철수")
	require.NoError(t, err)

	require.NoError(t, Restore(saved, db))
	require.NoError(t, Rollback(db))
	assert.NoFileExists(t, PrevPath(db))

	students, err := live.ListStudents("")
	require.NoError(t, err)
	assert.Len(t, students, 2)

	reopened, err := sqlite.NewSQLiteStore(db)
	require.NoError(t, err)
	defer reopened.Close()
	students, err = reopened.ListStudents("")
	require.NoError(t, err)
	assert.Len(t, students, 2)
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	db := newDatabase(t, dir, "20240001")
	assert.NoError(t, Verify(db))

	garbage := filepath.Join(dir, "garbage.db")
	require.NoError(t, os.WriteFile(garbage, []byte("SQLite format 3\x00garbage garbage garbage"), 0o644))
	assert.Error(t, Verify(garbage))
}
