package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/gradebook/internal/apperr"
	"github.com/shrimpsizemoose/gradebook/internal/models"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

type RecordStore interface {
	Close() error
	Migrate() error
	Type() DatabaseType

	AddStudent(number, name string) (*models.Student, error)
	UpdateStudent(oldNumber, newNumber, newName string) error
	DeleteStudent(number string) error
	GetStudent(number string) (*models.Student, error)
	ListStudents(filter string) ([]models.Student, error)

	AddEvaluation(number string, ev models.Evaluation) (*models.Evaluation, error)
	DeleteEvaluation(number, subject string, score float64, date string) (int64, error)
	ListEvaluations(number string) ([]models.Evaluation, error)

	DistinctYears() ([]string, error)
	AggregateStats() (*models.Stats, error)
	ExportRows() ([]models.ExportRow, error)

	// WithTx runs fn in a single transaction. Any error returned by fn
	// rolls back every statement issued through tx.
	WithTx(fn func(tx Tx) error) error
}

// Tx is the write surface available inside WithTx.
type Tx interface {
	DeleteAll() error
	InsertStudent(s *models.Student) error
	InsertEvaluation(ev *models.Evaluation) error
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
	// IsUniqueViolation recognizes the driver's unique constraint error.
	IsUniqueViolation func(error) bool
	Dialect           string // goose dialect name
	MigrationsDir     string // directory under migrations/
	DBType            DatabaseType
	Now               func() time.Time
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func (s *BaseStore) Type() DatabaseType {
	return s.DBType
}

// Migrate applies the embedded goose migrations for the store's dialect.
func (s *BaseStore) Migrate() error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect(s.Dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(s.DB.DB, path.Join("migrations", s.MigrationsDir)); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	logger.Debug.Printf(strings.TrimSuffix(format, "\n"), v...)
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	logger.Error.Fatalf(format, v...)
}

func (s *BaseStore) now() time.Time {
	if s.Now != nil {
		return s.Now().Truncate(time.Second)
	}
	return time.Now().Truncate(time.Second)
}

func (s *BaseStore) uniqueViolation(err error) bool {
	return err != nil && s.IsUniqueViolation != nil && s.IsUniqueViolation(err)
}

// inTx runs fn inside a transaction; the deferred rollback is a no-op once
// the commit went through.
func (s *BaseStore) inTx(op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.DB.Beginx()
	if err != nil {
		return apperr.IO(op, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return apperr.IO(op, err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.IO(op, fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}

func (s *BaseStore) WithTx(fn func(tx Tx) error) error {
	return s.inTx("transaction", func(tx *sqlx.Tx) error {
		return fn(&txStore{base: s, tx: tx})
	})
}

func (s *BaseStore) AddStudent(number, name string) (*models.Student, error) {
	now := s.now()
	student := &models.Student{
		StudentNumber: number,
		Name:          name,
		CreatedAt:     now,
		LastModified:  now,
	}
	if err := s.insertStudent(s.DB, student); err != nil {
		return nil, err
	}
	return student, nil
}

func (s *BaseStore) insertStudent(q sqlx.Queryer, student *models.Student) error {
	query := s.Converter(`
		INSERT INTO students (student_number, name, created_at, last_modified)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`)
	err := q.QueryRowx(query,
		student.StudentNumber,
		student.Name,
		student.CreatedAt,
		student.LastModified,
	).Scan(&student.ID)
	if s.uniqueViolation(err) {
		return apperr.Duplicate("add student", "student number %s already exists", student.StudentNumber)
	}
	if err != nil {
		return apperr.IO("add student", fmt.Errorf("failed to insert student: %w", err))
	}
	return nil
}

func (s *BaseStore) UpdateStudent(oldNumber, newNumber, newName string) error {
	query := s.Converter(`
		UPDATE students
		SET student_number = ?, name = ?, last_modified = ?
		WHERE student_number = ?
	`)
	res, err := s.DB.Exec(query, newNumber, newName, s.now(), oldNumber)
	if s.uniqueViolation(err) {
		return apperr.Duplicate("update student", "student number %s already exists", newNumber)
	}
	if err != nil {
		return apperr.IO("update student", fmt.Errorf("failed to update student: %w", err))
	}
	return apperr.IO("update student",
		requireAffected(res, apperr.NotFound("update student", "no student with number %s", oldNumber)))
}

func (s *BaseStore) DeleteStudent(number string) error {
	return s.inTx("delete student", func(tx *sqlx.Tx) error {
		res, err := tx.Exec(s.Converter(`DELETE FROM students WHERE student_number = ?`), number)
		if err != nil {
			return fmt.Errorf("failed to delete student: %w", err)
		}
		return requireAffected(res, apperr.NotFound("delete student", "no student with number %s", number))
	})
}

func (s *BaseStore) GetStudent(number string) (*models.Student, error) {
	var student models.Student
	query := s.Converter(`
		SELECT id, student_number, name, created_at, last_modified
		FROM students
		WHERE student_number = ?
	`)
	err := s.DB.Get(&student, query, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("get student", "no student with number %s", number)
	}
	if err != nil {
		return nil, apperr.IO("get student", fmt.Errorf("failed to get student: %w", err))
	}
	return &student, nil
}

// ListStudents returns students ordered by number. A non-empty filter keeps
// only students whose number or name contains it; the match is
// case-sensitive on every backend, so it is applied here rather than with
// LIKE.
func (s *BaseStore) ListStudents(filter string) ([]models.Student, error) {
	var students []models.Student
	err := s.DB.Select(&students, `
		SELECT id, student_number, name, created_at, last_modified
		FROM students
		ORDER BY student_number ASC
	`)
	if err != nil {
		return nil, apperr.IO("list students", fmt.Errorf("failed to list students: %w", err))
	}

	result := make([]models.Student, 0, len(students))
	for _, st := range students {
		if filter == "" || strings.Contains(st.StudentNumber, filter) || strings.Contains(st.Name, filter) {
			result = append(result, st)
		}
	}
	return result, nil
}

func (s *BaseStore) studentID(q sqlx.Queryer, op, number string) (int64, error) {
	var id int64
	err := sqlx.Get(q, &id, s.Converter(`SELECT id FROM students WHERE student_number = ?`), number)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFound(op, "no student with number %s", number)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up student: %w", err)
	}
	return id, nil
}

func (s *BaseStore) touchStudent(e sqlx.Execer, id int64) error {
	_, err := e.Exec(s.Converter(`UPDATE students SET last_modified = ? WHERE id = ?`), s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to bump last_modified: %w", err)
	}
	return nil
}

func (s *BaseStore) AddEvaluation(number string, ev models.Evaluation) (*models.Evaluation, error) {
	err := s.inTx("add evaluation", func(tx *sqlx.Tx) error {
		id, err := s.studentID(tx, "add evaluation", number)
		if err != nil {
			return err
		}
		ev.StudentID = id
		if err := s.insertEvaluation(tx, &ev); err != nil {
			return err
		}
		return s.touchStudent(tx, id)
	})
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *BaseStore) insertEvaluation(q sqlx.Queryer, ev *models.Evaluation) error {
	query := s.Converter(`
		INSERT INTO evaluations (student_id, subject, score, evaluation_date, notes)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := q.QueryRowx(query,
		ev.StudentID,
		ev.Subject,
		ev.Score,
		ev.EvaluationDate,
		ev.Notes,
	).Scan(&ev.ID)
	if err != nil {
		return fmt.Errorf("failed to insert evaluation: %w", err)
	}
	return nil
}

// DeleteEvaluation removes every evaluation of the student that matches the
// (subject, score, date) triple exactly and returns how many went.
func (s *BaseStore) DeleteEvaluation(number, subject string, score float64, date string) (int64, error) {
	var deleted int64
	err := s.inTx("delete evaluation", func(tx *sqlx.Tx) error {
		id, err := s.studentID(tx, "delete evaluation", number)
		if err != nil {
			return err
		}

		query := s.Converter(`
			DELETE FROM evaluations
			WHERE student_id = ?
			AND subject = ?
			AND score = ?
			AND evaluation_date = ?
		`)
		res, err := tx.Exec(query, id, subject, score, date)
		if err != nil {
			return fmt.Errorf("failed to delete evaluation: %w", err)
		}
		deleted, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to count deleted evaluations: %w", err)
		}
		if deleted == 0 {
			return apperr.NotFound("delete evaluation", "no %s evaluation scored %s on %s",
				subject, models.FormatScore(&score), date)
		}
		return s.touchStudent(tx, id)
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *BaseStore) ListEvaluations(number string) ([]models.Evaluation, error) {
	evals := []models.Evaluation{}
	query := s.Converter(`
		SELECT
			e.id,
			e.student_id,
			e.subject,
			e.score,
			COALESCE(e.evaluation_date, '') AS evaluation_date,
			COALESCE(e.notes, '') AS notes
		FROM evaluations e
		JOIN students s ON s.id = e.student_id
		WHERE s.student_number = ?
		ORDER BY e.evaluation_date DESC, e.id ASC
	`)
	if err := s.DB.Select(&evals, query, number); err != nil {
		return nil, apperr.IO("list evaluations", fmt.Errorf("failed to list evaluations: %w", err))
	}
	return evals, nil
}

// DistinctYears lists the year prefixes in use plus the current year,
// ascending.
func (s *BaseStore) DistinctYears() ([]string, error) {
	var years []string
	err := s.DB.Select(&years, `
		SELECT DISTINCT substr(student_number, 1, 4) AS year
		FROM students
		WHERE length(student_number) >= 4
	`)
	if err != nil {
		return nil, apperr.IO("distinct years", fmt.Errorf("failed to list years: %w", err))
	}

	current := fmt.Sprintf("%04d", s.now().Year())
	found := false
	for _, y := range years {
		if y == current {
			found = true
			break
		}
	}
	if !found {
		years = append(years, current)
	}
	sort.Strings(years)
	return years, nil
}

func (s *BaseStore) AggregateStats() (*models.Stats, error) {
	var stats models.Stats
	err := s.DB.Get(&stats, `
		SELECT
			(SELECT COUNT(*) FROM students) AS student_count,
			(SELECT COUNT(*) FROM evaluations) AS evaluation_count,
			COALESCE((SELECT AVG(score) FROM evaluations WHERE score IS NOT NULL), 0.0) AS average_score
	`)
	if err != nil {
		return nil, apperr.IO("aggregate stats", fmt.Errorf("failed to aggregate stats: %w", err))
	}
	return &stats, nil
}

// ExportRows returns students LEFT JOIN evaluations, ordered by student
// number, then evaluation date descending.
func (s *BaseStore) ExportRows() ([]models.ExportRow, error) {
	rows := []models.ExportRow{}
	err := s.DB.Select(&rows, `
		SELECT
			s.student_number,
			s.name,
			s.created_at,
			s.last_modified,
			e.id AS evaluation_id,
			COALESCE(e.subject, '') AS subject,
			e.score,
			COALESCE(e.evaluation_date, '') AS evaluation_date,
			COALESCE(e.notes, '') AS notes
		FROM students s
		LEFT JOIN evaluations e ON s.id = e.student_id
		ORDER BY s.student_number ASC, e.evaluation_date DESC, e.id ASC
	`)
	if err != nil {
		return nil, apperr.IO("export", fmt.Errorf("failed to read export rows: %w", err))
	}
	return rows, nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

type txStore struct {
	base *BaseStore
	tx   *sqlx.Tx
}

func (t *txStore) DeleteAll() error {
	if _, err := t.tx.Exec(`DELETE FROM evaluations`); err != nil {
		return fmt.Errorf("failed to clear evaluations: %w", err)
	}
	if _, err := t.tx.Exec(`DELETE FROM students`); err != nil {
		return fmt.Errorf("failed to clear students: %w", err)
	}
	return nil
}

func (t *txStore) InsertStudent(s *models.Student) error {
	return t.base.insertStudent(t.tx, s)
}

func (t *txStore) InsertEvaluation(ev *models.Evaluation) error {
	return t.base.insertEvaluation(t.tx, ev)
}
