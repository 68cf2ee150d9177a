package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/gradebook/internal/apperr"
	"github.com/shrimpsizemoose/gradebook/internal/backup"
	"github.com/shrimpsizemoose/gradebook/internal/config"
	"github.com/shrimpsizemoose/gradebook/internal/export"
	"github.com/shrimpsizemoose/gradebook/internal/ident"
	"github.com/shrimpsizemoose/gradebook/internal/metrics"
	"github.com/shrimpsizemoose/gradebook/internal/models"
	"github.com/shrimpsizemoose/gradebook/internal/store"
	"github.com/shrimpsizemoose/gradebook/internal/validate"
)

var errBackupUnsupported = errors.New("backups are only supported for SQLite databases")

// Service owns the one store handle for the life of the program. It is
// opened by NewService, closed by Close and swapped by Restore.
type Service struct {
	Config *config.Manager
	Store  store.RecordStore
	Now    func() time.Time

	openStore func(dsn string) (store.RecordStore, error)
}

func NewService(cfg *config.Manager) (*Service, error) {
	st, err := NewStore(cfg.Config.DatabasePath)
	if err != nil {
		return nil, apperr.IO("open store", fmt.Errorf("failed to init store: %w", err))
	}

	s := &Service{
		Config: cfg,
		Store:  st,
		Now:    time.Now,
	}

	if cfg.Config.BackupAuto {
		if _, err := s.AutoBackup(); err != nil {
			logger.Error.Printf("Auto backup failed: %v", err)
		}
	}

	return s, nil
}

func (s *Service) Close() error {
	if s.Store == nil {
		return nil
	}
	err := s.Store.Close()
	s.Store = nil
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

// Lang is the language used for user facing messages.
func (s *Service) Lang() string {
	return s.Config.Config.Language
}

// DefaultYear is the year preselected for new student numbers.
func (s *Service) DefaultYear() string {
	return fmt.Sprintf("%04d", s.Config.Config.DefaultYear)
}

func (s *Service) track(op string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperr.KindOf(err).String()
		logger.Debug.Printf("%s failed: %v", op, err)
	}
	metrics.Observe(op, started, outcome)
}

type studentInput struct {
	Year   string `db:"year" validate:"year4"`
	Suffix string `db:"student_number" validate:"student_suffix"`
	Name   string `db:"name" validate:"person_name"`
}

func (in *studentInput) check(op string) (string, error) {
	in.Year = strings.TrimSpace(in.Year)
	in.Suffix = strings.TrimSpace(in.Suffix)
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return "", apperr.Invalid(op, "%v", err)
	}
	return ident.Compose(in.Year, in.Suffix), nil
}

// AddStudent validates the year, the number suffix and the name, then adds
// the student under the composed number.
func (s *Service) AddStudent(year, suffix, name string) (student *models.Student, err error) {
	defer func(started time.Time) { s.track("add_student", started, err) }(time.Now())

	in := studentInput{Year: year, Suffix: suffix, Name: name}
	number, err := in.check("add student")
	if err != nil {
		return nil, err
	}
	return s.Store.AddStudent(number, in.Name)
}

func (s *Service) UpdateStudent(oldNumber, year, suffix, name string) (err error) {
	defer func(started time.Time) { s.track("update_student", started, err) }(time.Now())

	oldNumber = strings.TrimSpace(oldNumber)
	if oldNumber == "" {
		return apperr.Invalid("update student", "select a student to update")
	}
	in := studentInput{Year: year, Suffix: suffix, Name: name}
	number, err := in.check("update student")
	if err != nil {
		return err
	}
	return s.Store.UpdateStudent(oldNumber, number, in.Name)
}

func (s *Service) DeleteStudent(number string) (err error) {
	defer func(started time.Time) { s.track("delete_student", started, err) }(time.Now())

	number = strings.TrimSpace(number)
	if number == "" {
		return apperr.Invalid("delete student", "select a student to delete")
	}
	return s.Store.DeleteStudent(number)
}

func (s *Service) GetStudent(number string) (*models.Student, error) {
	return s.Store.GetStudent(strings.TrimSpace(number))
}

func (s *Service) ListStudents(filter string) ([]models.Student, error) {
	return s.Store.ListStudents(strings.TrimSpace(filter))
}

type evaluationInput struct {
	Subject string `db:"subject" validate:"required"`
	Score   string `db:"score" validate:"score"`
	Date    string `db:"evaluation_date" validate:"iso_date"`
}

func (in *evaluationInput) check(op string) (float64, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	in.Score = strings.TrimSpace(in.Score)
	in.Date = strings.TrimSpace(in.Date)
	if err := validate.Struct(in); err != nil {
		return 0, apperr.Invalid(op, "%v", err)
	}
	score, _ := validate.ParseScore(in.Score)
	return score, nil
}

func (s *Service) AddEvaluation(number, subject, score, date, notes string) (ev *models.Evaluation, err error) {
	defer func(started time.Time) { s.track("add_evaluation", started, err) }(time.Now())

	number = strings.TrimSpace(number)
	if number == "" {
		return nil, apperr.Invalid("add evaluation", "select a student first")
	}
	in := evaluationInput{Subject: subject, Score: score, Date: date}
	value, err := in.check("add evaluation")
	if err != nil {
		return nil, err
	}

	ev, err = s.Store.AddEvaluation(number, models.Evaluation{
		Subject:        in.Subject,
		Score:          &value,
		EvaluationDate: in.Date,
		Notes:          strings.TrimSpace(notes),
	})
	if err != nil {
		return nil, err
	}
	metrics.ScoreHistogram.Observe(value)
	return ev, nil
}

// evaluationKey selects stored evaluations. The score only has to be a
// number: rows imported with an out of range score stay deletable.
type evaluationKey struct {
	Subject string `db:"subject" validate:"required"`
	Score   string `db:"score" validate:"required,numeric"`
	Date    string `db:"evaluation_date" validate:"iso_date"`
}

func (k *evaluationKey) check(op string) (float64, error) {
	k.Subject = strings.TrimSpace(k.Subject)
	k.Score = strings.TrimSpace(k.Score)
	k.Date = strings.TrimSpace(k.Date)
	if err := validate.Struct(k); err != nil {
		return 0, apperr.Invalid(op, "%v", err)
	}
	score, err := strconv.ParseFloat(k.Score, 64)
	if err != nil {
		return 0, apperr.Invalid(op, "score %q is not a number", k.Score)
	}
	return score, nil
}

// DeleteEvaluation removes every evaluation of the student matching the
// subject, score and date, and returns how many were removed.
func (s *Service) DeleteEvaluation(number, subject, score, date string) (n int64, err error) {
	defer func(started time.Time) { s.track("delete_evaluation", started, err) }(time.Now())

	number = strings.TrimSpace(number)
	if number == "" {
		return 0, apperr.Invalid("delete evaluation", "select a student first")
	}
	key := evaluationKey{Subject: subject, Score: score, Date: date}
	value, err := key.check("delete evaluation")
	if err != nil {
		return 0, err
	}
	return s.Store.DeleteEvaluation(number, key.Subject, value, key.Date)
}

func (s *Service) ListEvaluations(number string) ([]models.Evaluation, error) {
	return s.Store.ListEvaluations(strings.TrimSpace(number))
}

func (s *Service) Years() ([]string, error) {
	return s.Store.DistinctYears()
}

func (s *Service) Stats() (*models.Stats, error) {
	return s.Store.AggregateStats()
}

func (s *Service) ExportCSV(path string) (n int, err error) {
	defer func(started time.Time) { s.track("export_csv", started, err) }(time.Now())
	return export.ExportCSV(s.Store, path)
}

func (s *Service) ExportXLSX(path string) (n int, err error) {
	defer func(started time.Time) { s.track("export_xlsx", started, err) }(time.Now())
	return export.ExportXLSX(s.Store, path)
}

// ImportCSV replaces every student and evaluation with the file's content.
func (s *Service) ImportCSV(path string) (report *export.ImportReport, err error) {
	defer func(started time.Time) { s.track("import_csv", started, err) }(time.Now())

	report, err = export.ImportCSV(s.Store, path, s.Now())
	if err != nil {
		return nil, err
	}
	metrics.ImportedRows.WithLabelValues("student").Add(float64(report.Students))
	metrics.ImportedRows.WithLabelValues("evaluation").Add(float64(report.Evaluations))
	metrics.ImportedRows.WithLabelValues("skipped").Add(float64(report.Skipped))
	return report, nil
}

func (s *Service) sqlitePath(op string) (string, error) {
	if s.Store != nil && s.Store.Type() != store.DBTypeSQLite {
		return "", apperr.Wrap(apperr.KindIO, op, errBackupUnsupported)
	}
	if store.DetectType(s.Config.Config.DatabasePath) != store.DBTypeSQLite {
		return "", apperr.Wrap(apperr.KindIO, op, errBackupUnsupported)
	}
	return s.Config.Config.DatabasePath, nil
}

// Backup copies the database file into the backup directory.
func (s *Service) Backup() (path string, err error) {
	defer func(started time.Time) { s.track("backup", started, err) }(time.Now())

	db, err := s.sqlitePath("backup")
	if err != nil {
		return "", err
	}
	path, err = backup.Create(db, s.Config.Config.BackupDir, s.Now())
	if err != nil {
		return "", err
	}
	metrics.BackupsTotal.WithLabelValues("create").Inc()
	return path, nil
}

// AutoBackup takes a backup when the newest one is older than the
// configured interval. It returns "" when none was due.
func (s *Service) AutoBackup() (string, error) {
	if _, err := s.sqlitePath("auto backup"); err != nil {
		logger.Debug.Println("Skipping auto backup for non-SQLite database")
		return "", nil
	}
	due, err := backup.Due(s.Config.Config.BackupDir, s.Config.Config.BackupInterval, s.Now())
	if err != nil {
		return "", err
	}
	if !due {
		return "", nil
	}
	return s.Backup()
}

func (s *Service) Backups() ([]backup.Entry, error) {
	return backup.List(s.Config.Config.BackupDir)
}

// Restore replaces the database with the backup at src, or with the newest
// backup when src is empty. The current handle stays open until the
// restored file has been opened; on any failure the service keeps working
// on the previous data.
func (s *Service) Restore(src string) (restored string, err error) {
	defer func(started time.Time) { s.track("restore", started, err) }(time.Now())

	db, err := s.sqlitePath("restore")
	if err != nil {
		return "", err
	}
	if src == "" {
		latest, err := backup.Latest(s.Config.Config.BackupDir)
		if err != nil {
			return "", err
		}
		src = latest.Path
	}

	if err := backup.Restore(src, db); err != nil {
		return "", err
	}

	st, err := s.open(db)
	if err != nil {
		if rbErr := backup.Rollback(db); rbErr != nil {
			logger.Error.Printf("Rollback after failed restore: %v", rbErr)
		}
		return "", apperr.IO("restore", fmt.Errorf("failed to open restored database: %w", err))
	}

	old := s.Store
	s.Store = st
	if old != nil {
		if err := old.Close(); err != nil {
			logger.Error.Printf("Closing replaced store: %v", err)
		}
	}
	if err := backup.Commit(db); err != nil {
		logger.Error.Printf("Removing replaced database: %v", err)
	}

	metrics.BackupsTotal.WithLabelValues("restore").Inc()
	return src, nil
}

func (s *Service) open(dsn string) (store.RecordStore, error) {
	if s.openStore != nil {
		return s.openStore(dsn)
	}
	return NewStore(dsn)
}
