//go:build integration

package postgres

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shrimpsizemoose/gradebook/internal/apperr"
	"github.com/shrimpsizemoose/gradebook/internal/models"
	"github.com/shrimpsizemoose/gradebook/internal/store"
)

// setupTestDB starts a throwaway Postgres container and applies the schema.
func setupTestDB(t *testing.T) (*PostgresStore, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)

	pg, err := postgres.RunContainer(ctx,
		tc.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("gradebook"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := NewPostgresStore(dsn)
	require.NoError(t, err, "Failed to create store")

	cleanup := func() {
		s.Close()
		pg.Terminate(context.Background())
		cancel()
	}

	return s, cleanup
}

func ptr(v float64) *float64 {
	return &v
}

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		log.Println("Skipping Postgres integration tests. Use -short=false to run them.")
		os.Exit(0)
	}
	log.Println("Starting Postgres store tests...")
	code := m.Run()
	log.Println("Finished Postgres store tests")
	os.Exit(code)
}

func TestStudentLifecycle(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	assert.Equal(t, store.DBTypePostgres, s.Type())

	t.Run("add", func(t *testing.T) {
		got, err := s.AddStudent("2024001", "홍길동")
		require.NoError(t, err)
		assert.NotZero(t, got.ID)
		assert.Equal(t, got.CreatedAt, got.LastModified)
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := s.AddStudent("2024001", "박민수")
		assert.True(t, errors.Is(err, apperr.ErrDuplicate))
	})

	t.Run("update collision", func(t *testing.T) {
		_, err := s.AddStudent("2024002", "김철수")
		require.NoError(t, err)
		err = s.UpdateStudent("2024002", "2024001", "김철수")
		assert.True(t, errors.Is(err, apperr.ErrDuplicate))
	})

	t.Run("update missing", func(t *testing.T) {
		err := s.UpdateStudent("1999000", "1999001", "없음")
		assert.True(t, errors.Is(err, apperr.ErrNotFound))
	})

	t.Run("list", func(t *testing.T) {
		students, err := s.ListStudents("")
		require.NoError(t, err)
		require.Len(t, students, 2)
		assert.Equal(t, "2024001", students[0].StudentNumber)
	})
}

func TestEvaluationsAndCascade(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := s.AddStudent("2024004", "정수진")
	require.NoError(t, err)

	for _, ev := range []models.Evaluation{
		{Subject: "영어", Score: ptr(90), EvaluationDate: "2024-01-20"},
		{Subject: "영어", Score: ptr(90), EvaluationDate: "2024-01-20"},
		{Subject: "수학", Score: ptr(81), EvaluationDate: "2024-02-01"},
	} {
		_, err := s.AddEvaluation("2024004", ev)
		require.NoError(t, err)
	}

	evals, err := s.ListEvaluations("2024004")
	require.NoError(t, err)
	require.Len(t, evals, 3)
	assert.Equal(t, "2024-02-01", evals[0].EvaluationDate)

	n, err := s.DeleteEvaluation("2024004", "영어", 90, "2024-01-20")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	stats, err := s.AggregateStats()
	require.NoError(t, err)
	assert.Equal(t, models.Stats{Students: 1, Evaluations: 1, AverageScore: 81}, *stats)

	require.NoError(t, s.DeleteStudent("2024004"))

	var left int
	require.NoError(t, s.DB.Get(&left, "SELECT COUNT(*) FROM evaluations"))
	assert.Equal(t, 0, left)
}

func TestExportRowsAndYears(t *testing.T) {
	s, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := s.AddStudent("20220001", "홍길동")
	require.NoError(t, err)
	_, err = s.AddStudent("20230001", "김철수")
	require.NoError(t, err)
	_, err = s.AddEvaluation("20220001", models.Evaluation{
		Subject: "수학", Score: ptr(85.5), EvaluationDate: "2024-01-20",
	})
	require.NoError(t, err)

	rows, err := s.ExportRows()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NotNil(t, rows[0].EvaluationID)
	assert.Nil(t, rows[1].EvaluationID)

	years, err := s.DistinctYears()
	require.NoError(t, err)
	assert.Contains(t, years, "2022")
	assert.Contains(t, years, "2023")
}
