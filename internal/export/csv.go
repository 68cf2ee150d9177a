package export

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/gradebook/internal/apperr"
	"github.com/shrimpsizemoose/gradebook/internal/ident"
	"github.com/shrimpsizemoose/gradebook/internal/models"
	"github.com/shrimpsizemoose/gradebook/internal/store"
	"github.com/shrimpsizemoose/gradebook/internal/validate"
)

// Header is the fixed column set of the joined students/evaluations file.
var Header = []string{"년도", "학번", "이름", "등록일", "최근평가일", "과목", "점수", "평가일", "비고"}

const (
	colYear = iota
	colNumber
	colStudentName
	colCreated
	colModified
	colSubject
	colScore
	colDate
	colNotes
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table renders export rows as text cells in Header order.
func Table(rows []models.ExportRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			ident.Year(r.StudentNumber),
			r.StudentNumber,
			r.Name,
			formatTimestamp(r.CreatedAt),
			formatTimestamp(r.LastModified),
			r.Subject,
			models.FormatScore(r.Score),
			r.EvaluationDate,
			r.Notes,
		})
	}
	return out
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(models.TimestampLayout)
}

// WriteCSV writes the BOM, the header and one line per row.
func WriteCSV(w io.Writer, rows []models.ExportRow) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	if err := cw.WriteAll(Table(rows)); err != nil {
		return err
	}
	return cw.Error()
}

// ExportCSV writes the joined view of st to path and returns the number of
// data rows written.
func ExportCSV(st store.RecordStore, path string) (int, error) {
	rows, err := st.ExportRows()
	if err != nil {
		return 0, err
	}

	err = writeFile(path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		if err := WriteCSV(bw, rows); err != nil {
			return err
		}
		return bw.Flush()
	})
	if err != nil {
		return 0, apperr.IO("export csv", err)
	}

	logger.Info.Printf("Exported %d rows to %s", len(rows), path)
	return len(rows), nil
}

// writeFile fills a temp file next to path and renames it into place, so an
// existing file is only replaced by a complete one.
func writeFile(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}

// ImportRecord is one parsed data line. Evaluation is nil when the line
// carries no usable evaluation; Skipped marks lines that had evaluation
// fields which could not be used.
type ImportRecord struct {
	Line       int
	Student    models.Student
	Evaluation *models.Evaluation
	Skipped    bool
}

type ImportReport struct {
	Students    int `json:"students"`
	Evaluations int `json:"evaluations"`
	Skipped     int `json:"skipped"`
}

// ReadCSV checks the header and parses every data line. Nothing is written
// anywhere; the caller decides what to do with the records. Empty
// timestamps become now.
func ReadCSV(r io.Reader, now time.Time) ([]ImportRecord, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	got, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, apperr.New(apperr.KindFormatMismatch, "import csv",
			"expected %s, received an empty file", strings.Join(Header, ","))
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIO, "import csv", fmt.Errorf("failed to read header: %w", err))
	}
	if !equalHeader(got) {
		return nil, apperr.New(apperr.KindFormatMismatch, "import csv",
			"expected %s, received %s", strings.Join(Header, ","), strings.Join(got, ","))
	}

	var records []ImportRecord
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindIO, "import csv", err)
		}
		rec, err := parseRecord(line, fields, now)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func equalHeader(got []string) bool {
	if len(got) != len(Header) {
		return false
	}
	for i := range Header {
		if got[i] != Header[i] {
			return false
		}
	}
	return true
}

func parseRecord(line int, f []string, now time.Time) (ImportRecord, error) {
	number := strings.TrimSpace(f[colNumber])
	if number == "" {
		return ImportRecord{}, apperr.Invalid("import csv", "line %d: empty student number", line)
	}

	created, err := parseTimestamp(f[colCreated], now)
	if err != nil {
		return ImportRecord{}, apperr.Invalid("import csv", "line %d: bad %s %q", line, Header[colCreated], f[colCreated])
	}
	modified, err := parseTimestamp(f[colModified], now)
	if err != nil {
		return ImportRecord{}, apperr.Invalid("import csv", "line %d: bad %s %q", line, Header[colModified], f[colModified])
	}
	// last_modified never precedes created_at
	if modified.Before(created) {
		logger.Debug.Printf("Line %d: %s before %s, using %s", line, Header[colModified], Header[colCreated], Header[colCreated])
		modified = created
	}

	rec := ImportRecord{
		Line: line,
		Student: models.Student{
			StudentNumber: number,
			Name:          f[colStudentName],
			CreatedAt:     created,
			LastModified:  modified,
		},
	}

	subject, scoreText, date := f[colSubject], f[colScore], f[colDate]
	if subject == "" && scoreText == "" && date == "" {
		return rec, nil
	}
	rec.Skipped = true
	if subject == "" || scoreText == "" || date == "" {
		logger.Debug.Printf("Line %d: skipping incomplete evaluation", line)
		return rec, nil
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(scoreText), 64)
	if err != nil || math.IsNaN(score) {
		logger.Debug.Printf("Line %d: skipping evaluation with score %q", line, scoreText)
		return rec, nil
	}
	if !validate.IsValidDate(date) {
		logger.Debug.Printf("Line %d: skipping evaluation dated %q", line, date)
		return rec, nil
	}
	rec.Skipped = false

	rec.Evaluation = &models.Evaluation{
		Subject:        subject,
		Score:          &score,
		EvaluationDate: date,
		Notes:          f[colNotes],
	}
	return rec, nil
}

func parseTimestamp(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.Truncate(time.Second), nil
	}
	return time.ParseInLocation(models.TimestampLayout, s, time.Local)
}

// Import replaces the whole content of st with the file. The header is
// checked and every line parsed before the store is touched; the replace
// itself runs in one transaction.
func Import(st store.RecordStore, r io.Reader, now time.Time) (*ImportReport, error) {
	records, err := ReadCSV(r, now)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{}
	err = st.WithTx(func(tx store.Tx) error {
		*report = ImportReport{}
		if err := tx.DeleteAll(); err != nil {
			return err
		}

		ids := make(map[string]int64)
		for _, rec := range records {
			id, seen := ids[rec.Student.StudentNumber]
			if !seen {
				student := rec.Student
				if err := tx.InsertStudent(&student); err != nil {
					return fmt.Errorf("line %d: %w", rec.Line, err)
				}
				id = student.ID
				ids[student.StudentNumber] = id
				report.Students++
			}

			if rec.Evaluation == nil {
				if rec.Skipped {
					report.Skipped++
				}
				continue
			}
			ev := *rec.Evaluation
			ev.StudentID = id
			if err := tx.InsertEvaluation(&ev); err != nil {
				return fmt.Errorf("line %d: %w", rec.Line, err)
			}
			report.Evaluations++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info.Printf("Imported %d students, %d evaluations (%d skipped)",
		report.Students, report.Evaluations, report.Skipped)
	return report, nil
}

// ImportCSV opens path and imports it.
func ImportCSV(st store.RecordStore, path string, now time.Time) (*ImportReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperr.IO("import csv", err)
	}
	defer f.Close()
	return Import(st, f, now)
}
