// Package export writes spreadsheet snapshots of the lab database into a
// local directory and manages the files it produced.
package export

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tealeg/xlsx/v3"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/repository"
)

// MimeType is the content type of every export.
const MimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DefaultRetentionDays is used by Cleanup when the caller passes 0.
const DefaultRetentionDays = 7

const (
	stampLayout = "2006-01-02_150405"
	suffix      = ".xlsx"

	// nameAttempts bounds the _2, _3, ... suffixes tried when exports of
	// the same kind land in the same second.
	nameAttempts = 100
)

// Source dumps whole tables. *repository.SnapshotRepo implements it.
type Source interface {
	Dump(ctx context.Context, table string) (repository.Table, error)
}

// sheet maps a table to a worksheet. A nil column list exports every
// column.
type sheet struct {
	title   string
	table   string
	columns []string
}

var (
	patientColumns = []string{"patient_id", "full_name", "age", "gender", "phone_number", "address_line_1",
		"state", "pincode", "medical_history", "allergies", "insurance_policy_number", "created_at"}

	patientsBook = []sheet{{"Patients", "patients", patientColumns}}
	testsBook    = []sheet{
		{"Tests", "tests", []string{"id", "name", "description", "price", "created_at"}},
		{"Test Parameters", "test_parameters", nil},
	}
	completeBook = []sheet{
		{"Patients", "patients", nil},
		{"Tests", "tests", nil},
		{"Test Parameters", "test_parameters", nil},
		{"Bills", "bills", nil},
		{"Doctors", "doctors", nil},
		{"Patient Tests", "patient_tests", nil},
		{"Test Results", "test_results", nil},
	}
)

// Result describes a written workbook. Counts holds the number of data
// rows per table.
type Result struct {
	Filename string         `json:"filename"`
	Size     int64          `json:"size"`
	Counts   map[string]int `json:"counts"`
}

// FileInfo is one entry of List.
type FileInfo struct {
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Download is a file inlined as base64.
type Download struct {
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Exporter builds workbooks from Source into Dir.
type Exporter struct {
	dir string
	src Source
	log zerolog.Logger
	now func() time.Time
}

func New(dir string, src Source, log zerolog.Logger) *Exporter {
	return &Exporter{dir: dir, src: src, log: log, now: time.Now}
}

// Patients exports the patient register.
func (x *Exporter) Patients(ctx context.Context) (Result, error) {
	return x.write(ctx, "patients", patientsBook)
}

// Tests exports the test catalogue with its parameters.
func (x *Exporter) Tests(ctx context.Context) (Result, error) {
	return x.write(ctx, "tests", testsBook)
}

// CompleteLab exports every operational table, one sheet each.
func (x *Exporter) CompleteLab(ctx context.Context) (Result, error) {
	return x.write(ctx, "complete_lab_report", completeBook)
}

func (x *Exporter) write(ctx context.Context, prefix string, sheets []sheet) (Result, error) {
	book := xlsx.NewFile()
	counts := make(map[string]int, len(sheets))
	for _, s := range sheets {
		t, err := x.src.Dump(ctx, s.table)
		if err != nil {
			return Result{}, apperr.Internal(err, "export failed")
		}
		if s.columns != nil {
			t = project(t, s.columns)
		}
		if err := addSheet(book, s.title, t); err != nil {
			return Result{}, apperr.Internal(err, "export failed")
		}
		counts[s.table] = len(t.Rows)
	}

	if err := os.MkdirAll(x.dir, 0o755); err != nil {
		return Result{}, apperr.Internal(err, "export failed")
	}
	f, name, err := x.create(prefix + "_" + x.now().Format(stampLayout))
	if err != nil {
		return Result{}, apperr.Internal(err, "export failed")
	}
	size, err := save(f, book)
	if err != nil {
		_ = os.Remove(f.Name())
		return Result{}, apperr.Internal(err, "export failed")
	}
	x.log.Info().Str("file", name).Interface("counts", counts).Msg("export written")
	return Result{Filename: name, Size: size, Counts: counts}, nil
}

// create reserves base.xlsx, or base_N.xlsx when that name is taken, with
// an exclusive create so concurrent exports never share a file.
func (x *Exporter) create(base string) (*os.File, string, error) {
	for n := 1; n <= nameAttempts; n++ {
		name := base + suffix
		if n > 1 {
			name = fmt.Sprintf("%s_%d%s", base, n, suffix)
		}
		f, err := os.OpenFile(filepath.Join(x.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return f, name, nil
	}
	return nil, "", fmt.Errorf("no free export name for %s after %d attempts", base, nameAttempts)
}

func save(f *os.File, book *xlsx.File) (int64, error) {
	if err := book.Write(f); err != nil {
		_ = f.Close()
		return 0, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return 0, err
	}
	return st.Size(), f.Close()
}

func addSheet(book *xlsx.File, title string, t repository.Table) error {
	sh, err := book.AddSheet(title)
	if err != nil {
		return err
	}
	header := sh.AddRow()
	for _, c := range t.Columns {
		header.AddCell().SetString(c)
	}
	for _, line := range t.Rows {
		row := sh.AddRow()
		for _, v := range line {
			row.AddCell().SetString(v)
		}
	}
	return nil
}

// project keeps the named columns in the given order. Unknown names are
// dropped.
func project(t repository.Table, cols []string) repository.Table {
	idx := make([]int, 0, len(cols))
	keep := make([]string, 0, len(cols))
	for _, c := range cols {
		if i := slices.Index(t.Columns, c); i >= 0 {
			idx = append(idx, i)
			keep = append(keep, c)
		}
	}
	out := repository.Table{Name: t.Name, Columns: keep, Rows: make([][]string, 0, len(t.Rows))}
	for _, line := range t.Rows {
		r := make([]string, len(idx))
		for j, i := range idx {
			r[j] = line[i]
		}
		out.Rows = append(out.Rows, r)
	}
	return out
}

// List returns the exports in Dir, newest first.
func (x *Exporter) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(x.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []FileInfo{}, nil
	}
	if err != nil {
		return nil, apperr.Internal(err, "list exports failed")
	}
	out := []FileInfo{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{Filename: e.Name(), Size: info.Size(), ModifiedAt: info.ModTime().UTC()})
	}
	slices.SortFunc(out, func(a, b FileInfo) int {
		if c := b.ModifiedAt.Compare(a.ModifiedAt); c != 0 {
			return c
		}
		return strings.Compare(b.Filename, a.Filename)
	})
	return out, nil
}

// Download reads an export and returns it base64 encoded.
func (x *Exporter) Download(name string) (Download, error) {
	path, err := x.resolve(name)
	if err != nil {
		return Download{}, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Download{}, apperr.NotFound("export", name)
	}
	if err != nil {
		return Download{}, apperr.Internal(err, "read export failed")
	}
	return Download{Filename: name, MimeType: MimeType, Data: base64.StdEncoding.EncodeToString(b)}, nil
}

// Delete removes one export.
func (x *Exporter) Delete(name string) error {
	path, err := x.resolve(name)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return apperr.NotFound("export", name)
	}
	if err != nil {
		return apperr.Internal(err, "delete export failed")
	}
	x.log.Info().Str("file", name).Msg("export deleted")
	return nil
}

// Cleanup removes exports last modified more than days ago and returns
// the removed names.
func (x *Exporter) Cleanup(days int) ([]string, error) {
	if days < 0 {
		return nil, apperr.Validation("days must not be negative")
	}
	if days == 0 {
		days = DefaultRetentionDays
	}
	files, err := x.List()
	if err != nil {
		return nil, err
	}
	cutoff := x.now().Add(-time.Duration(days) * 24 * time.Hour)
	removed := []string{}
	for _, f := range files {
		if !f.ModifiedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(x.dir, f.Filename)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, apperr.Internal(err, "cleanup exports failed")
		}
		removed = append(removed, f.Filename)
	}
	x.log.Info().Int("removed", len(removed)).Int("days", days).Msg("exports cleaned up")
	return removed, nil
}

// resolve accepts bare .xlsx file names only.
func (x *Exporter) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) ||
		strings.HasPrefix(name, ".") || !strings.HasSuffix(name, suffix) {
		return "", apperr.Validation(fmt.Sprintf("invalid export file name %q", name))
	}
	return filepath.Join(x.dir, name), nil
}
