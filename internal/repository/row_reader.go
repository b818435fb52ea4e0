package repository

import (
	"fmt"
	"time"

	"github.com/hitoshi/cyclone/internal/store"
)

// rowReader はstore.Rowから型付きの値を読み出し、最初のエラーを保持する。
type rowReader struct {
	table string
	row   store.Row
	err   error
}

func newRowReader(table string, row store.Row) *rowReader {
	return &rowReader{table: table, row: row}
}

func (r *rowReader) keep(err error) {
	if r.err == nil && err != nil {
		r.err = fmt.Errorf("decode %s row: %w", r.table, err)
	}
}

func (r *rowReader) str(col string) string {
	v, err := r.row.String(col)
	r.keep(err)
	return v
}

func (r *rowReader) nullStr(col string) *string {
	v, err := r.row.NullString(col)
	r.keep(err)
	return v
}

func (r *rowReader) int64(col string) int64 {
	v, err := r.row.Int64(col)
	r.keep(err)
	return v
}

func (r *rowReader) bool(col string) bool {
	v, err := r.row.Bool(col)
	r.keep(err)
	return v
}

func (r *rowReader) time(col string) time.Time {
	v, err := r.row.Time(col)
	r.keep(err)
	return v
}

func (r *rowReader) nullTime(col string) *time.Time {
	v, err := r.row.NullTime(col)
	r.keep(err)
	return v
}
