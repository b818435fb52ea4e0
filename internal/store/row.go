package store

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"
)

// Row はカラム名から値へのマップ。読み取り結果と書き込み値の両方に使う。
type Row map[string]any

func sortedKeys(r Row) []string {
	return slices.Sorted(maps.Keys(r))
}

// validate は必須カラムのNULLを検出する。
func (r Row) validate(t Table) error {
	for _, c := range t.Columns {
		v, ok := r[c.Name]
		if !ok {
			continue
		}
		if v == nil && !c.Nullable {
			return fmt.Errorf("%w: %s.%s", ErrNullViolation, t.Name, c.Name)
		}
	}
	return nil
}

// String は文字列カラムの値を返す。
// lib/pqはuuid等を[]byteで返すため、[]byteも文字列として扱う。
func (r Row) String(col string) (string, error) {
	switch v := r[col].(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("%w: %s is null", ErrInvalidRow, col)
	default:
		return "", fmt.Errorf("%w: %s has type %T, want string", ErrInvalidRow, col, v)
	}
}

// NullString はNULL許容の文字列カラムの値を返す。
func (r Row) NullString(col string) (*string, error) {
	if r[col] == nil {
		return nil, nil
	}
	s, err := r.String(col)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Int64 は整数カラムの値を返す。
func (r Row) Int64(col string) (int64, error) {
	switch v := r[col].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case nil:
		return 0, fmt.Errorf("%w: %s is null", ErrInvalidRow, col)
	default:
		return 0, fmt.Errorf("%w: %s has type %T, want int64", ErrInvalidRow, col, v)
	}
}

// Bool は真偽値カラムの値を返す。
func (r Row) Bool(col string) (bool, error) {
	switch v := r[col].(type) {
	case bool:
		return v, nil
	case nil:
		return false, fmt.Errorf("%w: %s is null", ErrInvalidRow, col)
	default:
		return false, fmt.Errorf("%w: %s has type %T, want bool", ErrInvalidRow, col, v)
	}
}

// Time は時刻カラムの値を返す。
func (r Row) Time(col string) (time.Time, error) {
	switch v := r[col].(type) {
	case time.Time:
		return v, nil
	case nil:
		return time.Time{}, fmt.Errorf("%w: %s is null", ErrInvalidRow, col)
	default:
		return time.Time{}, fmt.Errorf("%w: %s has type %T, want time", ErrInvalidRow, col, v)
	}
}

// NullTime はNULL許容の時刻カラムの値を返す。
func (r Row) NullTime(col string) (*time.Time, error) {
	if r[col] == nil {
		return nil, nil
	}
	t, err := r.Time(col)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
