package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Filter はWHERE句の条件。複数指定した場合はANDで結合される。
type Filter struct {
	column string
	op     string
	value  any
	values []any
	sub    *Query
}

// Eq は column = value の条件を返す。
func Eq(column string, value any) Filter {
	return Filter{column: column, op: "=", value: value}
}

// Gt は column > value の条件を返す。
func Gt(column string, value any) Filter {
	return Filter{column: column, op: ">", value: value}
}

// Lt は column < value の条件を返す。
func Lt(column string, value any) Filter {
	return Filter{column: column, op: "<", value: value}
}

// In は column IN (values...) の条件を返す。valuesが空の場合は常に偽になる。
func In(column string, values ...any) Filter {
	return Filter{column: column, op: "IN", values: values}
}

// InSelect は column IN (SELECT ...) の条件を返す。
// subは1カラムだけを選択するクエリでなければならない。
// 認可済み集合への所属を条件にした単一ステートメントの更新・削除に使う。
func InSelect(column string, sub Query) Filter {
	return Filter{column: column, op: "IN SELECT", sub: &sub}
}

// Order はORDER BYの指定。
type Order struct {
	Column string
	Desc   bool
}

// Query はSELECTの指定。
type Query struct {
	Table   string
	Columns []string // 空の場合はテーブル定義の全カラム
	Filters []Filter
	OrderBy []Order
	Limit   int
}

// builder はプレースホルダ番号と引数を管理しながらSQLを組み立てる。
type builder struct {
	schema Schema
	scope  Scope
	args   []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *builder) table(name string) (Table, error) {
	t, ok := b.schema[name]
	if !ok {
		return Table{}, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	if !b.scope.canRead(name) {
		return Table{}, fmt.Errorf("%w: %s scope cannot read %q", ErrScopeDenied, b.scope, name)
	}
	return t, nil
}

func (b *builder) column(t Table, name string) (string, error) {
	if _, ok := t.Column(name); !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Name, name)
	}
	return pq.QuoteIdentifier(name), nil
}

func (b *builder) columnList(t Table, names []string) (string, error) {
	if len(names) == 0 {
		names = t.ColumnNames()
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		q, err := b.column(t, n)
		if err != nil {
			return "", err
		}
		quoted[i] = q
	}
	return strings.Join(quoted, ", "), nil
}

func (b *builder) where(t Table, filters []Filter) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		col, err := b.column(t, f.column)
		if err != nil {
			return "", err
		}
		switch f.op {
		case "=", ">", "<":
			parts = append(parts, col+" "+f.op+" "+b.bind(f.value))
		case "IN":
			if len(f.values) == 0 {
				parts = append(parts, "FALSE")
				continue
			}
			ph := make([]string, len(f.values))
			for i, v := range f.values {
				ph[i] = b.bind(v)
			}
			parts = append(parts, col+" IN ("+strings.Join(ph, ", ")+")")
		case "IN SELECT":
			if len(f.sub.Columns) != 1 {
				return "", fmt.Errorf("sub query for %s must select exactly one column", f.column)
			}
			sub, err := b.selectSQL(*f.sub)
			if err != nil {
				return "", err
			}
			parts = append(parts, col+" IN ("+sub+")")
		default:
			return "", fmt.Errorf("unsupported filter operator %q", f.op)
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

func (b *builder) selectSQL(q Query) (string, error) {
	t, err := b.table(q.Table)
	if err != nil {
		return "", err
	}
	cols, err := b.columnList(t, q.Columns)
	if err != nil {
		return "", err
	}
	where, err := b.where(t, q.Filters)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + cols + " FROM " + pq.QuoteIdentifier(t.Name) + where)

	if len(q.OrderBy) > 0 {
		orders := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			col, err := b.column(t, o.Column)
			if err != nil {
				return "", err
			}
			if o.Desc {
				col += " DESC"
			}
			orders[i] = col
		}
		sb.WriteString(" ORDER BY " + strings.Join(orders, ", "))
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	return sb.String(), nil
}

func (b *builder) insertSQL(table string, values Row, onConflict []string) (string, error) {
	t, err := b.writable(table)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", fmt.Errorf("insert into %s: no values", table)
	}

	names := sortedKeys(values)
	cols := make([]string, len(names))
	ph := make([]string, len(names))
	for i, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return "", fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, n)
		}
		if values[n] == nil && !c.Nullable {
			return "", fmt.Errorf("%w: %s.%s", ErrNullViolation, table, n)
		}
		cols[i] = pq.QuoteIdentifier(n)
		ph[i] = b.bind(values[n])
	}

	returning, _ := b.columnList(t, nil)
	sql := "INSERT INTO " + pq.QuoteIdentifier(t.Name) +
		" (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(ph, ", ") + ")"
	if len(onConflict) > 0 {
		target, err := b.columnList(t, onConflict)
		if err != nil {
			return "", err
		}
		sql += " ON CONFLICT (" + target + ") DO NOTHING"
	}
	return sql + " RETURNING " + returning, nil
}

func (b *builder) updateSQL(table string, set Row, filters []Filter) (string, error) {
	t, err := b.writable(table)
	if err != nil {
		return "", err
	}
	if len(set) == 0 {
		return "", fmt.Errorf("update %s: no values", table)
	}
	if len(filters) == 0 {
		return "", fmt.Errorf("update %s: refusing to update without a predicate", table)
	}

	names := sortedKeys(set)
	assigns := make([]string, len(names))
	for i, n := range names {
		c, ok := t.Column(n)
		if !ok {
			return "", fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, n)
		}
		if set[n] == nil && !c.Nullable {
			return "", fmt.Errorf("%w: %s.%s", ErrNullViolation, table, n)
		}
		assigns[i] = pq.QuoteIdentifier(n) + " = " + b.bind(set[n])
	}

	where, err := b.where(t, filters)
	if err != nil {
		return "", err
	}
	returning, _ := b.columnList(t, nil)
	return "UPDATE " + pq.QuoteIdentifier(t.Name) + " SET " + strings.Join(assigns, ", ") +
		where + " RETURNING " + returning, nil
}

func (b *builder) deleteSQL(table string, filters []Filter) (string, error) {
	t, err := b.writable(table)
	if err != nil {
		return "", err
	}
	if len(filters) == 0 {
		return "", fmt.Errorf("delete from %s: refusing to delete without a predicate", table)
	}
	where, err := b.where(t, filters)
	if err != nil {
		return "", err
	}
	returning, _ := b.columnList(t, nil)
	return "DELETE FROM " + pq.QuoteIdentifier(t.Name) + where + " RETURNING " + returning, nil
}

func (b *builder) writable(table string) (Table, error) {
	if !b.scope.canWrite() {
		return Table{}, fmt.Errorf("%w: %s scope cannot write %q", ErrScopeDenied, b.scope, table)
	}
	return b.table(table)
}
