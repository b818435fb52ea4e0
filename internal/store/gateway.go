package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound は単一行取得で該当行が無いことを表す。
	ErrNotFound = errors.New("store: no rows")
	// ErrMultipleRows は単一行取得で2行以上が該当したことを表す。
	ErrMultipleRows = errors.New("store: more than one row")
	// ErrScopeDenied は実行権限レベルで許可されない操作を表す。
	ErrScopeDenied = errors.New("store: operation not permitted in scope")
	// ErrUnknownTable はスキーマ定義に無いテーブルを表す。
	ErrUnknownTable = errors.New("store: unknown table")
	// ErrUnknownColumn はスキーマ定義に無いカラムを表す。
	ErrUnknownColumn = errors.New("store: unknown column")
	// ErrNullViolation は必須カラムへのNULLを表す。
	ErrNullViolation = errors.New("store: null in required column")
	// ErrInvalidRow は読み取った行の型が期待と異なることを表す。
	ErrInvalidRow = errors.New("store: invalid row")
)

// Querier はSQL実行の抽象。*sql.DB と *sql.Tx の両方が満たす。
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Gateway はテーブル単位の汎用CRUDを提供する。
// すべての操作は単一ステートメントで実行され、呼び出しをまたぐ原子性は保証しない。
type Gateway struct {
	db     Querier
	scope  Scope
	schema Schema
}

// NewGateway はGatewayを生成する。
func NewGateway(db Querier, scope Scope) *Gateway {
	return &Gateway{db: db, scope: scope, schema: DefaultSchema}
}

// Scope はこのゲートウェイの権限レベルを返す。
func (g *Gateway) Scope() Scope {
	return g.scope
}

func (g *Gateway) builder() *builder {
	return &builder{schema: g.schema, scope: g.scope}
}

// SelectAll は条件に一致する全行を返す。
func (g *Gateway) SelectAll(ctx context.Context, q Query) ([]Row, error) {
	b := g.builder()
	query, err := b.selectSQL(q)
	if err != nil {
		return nil, err
	}
	return g.query(ctx, q.Table, query, b.args)
}

// SelectSingle は条件に一致するちょうど1行を返す。
// 0行の場合はErrNotFound、2行以上の場合はErrMultipleRowsを返す。
func (g *Gateway) SelectSingle(ctx context.Context, q Query) (Row, error) {
	q.Limit = 2
	rows, err := g.SelectAll(ctx, q)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return rows[0], nil
	default:
		return nil, ErrMultipleRows
	}
}

// Insert は1行を挿入し、挿入された行を返す。
func (g *Gateway) Insert(ctx context.Context, table string, values Row) (Row, error) {
	return g.insert(ctx, table, values, nil)
}

// InsertOrIgnore はconflictColumnsの一意制約に衝突した場合は何もしない挿入を行う。
// 衝突した場合は(nil, nil)を返す。
func (g *Gateway) InsertOrIgnore(ctx context.Context, table string, values Row, conflictColumns ...string) (Row, error) {
	if len(conflictColumns) == 0 {
		return nil, fmt.Errorf("insert into %s: conflict columns are required", table)
	}
	return g.insert(ctx, table, values, conflictColumns)
}

func (g *Gateway) insert(ctx context.Context, table string, values Row, onConflict []string) (Row, error) {
	b := g.builder()
	query, err := b.insertSQL(table, values, onConflict)
	if err != nil {
		return nil, err
	}
	rows, err := g.query(ctx, table, query, b.args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Update は条件に一致する行を更新し、更新後の行を返す。
// 該当行が無い場合は空スライスを返す（エラーにはしない）。
func (g *Gateway) Update(ctx context.Context, table string, set Row, filters ...Filter) ([]Row, error) {
	b := g.builder()
	query, err := b.updateSQL(table, set, filters)
	if err != nil {
		return nil, err
	}
	return g.query(ctx, table, query, b.args)
}

// Delete は条件に一致する行を削除し、削除した行を返す。
func (g *Gateway) Delete(ctx context.Context, table string, filters ...Filter) ([]Row, error) {
	b := g.builder()
	query, err := b.deleteSQL(table, filters)
	if err != nil {
		return nil, err
	}
	return g.query(ctx, table, query, b.args)
}

// InTx はトランザクション内でfnを実行する。fnがエラーを返した場合はロールバックする。
func (g *Gateway) InTx(ctx context.Context, fn func(tx *Gateway) error) error {
	beginner, ok := g.db.(TxBeginner)
	if !ok {
		return fmt.Errorf("store: underlying connection does not support transactions")
	}
	tx, err := beginner.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Gateway{db: tx, scope: g.scope, schema: g.schema}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (g *Gateway) query(ctx context.Context, table, query string, args []any) ([]Row, error) {
	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}

	t := g.schema[table]
	var result []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		if err := row.validate(t); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", table, err)
	}

	return result, nil
}
