// Package store はテーブル名と等価条件で操作する汎用のレコードストアゲートウェイを提供する。
//
// 呼び出し側はSQLを直接書かず、テーブル名・条件・更新値を指定する。
// テーブル名とカラム名はスキーマ定義の許可リストで検証され、
// 読み取った行は必須カラムのNULLを境界で拒否する。
package store

import "slices"

// Column はテーブルのカラム定義。
type Column struct {
	Name     string
	Nullable bool
}

// Table はテーブル定義。Columnsの順序がSELECT/RETURNINGの列順になる。
type Table struct {
	Name    string
	Columns []Column
}

// ColumnNames はカラム名の一覧を返す。
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column は指定名のカラム定義を返す。
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Schema はテーブル名からテーブル定義へのマップ。
type Schema map[string]Table

func required(names ...string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n}
	}
	return cols
}

// テーブル名
const (
	TableUsers        = "users"
	TableIdentities   = "identities"
	TableSessions     = "sessions"
	TableInstallation = "installation"
	TableOrganization = "organization"
	TableRepository   = "repository"
	TableInvitation   = "invitation"
	TableWaitlist     = "waitlist"
)

// DefaultSchema はマイグレーションで作成されるテーブルの定義。
var DefaultSchema = Schema{
	TableUsers: {
		Name:    TableUsers,
		Columns: required("id", "email", "name", "created_at", "updated_at"),
	},
	TableIdentities: {
		Name:    TableIdentities,
		Columns: required("id", "user_id", "provider", "provider_user_id", "created_at"),
	},
	TableSessions: {
		Name:    TableSessions,
		Columns: required("id", "user_id", "expires_at", "created_at"),
	},
	TableInstallation: {
		Name:    TableInstallation,
		Columns: required("id", "installation_id", "user_id", "created_at"),
	},
	TableOrganization: {
		Name:    TableOrganization,
		Columns: required("id", "name", "description", "installation_id", "created_at"),
	},
	TableRepository: {
		Name: TableRepository,
		Columns: append(required("id", "name", "custom_prompt"),
			Column{Name: "review_strength", Nullable: true},
			Column{Name: "external_id", Nullable: true},
			Column{Name: "organization_id"},
			Column{Name: "created_at"},
			Column{Name: "updated_at"},
		),
	},
	TableInvitation: {
		Name: TableInvitation,
		Columns: append(required("id", "invitation_key", "is_claimed"),
			Column{Name: "email", Nullable: true},
			Column{Name: "created_at"},
			Column{Name: "claimed_at", Nullable: true},
		),
	},
	TableWaitlist: {
		Name:    TableWaitlist,
		Columns: required("id", "email", "role", "created_at"),
	},
}

// Scope はゲートウェイの実行権限レベル。
type Scope int

const (
	// ScopeAdmin は全テーブルの読み書きができる管理者権限。
	// 認可判定はアプリケーション側で行うため、サーバー内部の操作はすべてこの権限を使う。
	ScopeAdmin Scope = iota
	// ScopeSession はセッションユーザーの特定にのみ使う読み取り専用権限。
	ScopeSession
)

// String はScopeの表示名を返す。
func (s Scope) String() string {
	switch s {
	case ScopeAdmin:
		return "admin"
	case ScopeSession:
		return "session"
	default:
		return "unknown"
	}
}

var sessionReadableTables = []string{TableSessions, TableUsers}

func (s Scope) canRead(table string) bool {
	if s == ScopeAdmin {
		return true
	}
	return slices.Contains(sessionReadableTables, table)
}

func (s Scope) canWrite() bool {
	return s == ScopeAdmin
}
