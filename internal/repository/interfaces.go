// Package repository はデータ永続化のインターフェースを定義する。
// 実装はstore.Gatewayの上に型付きレコードとして構築する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/store"
)

// OwnedOrganizations はユーザーが所有する組織の集合を表す書き込み条件。
// InstallationIDはユーザーの有効なインストールの行ID。
type OwnedOrganizations struct {
	InstallationID int64
}

// Filter は「organization_idが所有組織のいずれか」を表すstoreの条件を返す。
func (o OwnedOrganizations) Filter() store.Filter {
	return store.InSelect("organization_id", store.Query{
		Table:   store.TableOrganization,
		Columns: []string{"id"},
		Filters: []store.Filter{store.Eq("installation_id", o.InstallationID)},
	})
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateProfile はIdPから取得したメールアドレスと表示名でユーザーを更新する。
	UpdateProfile(ctx context.Context, id, email, name string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired はbefore時点で期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// InstallationRepository はGitHub Appインストールの永続化インターフェース。
type InstallationRepository interface {
	// ListByUser はユーザーのインストールを新しい順（created_at DESC, id DESC）で返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Installation, error)

	// FindLatestByUser はユーザーの最新のインストールを返す。見つからない場合はnilを返す。
	FindLatestByUser(ctx context.Context, userID string) (*model.Installation, error)

	// Save はユーザーとinstallation idの紐付けを保存する。
	// 既に同じ紐付けがある場合は既存行を返し、createdはfalseになる。
	Save(ctx context.Context, userID, installationID string) (inst *model.Installation, created bool, err error)
}

// OrganizationRepository は組織の永続化インターフェース。
type OrganizationRepository interface {
	// Create は組織を作成する。ID、CreatedAtは採番された値で更新される。
	Create(ctx context.Context, org *model.Organization) error

	// FindByID は指定IDの組織を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Organization, error)

	// ListByInstallation は指定インストールに属する組織を作成順で返す。
	ListByInstallation(ctx context.Context, installationID int64) ([]*model.Organization, error)
}

// LinkedRepositoryRepository は組織に連携されたリポジトリの永続化インターフェース。
type LinkedRepositoryRepository interface {
	// FindByID は指定IDのリポジトリを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Repository, error)

	// ListByOrganization は組織に連携されたリポジトリを作成順で返す。
	ListByOrganization(ctx context.Context, organizationID int64) ([]*model.Repository, error)

	// Create はリポジトリを連携する。ID、CreatedAt、UpdatedAtは採番された値で更新される。
	Create(ctx context.Context, repo *model.Repository) error

	// UpdateOwned はリポジトリの組織がownedに含まれる場合に限り更新する。
	// 条件に一致しない場合はnilを返す。
	UpdateOwned(ctx context.Context, id int64, owned OwnedOrganizations, update RepositoryUpdate) (*model.Repository, error)

	// DeleteOwned はリポジトリの組織がownedに含まれる場合に限り削除する。
	// 削除した場合はtrueを返す。
	DeleteOwned(ctx context.Context, id int64, owned OwnedOrganizations) (bool, error)
}

// RepositoryUpdate はリポジトリの部分更新内容。nilのフィールドは変更しない。
type RepositoryUpdate struct {
	Name           *string
	CustomPrompt   *string
	ReviewStrength *model.ReviewStrength
}

// IsEmpty は更新対象が無いかどうかを返す。
func (u RepositoryUpdate) IsEmpty() bool {
	return u.Name == nil && u.CustomPrompt == nil && u.ReviewStrength == nil
}

// InvitationRepository は招待キーの永続化インターフェース。
type InvitationRepository interface {
	// Claim は未使用の招待キーを使用済みにし、更新後の招待を返す。
	// キーが存在しないか使用済みの場合はnilを返す。
	Claim(ctx context.Context, key string, now time.Time) (*model.Invitation, error)
}

// WaitlistRepository はウェイトリストの永続化インターフェース。
type WaitlistRepository interface {
	// Create はウェイトリストに登録する。ID、CreatedAtは採番された値で更新される。
	Create(ctx context.Context, entry *model.WaitlistEntry) error
}
