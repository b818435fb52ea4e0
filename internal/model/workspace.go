package model

import (
	"fmt"
	"strconv"
	"time"
)

// Installation はGitHub Appのインストールとユーザーの紐付けを表す。
// 所有チェーン User → Installation → Organization → Repository の起点。
type Installation struct {
	ID             int64
	InstallationID string // GitHub側のinstallation id
	UserID         string
	CreatedAt      time.Time
}

// Organization はインストールに属する組織を表す。
type Organization struct {
	ID             int64
	Name           string
	Description    string
	InstallationID int64 // installation.id への参照
	CreatedAt      time.Time
}

// ReviewStrength はリポジトリごとのレビュー強度。
type ReviewStrength string

const (
	ReviewStrengthBalanced ReviewStrength = "balanced"
	ReviewStrengthThorough ReviewStrength = "thorough"
	ReviewStrengthStrict   ReviewStrength = "strict"
)

// DefaultReviewStrength はレビュー強度未指定時の値。
const DefaultReviewStrength = ReviewStrengthBalanced

// ParseReviewStrength は文字列をReviewStrengthに変換する。空文字列はデフォルト値になる。
func ParseReviewStrength(s string) (ReviewStrength, error) {
	switch ReviewStrength(s) {
	case "":
		return DefaultReviewStrength, nil
	case ReviewStrengthBalanced, ReviewStrengthThorough, ReviewStrengthStrict:
		return ReviewStrength(s), nil
	default:
		return "", fmt.Errorf("unknown review strength: %q", s)
	}
}

// Repository は組織に連携されたリポジトリとレビュー設定を表す。
type Repository struct {
	ID             int64
	Name           string
	CustomPrompt   string
	ReviewStrength *ReviewStrength // NULL許容
	ExternalID     *string         // GitHub側のrepository id。NULL許容
	OrganizationID int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EffectiveReviewStrength はNULLの場合にデフォルト値を補ったレビュー強度を返す。
func (r *Repository) EffectiveReviewStrength() ReviewStrength {
	if r.ReviewStrength == nil {
		return DefaultReviewStrength
	}
	return *r.ReviewStrength
}

// ExternalRepository はGitHub Appのインストールから見えるリポジトリ。
type ExternalRepository struct {
	ID       string
	Name     string
	FullName string
	Private  bool
	URL      string
}

// Invitation は一度だけ使用できる招待キーを表す。
type Invitation struct {
	ID            int64
	InvitationKey string
	IsClaimed     bool
	Email         *string
	CreatedAt     time.Time
	ClaimedAt     *time.Time
}

// WaitlistEntry はウェイトリスト登録を表す。
type WaitlistEntry struct {
	ID        int64
	Email     string
	Role      string
	CreatedAt time.Time
}

// WaitlistRoles はウェイトリスト登録で選択可能な役割。
var WaitlistRoles = []string{
	"Software Engineer",
	"Software Architect",
	"Product Owner",
	"Engineering Manager",
	"DevOps Engineer",
	"QA Engineer",
	"Tech Lead",
	"CTO",
	"Other",
}

// ParseEntityID は外部表現（文字列）のIDを数値IDに変換する。
func ParseEntityID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id: %q", s)
	}
	return id, nil
}
