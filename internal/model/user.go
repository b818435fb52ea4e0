// Package model はダッシュボードのドメインモデルとAPIエラーを定義する。
package model

import "time"

// User はGitHubでサインインしたダッシュボード利用者を表す。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity はユーザーとGitHubアカウントの紐付け。
// ProviderUserIDにはGitHubの数値ユーザーIDを文字列で保持する。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はCookieで参照されるログインセッション。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はnow時点でセッションが失効しているかを返す。
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
