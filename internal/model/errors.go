package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, access, validation, github, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeNotAuthenticated     = "NOT_AUTHENTICATED"
	ErrCodeInstallationNotFound = "INSTALLATION_NOT_FOUND"
	ErrCodeOrganizationNotFound = "ORGANIZATION_NOT_FOUND"
	ErrCodeRepositoryNotFound   = "REPOSITORY_NOT_FOUND"
	ErrCodeInvitationInvalid    = "INVITATION_INVALID"
	ErrCodeAccessDenied         = "ACCESS_DENIED"
	ErrCodeConfigurationError   = "CONFIGURATION_ERROR"
	ErrCodeTokenExchangeFailed  = "TOKEN_EXCHANGE_FAILED"
	ErrCodeFetchFailed          = "FETCH_FAILED"
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodeUnexpectedError      = "UNEXPECTED_ERROR"
)

// UnexpectedErrorMessage はインフラ障害時にユーザーへ返す汎用メッセージ。
const UnexpectedErrorMessage = "An unexpected error occurred. Please try again."

// HasCode はerrがcodeを持つAPIErrorかどうかを判定する。
func HasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// NewNotAuthenticatedError は未認証エラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "User not authenticated",
		Category: "auth",
		Action:   "Sign in with GitHub to continue.",
	}
}

// NewInstallationNotFoundError はインストール未検出エラーを生成する。
func NewInstallationNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeInstallationNotFound,
		Message:  "No GitHub installation found.",
		Category: "github",
		Action:   "Install the GitHub App from the dashboard.",
	}
}

// NewInstallationRequiredError は組織作成時にインストールが無い場合のエラーを生成する。
func NewInstallationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeInstallationNotFound,
		Message:  "No GitHub installation found. Please install the GitHub App first.",
		Category: "github",
		Action:   "Install the GitHub App from the dashboard.",
	}
}

// NewOrganizationNotFoundError は組織未検出エラーを生成する。
// 他ユーザーの組織であることを開示しないため、アクセス拒否もこの形で返すことがある。
func NewOrganizationNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeOrganizationNotFound,
		Message:  "Organization not found or access denied",
		Category: "access",
		Action:   "Check the organization id.",
	}
}

// NewRepositoryNotFoundError はリポジトリ未検出エラーを生成する。
func NewRepositoryNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeRepositoryNotFound,
		Message:  "Repository not found",
		Category: "access",
		Action:   "Check the repository id.",
	}
}

// NewAccessDeniedError は所有チェーンが繋がらない場合のエラーを生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "Access denied to this organization",
		Category: "access",
		Action:   "Select an organization that belongs to your installation.",
	}
}

// NewInvitationInvalidError は招待キーが無効または使用済みの場合のエラーを生成する。
func NewInvitationInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeInvitationInvalid,
		Message:  "Failed to claim invitation",
		Category: "validation",
		Action:   "Ask for a new invitation link.",
	}
}

// NewConfigurationError はGitHub Appの認証情報が不足している場合のエラーを生成する。
func NewConfigurationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeConfigurationError,
		Message:  fmt.Sprintf("GitHub App is not configured: %s", reason),
		Category: "system",
		Action:   "Contact the administrator.",
	}
}

// NewTokenExchangeFailedError はインストールトークン取得失敗エラーを生成する。
func NewTokenExchangeFailedError(statusCode int) *APIError {
	return &APIError{
		Code:     ErrCodeTokenExchangeFailed,
		Message:  fmt.Sprintf("Failed to obtain installation access token (status %d)", statusCode),
		Category: "github",
		Action:   "Check that the GitHub App is still installed and try again.",
	}
}

// NewFetchFailedError はリポジトリ一覧取得失敗エラーを生成する。
func NewFetchFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  "Failed to fetch repositories",
		Category: "github",
		Action:   "Try again in a few moments.",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Category: "validation",
		Action:   "Fix the highlighted fields and submit again.",
	}
}

// NewUnexpectedError はインフラ障害を汎用メッセージに落としたエラーを生成する。
func NewUnexpectedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnexpectedError,
		Message:  UnexpectedErrorMessage,
		Category: "system",
		Action:   "Try again in a few moments.",
	}
}
