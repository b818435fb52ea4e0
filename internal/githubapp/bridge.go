// Package githubapp はGitHub Appとしてインストールに対して操作するためのブリッジを提供する。
//
// 処理は アプリ署名JWTの発行 → インストールトークンの取得 → リポジトリ一覧の取得 の順に進み、
// どの段階で失敗しても部分的な結果は返さない。自動リトライは行わない。
package githubapp

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v62/github"

	"github.com/hitoshi/cyclone/internal/model"
)

const (
	// UserAgent はGitHub APIへのリクエストに付与する固定のクライアント識別子。
	UserAgent = "cyclone-dashboard"

	acceptHeader    = "application/vnd.github.v3+json"
	defaultAPIURL   = "https://api.github.com"
	defaultTimeout  = 30 * time.Second
	perPage         = 100
	assertionSkew   = 60 * time.Second
	assertionExpiry = 10 * time.Minute
)

// CallRecorder はGitHub API呼び出しの結果を記録するインターフェース。
type CallRecorder interface {
	RecordGitHubCall(endpoint, outcome string, duration time.Duration)
}

// Config はブリッジの設定。
type Config struct {
	AppID         string
	PrivateKeyPEM string
	Slug          string
	APIURL        string        // 空の場合は https://api.github.com
	Timeout       time.Duration // 0の場合は30秒

	// テスト用にオーバーライド可能
	HTTPClient *http.Client
	Now        func() time.Time
}

// Bridge はGitHub Appのインストールからリポジトリ一覧を取得する。
type Bridge struct {
	appID    string
	key      *rsa.PrivateKey
	keyErr   error
	slug     string
	apiURL   string
	client   *http.Client
	now      func() time.Time
	recorder CallRecorder
}

// NewBridge はBridgeを生成する。recorderはnilでもよい。
// 秘密鍵の解析エラーは保持され、呼び出し時にConfigurationErrorとして返される。
func NewBridge(cfg Config, recorder CallRecorder) *Bridge {
	b := &Bridge{
		appID:    cfg.AppID,
		slug:     cfg.Slug,
		apiURL:   cfg.APIURL,
		client:   cfg.HTTPClient,
		now:      cfg.Now,
		recorder: recorder,
	}
	if b.apiURL == "" {
		b.apiURL = defaultAPIURL
	}
	if b.client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		b.client = &http.Client{Timeout: timeout}
	}
	if b.now == nil {
		b.now = time.Now
	}
	if cfg.PrivateKeyPEM != "" {
		b.key, b.keyErr = jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
	}
	return b
}

// InstallURL はGitHub Appのインストール画面のURLを返す。
func (b *Bridge) InstallURL() string {
	return "https://github.com/apps/" + url.PathEscape(b.slug) + "/installations/new"
}

// ListInstallationRepositories はインストールから見えるリポジトリをすべて返す。
func (b *Bridge) ListInstallationRepositories(ctx context.Context, installationID string) ([]model.ExternalRepository, error) {
	assertion, err := b.appAssertion()
	if err != nil {
		return nil, err
	}

	token, err := b.exchangeToken(ctx, installationID, assertion)
	if err != nil {
		return nil, err
	}

	return b.fetchRepositories(ctx, token)
}

// appAssertion はアプリを識別するRS256署名のJWTを発行する。
func (b *Bridge) appAssertion() (string, error) {
	if b.appID == "" {
		return "", model.NewConfigurationError("missing app id")
	}
	if b.key == nil && b.keyErr == nil {
		return "", model.NewConfigurationError("missing private key")
	}
	if b.keyErr != nil {
		slog.Error("failed to parse github app private key", slog.String("error", b.keyErr.Error()))
		return "", model.NewConfigurationError("invalid private key")
	}

	now := b.now()
	claims := jwt.RegisteredClaims{
		Issuer:    b.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-assertionSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionExpiry)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(b.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign app assertion: %w", err)
	}
	return signed, nil
}

// exchangeToken はアプリのJWTをインストールトークンに交換する。
func (b *Bridge) exchangeToken(ctx context.Context, installationID, assertion string) (string, error) {
	endpoint := b.apiURL + "/app/installations/" + url.PathEscape(installationID) + "/access_tokens"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+assertion)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", UserAgent)

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		b.record("access_tokens", "error", start)
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		b.record("access_tokens", "error", start)
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b.record("access_tokens", strconv.Itoa(resp.StatusCode), start)
		slog.Warn("installation token exchange failed",
			slog.String("installation_id", installationID),
			slog.Int("status", resp.StatusCode),
		)
		return "", model.NewTokenExchangeFailedError(resp.StatusCode)
	}
	b.record("access_tokens", "ok", start)

	var token github.InstallationToken
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.GetToken() == "" {
		return "", fmt.Errorf("empty token in response")
	}
	return token.GetToken(), nil
}

// fetchRepositories はインストールトークンでリポジトリ一覧を全ページ取得する。
func (b *Bridge) fetchRepositories(ctx context.Context, token string) ([]model.ExternalRepository, error) {
	result := []model.ExternalRepository{}
	for page := 1; ; page++ {
		list, err := b.fetchPage(ctx, token, page)
		if err != nil {
			return nil, err
		}
		for _, r := range list.Repositories {
			result = append(result, model.ExternalRepository{
				ID:       strconv.FormatInt(r.GetID(), 10),
				Name:     r.GetName(),
				FullName: r.GetFullName(),
				Private:  r.GetPrivate(),
				URL:      r.GetHTMLURL(),
			})
		}
		if len(list.Repositories) < perPage || len(result) >= list.GetTotalCount() {
			return result, nil
		}
	}
}

func (b *Bridge) fetchPage(ctx context.Context, token string, page int) (*github.ListRepositories, error) {
	q := url.Values{
		"per_page": {strconv.Itoa(perPage)},
		"page":     {strconv.Itoa(page)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.apiURL+"/installation/repositories?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create repositories request: %w", err)
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", UserAgent)

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		b.record("repositories", "error", start)
		slog.Warn("repositories request failed", slog.String("error", err.Error()))
		return nil, model.NewFetchFailedError()
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b.record("repositories", strconv.Itoa(resp.StatusCode), start)
		slog.Warn("repositories fetch failed", slog.Int("status", resp.StatusCode), slog.Int("page", page))
		return nil, model.NewFetchFailedError()
	}

	var list github.ListRepositories
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		b.record("repositories", "error", start)
		return nil, fmt.Errorf("failed to parse repositories response: %w", err)
	}
	b.record("repositories", "ok", start)
	return &list, nil
}

func (b *Bridge) record(endpoint, outcome string, start time.Time) {
	if b.recorder != nil {
		b.recorder.RecordGitHubCall(endpoint, outcome, time.Since(start))
	}
}
