package repolink

import (
	"fmt"

	"github.com/hitoshi/cyclone/internal/model"
)

// MatchKey は連携済みリポジトリとGitHub側のリポジトリを突き合わせるキー。
type MatchKey string

const (
	// MatchByName はリポジトリ名で突き合わせる。
	MatchByName MatchKey = "name"
	// MatchByID はGitHub側のrepository idで突き合わせる。
	// external_idを持たない連携済みリポジトリは名前で突き合わせる。
	MatchByID MatchKey = "id"
)

// ParseMatchKey は設定値をMatchKeyに変換する。空文字列はMatchByNameになる。
func ParseMatchKey(s string) (MatchKey, error) {
	switch MatchKey(s) {
	case "", MatchByName:
		return MatchByName, nil
	case MatchByID:
		return MatchByID, nil
	default:
		return "", fmt.Errorf("unknown match key: %q", s)
	}
}

// FilterAvailable はexternalのうちlinkedに含まれないものを元の順序で返す。
func FilterAvailable(external []model.ExternalRepository, linked []*model.Repository, key MatchKey) []model.ExternalRepository {
	names := make(map[string]struct{}, len(linked))
	ids := make(map[string]struct{}, len(linked))
	for _, r := range linked {
		if key == MatchByID && r.ExternalID != nil {
			ids[*r.ExternalID] = struct{}{}
			continue
		}
		names[r.Name] = struct{}{}
	}

	available := make([]model.ExternalRepository, 0, len(external))
	for _, e := range external {
		if _, ok := ids[e.ID]; ok {
			continue
		}
		if _, ok := names[e.Name]; ok {
			continue
		}
		available = append(available, e)
	}
	return available
}
