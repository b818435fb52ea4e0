package handler

import (
	"strconv"
	"time"

	"github.com/hitoshi/cyclone/internal/model"
)

// userResponse はログインユーザーのAPIレスポンス。
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// installationResponse はインストール情報のAPIレスポンス。
type installationResponse struct {
	ID             string    `json:"id"`
	InstallationID string    `json:"installation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// organizationResponse は組織情報のAPIレスポンス。
type organizationResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	InstallationID string    `json:"installation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// repositoryResponse は連携済みリポジトリのAPIレスポンス。
type repositoryResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	CustomPrompt   string    `json:"custom_prompt"`
	ReviewStrength string    `json:"review_strength"`
	ExternalID     *string   `json:"external_id"`
	OrganizationID string    `json:"organization_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// externalRepositoryResponse はGitHub側のリポジトリのAPIレスポンス。
type externalRepositoryResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Private  bool   `json:"private"`
	URL      string `json:"url"`
}

// invitationResponse は招待受諾のAPIレスポンス。
type invitationResponse struct {
	InvitationKey string     `json:"invitation_key"`
	IsClaimed     bool       `json:"is_claimed"`
	Email         *string    `json:"email,omitempty"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
}

// waitlistResponse はウェイトリスト登録のAPIレスポンス。
type waitlistResponse struct {
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name}
}

func toInstallationResponse(inst *model.Installation) *installationResponse {
	if inst == nil {
		return nil
	}
	return &installationResponse{
		ID:             formatID(inst.ID),
		InstallationID: inst.InstallationID,
		CreatedAt:      inst.CreatedAt,
	}
}

func toOrganizationResponse(org *model.Organization) organizationResponse {
	return organizationResponse{
		ID:             formatID(org.ID),
		Name:           org.Name,
		Description:    org.Description,
		InstallationID: formatID(org.InstallationID),
		CreatedAt:      org.CreatedAt,
	}
}

func toOrganizationResponses(orgs []*model.Organization) []organizationResponse {
	out := make([]organizationResponse, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, toOrganizationResponse(o))
	}
	return out
}

func toRepositoryResponse(repo *model.Repository) repositoryResponse {
	return repositoryResponse{
		ID:             formatID(repo.ID),
		Name:           repo.Name,
		CustomPrompt:   repo.CustomPrompt,
		ReviewStrength: string(repo.EffectiveReviewStrength()),
		ExternalID:     repo.ExternalID,
		OrganizationID: formatID(repo.OrganizationID),
		CreatedAt:      repo.CreatedAt,
		UpdatedAt:      repo.UpdatedAt,
	}
}

func toRepositoryResponses(repos []*model.Repository) []repositoryResponse {
	out := make([]repositoryResponse, 0, len(repos))
	for _, r := range repos {
		out = append(out, toRepositoryResponse(r))
	}
	return out
}

func toExternalRepositoryResponses(repos []model.ExternalRepository) []externalRepositoryResponse {
	out := make([]externalRepositoryResponse, 0, len(repos))
	for _, r := range repos {
		out = append(out, externalRepositoryResponse{
			ID:       r.ID,
			Name:     r.Name,
			FullName: r.FullName,
			Private:  r.Private,
			URL:      r.URL,
		})
	}
	return out
}
