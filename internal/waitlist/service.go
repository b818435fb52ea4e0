// Package waitlist はウェイトリスト登録を提供する。
package waitlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/cyclone/internal/model"
	"github.com/hitoshi/cyclone/internal/repository"
)

// JoinInput はウェイトリスト登録の入力。
type JoinInput struct {
	Email string `validate:"required,email,max=254"`
	Role  string `validate:"required,waitlist_role"`
}

// Service はウェイトリストのサービス層。
type Service struct {
	waitlistRepo repository.WaitlistRepository
	validate     *validator.Validate
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(waitlistRepo repository.WaitlistRepository) *Service {
	v := validator.New()
	// 登録時にタグ名が重複しない限りエラーにはならない
	_ = v.RegisterValidation("waitlist_role", func(fl validator.FieldLevel) bool {
		return slices.Contains(model.WaitlistRoles, fl.Field().String())
	})
	return &Service{waitlistRepo: waitlistRepo, validate: v}
}

// Join はメールアドレスと役割をウェイトリストに登録する。
func (s *Service) Join(ctx context.Context, email, role string) (*model.WaitlistEntry, error) {
	in := JoinInput{
		Email: strings.TrimSpace(email),
		Role:  strings.TrimSpace(role),
	}
	if err := s.validate.Struct(&in); err != nil {
		return nil, model.NewValidationError(validationMessage(err))
	}

	entry := &model.WaitlistEntry{Email: in.Email, Role: in.Role}
	if err := s.waitlistRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("ウェイトリスト登録に失敗しました: %w", err)
	}

	slog.Info("waitlist joined",
		slog.Int64("waitlist_id", entry.ID),
		slog.String("role", entry.Role),
	)
	return entry, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid waitlist request"
	}
	switch verrs[0].Field() {
	case "Email":
		return "A valid email address is required"
	case "Role":
		return "Please select a role"
	default:
		return "Invalid waitlist request"
	}
}
