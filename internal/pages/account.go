package pages

import (
	"context"
	"fmt"
	"html/template"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
	"github.com/EtimGeorge/NexusAcademy-project/internal/navigation"
)

type accountPages struct {
	r    *renderer
	deps Deps
}

// loadProfile はログインユーザーのプロフィールを取得する。
// プロフィールが未作成の場合はメールアドレスのみのプロフィールを返す。
func (p *accountPages) loadProfile(ctx context.Context) (*model.User, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	profile, err := p.deps.Profiles.GetProfile(ctx, user.ID)
	if isNotFound(err, model.ErrCodeUserNotFound) {
		return &model.User{ID: user.ID, Email: user.Email}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return profile, nil
}

func (p *accountPages) profile(ctx context.Context, _ navigation.Params) (template.HTML, error) {
	profile, err := p.loadProfile(ctx)
	if err != nil {
		return "", err
	}
	return p.r.execute(ctx, "profile", profile)
}

func (p *accountPages) settings(ctx context.Context, _ navigation.Params) (template.HTML, error) {
	profile, err := p.loadProfile(ctx)
	if err != nil {
		return "", err
	}
	return p.r.execute(ctx, "settings", profile)
}
