package flow

import (
	"context"
	"errors"

	"github.com/m3rciful/crmbot/internal/crm"
)

// RepoLookup offers funnels, stages and assignees from the CRM.
type RepoLookup struct {
	Repo *crm.Repo
}

func (l RepoLookup) Funnels(ctx context.Context) ([]Option, error) {
	funnels, err := l.Repo.Funnels(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Option, 0, len(funnels))
	for _, f := range funnels {
		label := f.Name
		if label == "" {
			label = f.ID
		}
		out = append(out, Option{Value: f.ID, Label: label})
	}
	return out, nil
}

func (l RepoLookup) Stages(ctx context.Context, funnelID string) ([]Option, error) {
	f, err := l.Repo.Funnel(ctx, funnelID)
	if errors.Is(err, crm.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]Option, 0, len(f.Stages))
	for _, s := range f.Stages {
		out = append(out, Option{Value: s.ID, Label: s.Name})
	}
	return out, nil
}

func (l RepoLookup) Assignees(ctx context.Context, limit int) ([]Option, error) {
	users, err := l.Repo.ActiveUsers(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Option, 0, len(users))
	for _, u := range users {
		out = append(out, Option{Value: u.ID, Label: u.DisplayName()})
	}
	return out, nil
}
