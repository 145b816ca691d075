// Package views renders the server-side HTML pages.
package views

import (
	"context"
	"strconv"

	"github.com/a-h/templ"

	appI18n "github.com/pavelanni/mockinterview/internal/i18n"
	"github.com/pavelanni/mockinterview/internal/model"
)

type navLink struct {
	path, key string
}

var (
	adminLinks = []navLink{
		{"/admin/", "History"},
		{"/admin/challenges", "ChallengeBank"},
		{"/admin/users", "Users"},
	}
	bankColumns = []string{"Title", "Language", "Difficulty", "Topic", "TestsCount"}
	userColumns = []string{"Username", "DisplayName", "Role", "Status"}
	userRoles   = []model.UserRole{model.UserRoleReviewer, model.UserRoleAdmin}
)

// href prefixes path with the configured base path.
func href(ctx context.Context, path string) templ.SafeURL {
	return templ.URL(model.BasePathFromContext(ctx) + path)
}

func toggleURL(ctx context.Context, id int64) templ.SafeURL {
	return href(ctx, "/admin/users/"+strconv.FormatInt(id, 10)+"/toggle")
}

func passedSummary(ctx context.Context, out model.CodeOutput) string {
	return appI18n.Td(ctx, "TestsPassedSummary", map[string]any{
		"Passed": out.PassedCount(),
		"Total":  len(out.TestResults),
	})
}

func testLabel(ctx context.Context, i int) string {
	return appI18n.Td(ctx, "TestN", map[string]any{"N": i + 1})
}

func statusLabel(ctx context.Context, passed bool) string {
	if passed {
		return appI18n.T(ctx, "Passed")
	}
	return appI18n.T(ctx, "Failed")
}

func startedLabel(ctx context.Context, iv model.InterviewResult) string {
	started := iv.StartedAt.Format("2006-01-02 15:04")
	if iv.EndedAt == nil {
		started += " (" + appI18n.T(ctx, "InProgress") + ")"
	}
	return started
}

func challengeLine(ctx context.Context, c model.ChallengeResult) string {
	status := appI18n.T(ctx, "Unsolved")
	if c.Solved {
		status = appI18n.T(ctx, "Solved")
	}
	return c.Title + " (" + c.Language + "): " + status
}

func userStatus(ctx context.Context, u model.User) string {
	if u.Active {
		return appI18n.T(ctx, "Active")
	}
	return appI18n.T(ctx, "Inactive")
}
