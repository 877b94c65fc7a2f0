package tools

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"samhq.app/sam/core/config"
)

// IssueCreator is satisfied by gitlab.Client.Issues.
type IssueCreator interface {
	CreateIssue(pid any, opt *gitlab.CreateIssueOptions, options ...gitlab.RequestOptionFunc) (*gitlab.Issue, *gitlab.Response, error)
}

// IssueTracker files issues in one of the configured GitLab projects.
type IssueTracker struct {
	issues   IssueCreator
	projects []string
}

func NewGitLabClient(cfg config.GitLabConfig) (*gitlab.Client, error) {
	var opts []gitlab.ClientOptionFunc
	if cfg.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")+"/api/v4"))
	}
	return gitlab.NewClient(cfg.Token, opts...)
}

func NewIssueTracker(issues IssueCreator, projects []string) *IssueTracker {
	return &IssueTracker{issues: issues, projects: projects}
}

type createIssueParams struct {
	Title   string `json:"title" jsonschema_description:"The title of the issue."`
	Body    string `json:"body" jsonschema_description:"The body of the issue, markdown supported."`
	Project string `json:"project" jsonschema_description:"The project to create the issue in."`
}

func (t *IssueTracker) Definition() Definition {
	return Func(
		"Create an issue on GitLab with the given title and body.\n\n"+
			"A good issue usually includes a user story for a feature, "+
			"or a step by step guide how to reproduce a bug.\n\n"+
			"You should provide ideas for a potential solution, "+
			"including code snippet examples in a Markdown code block.",
		func(ctx context.Context, args createIssueParams, _ CallContext) (string, error) {
			return t.CreateIssue(ctx, args.Title, args.Body, args.Project), nil
		},
	).WithEnum("project", t.projects)
}

// CreateIssue returns the new issue's URL or a short failure text.
func (t *IssueTracker) CreateIssue(ctx context.Context, title, body, project string) string {
	if !slices.Contains(t.projects, project) {
		slog.WarnContext(ctx, "invalid gitlab project", "project", project)
		return "invalid project"
	}

	issue, _, err := t.issues.CreateIssue(project, &gitlab.CreateIssueOptions{
		Title:       gitlab.Ptr(title),
		Description: gitlab.Ptr(body),
	}, gitlab.WithContext(ctx))
	if err != nil {
		slog.ErrorContext(ctx, "failed to create gitlab issue", "project", project, "error", err)
		return "failed to create issue"
	}
	return issue.WebURL
}
