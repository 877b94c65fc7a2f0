package tools

import (
	"samhq.app/sam/core/config"
)

// Implementation paths accepted in sam.yaml.
const (
	PathWebSearch        = "web_search"
	PathFetchWebsite     = "fetch_website"
	PathSendEmail        = "send_email"
	PathCoworkerContacts = "fetch_coworker_contacts"
	PathSlackUserEmails  = "fetch_slack_user_emails"
	PathGitLabIssue      = "gitlab:create_issue"
	PathPostgresFetchAll = "postgres:fetch_all"
	PathPlatformSearch   = "typesense:platform_search"
)

// Backends are the clients the catalog binds tools to. Nil fields mark the
// corresponding tools unavailable.
type Backends struct {
	Slack     UserLister
	Mailer    MailSender
	Issues    IssueCreator
	Database  JSONQuerier
	Documents DocumentSearcher
}

// NewCatalog lists every known tool. Tools whose configuration is missing are
// present but unavailable, so declaring them fails at startup.
func NewCatalog(cfg config.Config, b Backends) (Catalog, error) {
	c := Catalog{
		PathFetchWebsite: NewWebFetcher().Definition(),
	}

	if cfg.Brave.Enabled() {
		c[PathWebSearch] = NewBraveSearch(cfg.Brave).Definition()
	} else {
		c[PathWebSearch] = Unavailable("BRAVE_SEARCH_API_KEY is not set")
	}

	if cfg.Email.Enabled() || b.Mailer != nil {
		emailer, err := NewEmailer(cfg.Email, b.Mailer)
		if err != nil {
			return nil, err
		}
		c[PathSendEmail] = emailer.Definition()
	} else {
		c[PathSendEmail] = Unavailable("EMAIL_URL is not set")
	}

	if b.Slack != nil {
		dir := NewSlackDirectory(b.Slack)
		c[PathCoworkerContacts] = dir.CoworkerContacts()
		c[PathSlackUserEmails] = dir.UserEmails()
	} else {
		c[PathCoworkerContacts] = Unavailable("no Slack client")
		c[PathSlackUserEmails] = Unavailable("no Slack client")
	}

	switch {
	case b.Issues == nil:
		c[PathGitLabIssue] = Unavailable("GITLAB_TOKEN is not set")
	case len(cfg.GitLab.Projects) == 0:
		c[PathGitLabIssue] = Unavailable("GITLAB_PROJECTS is empty")
	default:
		c[PathGitLabIssue] = NewIssueTracker(b.Issues, cfg.GitLab.Projects).Definition()
	}

	if b.Database != nil {
		c[PathPostgresFetchAll] = NewSQLReader(b.Database).Definition()
	} else {
		c[PathPostgresFetchAll] = Unavailable("POSTGRESQL_URL is not set")
	}

	if b.Documents != nil {
		search, err := NewPlatformSearch(b.Documents, cfg.Typesense.PlatformBaseURL)
		if err != nil {
			return nil, err
		}
		c[PathPlatformSearch] = search.Definition()
	} else {
		c[PathPlatformSearch] = Unavailable("TYPESENSE_URL and TYPESENSE_API_KEY are not set")
	}

	return c, nil
}
