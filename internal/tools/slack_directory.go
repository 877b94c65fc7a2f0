package tools

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/slack-go/slack"
)

// UserLister is the part of the Slack Web API the directory tools use.
type UserLister interface {
	GetUsersContext(ctx context.Context, options ...slack.GetUsersOption) ([]slack.User, error)
}

// SlackDirectory exposes the workspace member list to the model.
type SlackDirectory struct {
	client UserLister
}

func NewSlackDirectory(client UserLister) *SlackDirectory {
	return &SlackDirectory{client: client}
}

type noParams struct{}

type coworkerProfile struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Status    string `json:"status"`
	TimeZone  string `json:"time_zone"`
}

func (d *SlackDirectory) CoworkerContacts() Definition {
	return Func(
		"Fetch profile data about your coworkers from Slack.\n\n"+
			"The profiles include first and last name, email address, status and time zone.",
		func(ctx context.Context, _ noParams, _ CallContext) (string, error) {
			return d.FetchCoworkerContacts(ctx), nil
		},
	)
}

func (d *SlackDirectory) UserEmails() Definition {
	return Func(
		"Fetch the emails of the Slack users.\n\n"+
			"Returns a mapping of Slack user IDs to the email set on their profile.",
		func(ctx context.Context, _ noParams, _ CallContext) (string, error) {
			return d.FetchUserEmails(ctx), nil
		},
	)
}

// FetchCoworkerContacts maps real names to profiles of active humans.
func (d *SlackDirectory) FetchCoworkerContacts(ctx context.Context) string {
	users, err := d.client.GetUsersContext(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch coworkers' profiles", "error", err)
		return "failed to fetch coworkers' profiles"
	}

	profiles := make(map[string]coworkerProfile)
	for _, u := range users {
		if u.Deleted || u.IsBot || u.IsAppUser || u.Profile.RealName == "" {
			continue
		}
		profiles[u.Profile.RealName] = coworkerProfile{
			FirstName: u.Profile.FirstName,
			LastName:  u.Profile.LastName,
			Email:     u.Profile.Email,
			Status:    u.Profile.StatusText,
			TimeZone:  u.TZ,
		}
	}
	slog.DebugContext(ctx, "fetched coworkers' profiles", "count", len(profiles))

	data, err := json.Marshal(profiles)
	if err != nil {
		return "failed to fetch coworkers' profiles"
	}
	return string(data)
}

// FetchUserEmails maps Slack user IDs to emails, skipping users without one.
func (d *SlackDirectory) FetchUserEmails(ctx context.Context) string {
	users, err := d.client.GetUsersContext(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to fetch slack users", "error", err)
		return "an error occurred: " + err.Error()
	}

	emails := make(map[string]string)
	for _, u := range users {
		if u.Profile.Email != "" {
			emails[u.ID] = u.Profile.Email
		}
	}
	data, err := json.Marshal(emails)
	if err != nil {
		return "an error occurred: " + err.Error()
	}
	return string(data)
}
