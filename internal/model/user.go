package model

import (
	"fmt"
	"strings"
)

// User is the Slack member on whose behalf a run executes.
type User struct {
	ID          string `json:"id"`
	RealName    string `json:"real_name"`
	DisplayName string `json:"display_name,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Status      string `json:"status,omitempty"`
	TimeZone    string `json:"tz,omitempty"`
}

// Name returns the best human-readable name available.
func (u User) Name() string {
	switch {
	case u.RealName != "":
		return u.RealName
	case u.DisplayName != "":
		return u.DisplayName
	default:
		return u.ID
	}
}

// Instructions renders the per-user context appended to a run's instructions.
func (u User) Instructions() string {
	if u.ID == "" {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are talking to %s (Slack user <@%s>).", u.Name(), u.ID)
	if u.Email != "" {
		fmt.Fprintf(&b, " Their email address is %s.", u.Email)
	}
	if u.TimeZone != "" {
		fmt.Fprintf(&b, " Their time zone is %s.", u.TimeZone)
	}
	return b.String()
}
