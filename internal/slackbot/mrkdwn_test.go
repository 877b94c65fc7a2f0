package slackbot_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"samhq.app/sam/internal/slackbot"
)

var _ = DescribeTable("MarkdownToMrkdwn",
	func(in, want string) {
		Expect(slackbot.MarkdownToMrkdwn(in)).To(Equal(want))
	},
	Entry("italic with asterisks", "an *important* note", "an _important_ note"),
	Entry("italic with underscores", "an _important_ note", "an _important_ note"),
	Entry("bold", "a **bold** claim", "a *bold* claim"),
	Entry("bold with underscores", "a __bold__ claim", "a *bold* claim"),
	Entry("strikethrough", "~~gone~~ here", "~gone~ here"),
	Entry("link", "see [the docs](https://example.com/docs)", "see <https://example.com/docs|the docs>"),
	Entry("heading", "## Summary\nall good", "*Summary*\nall good"),
	Entry("plain text", "nothing to do", "nothing to do"),
)
