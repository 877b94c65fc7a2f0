package slackbot_test

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"samhq.app/sam/core/config"
	"samhq.app/sam/internal/slackbot"
	"samhq.app/sam/internal/store"
)

var _ = Describe("Handler", func() {
	var (
		ctx     context.Context
		api     *fakeSlack
		asst    *fakeAssistant
		locker  *store.Locker
		cfg     config.Config
		project config.Project
		draw    float64
	)

	BeforeEach(func() {
		ctx = context.Background()
		mr := miniredis.RunT(GinkgoT())
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(client.Close)
		locker = store.NewLocker(client)

		api = newFakeSlack()
		api.users["U1"] = &slack.User{
			ID: "U1",
			TZ: "Europe/Berlin",
			Profile: slack.UserProfile{
				RealName: "Ada Lovelace",
				Email:    "ada@example.com",
			},
		}
		asst = &fakeAssistant{answer: "**Done**, see [docs](https://example.com)", speech: []byte("ID3")}
		cfg = config.Config{
			Slack:        config.SlackConfig{BotName: "Sam", RandomRunRatio: 0.25},
			Conversation: config.ConversationConfig{LockTimeout: time.Minute},
		}
		project = config.Project{
			Assistants: []config.Assistant{{Name: "default", AssistantID: "asst_default"}, {Name: "sales", AssistantID: "asst_sales"}},
			Channels:   map[string]string{"CSALES": "sales"},
		}
		draw = 0.99
	})

	newHandler := func() *slackbot.Handler {
		return slackbot.NewHandler(api, asst, locker, project, cfg).WithRandom(func() float64 { return draw })
	}

	message := func(channelType string) *slackevents.MessageEvent {
		return &slackevents.MessageEvent{
			Type:        "message",
			User:        "U1",
			Text:        "hey <@UBOT>, what's up?",
			TimeStamp:   "1700000000.000100",
			Channel:     "C1",
			ChannelType: channelType,
			Message:     &slack.Msg{},
		}
	}

	Describe("HandleMessage", func() {
		It("stores channel messages without answering", func() {
			Expect(newHandler().HandleMessage(ctx, message("channel"))).To(Succeed())

			Expect(asst.added).To(HaveLen(1))
			Expect(asst.added[0].key).To(Equal("C1"))
			Expect(asst.added[0].content).To(Equal("hey Sam, what's up?"))
			Expect(asst.requests).To(BeEmpty())
			Expect(api.posts).To(BeEmpty())
		})

		It("answers direct messages", func() {
			Expect(newHandler().HandleMessage(ctx, message("im"))).To(Succeed())

			Expect(asst.requests).To(HaveLen(1))
			Expect(api.posts).To(HaveLen(1))
			Expect(api.posts[0].channel).To(Equal("C1"))
			Expect(api.posts[0].text).To(Equal("*Done*, see <https://example.com|docs>"))
			Expect(api.posts[0].threadTS).To(BeEmpty())
		})

		It("answers replies in threads the bot started", func() {
			ev := message("channel")
			ev.ThreadTimeStamp = "1699999999.000001"
			ev.Message.ParentUserId = "UBOT"

			Expect(newHandler().HandleMessage(ctx, ev)).To(Succeed())

			Expect(api.posts).To(HaveLen(1))
			Expect(api.posts[0].threadTS).To(Equal("1699999999.000001"))
		})

		It("answers when the random draw falls below the ratio", func() {
			draw = 0.1
			Expect(newHandler().HandleMessage(ctx, message("channel"))).To(Succeed())
			Expect(api.posts).To(HaveLen(1))
		})

		DescribeTable("ignores edits and deletions",
			func(subtype string) {
				ev := message("im")
				ev.SubType = subtype

				Expect(newHandler().HandleMessage(ctx, ev)).To(Succeed())
				Expect(asst.added).To(BeEmpty())
				Expect(api.posts).To(BeEmpty())
			},
			Entry("changed", "message_changed"),
			Entry("deleted", "message_deleted"),
		)

		It("ignores its own messages", func() {
			ev := message("im")
			ev.User = "UBOT"

			Expect(newHandler().HandleMessage(ctx, ev)).To(Succeed())
			Expect(asst.added).To(BeEmpty())
		})

		It("ignores messages from other bots", func() {
			ev := message("im")
			ev.BotID = "B123"

			Expect(newHandler().HandleMessage(ctx, ev)).To(Succeed())
			Expect(asst.added).To(BeEmpty())
		})

		It("downloads shared files and passes them on", func() {
			api.files["https://files.slack.com/report.pdf"] = "%PDF-1.7"
			ev := message("channel")
			ev.Message.Files = []slack.File{{Name: "report.pdf", URLPrivate: "https://files.slack.com/report.pdf"}}

			Expect(newHandler().HandleMessage(ctx, ev)).To(Succeed())

			Expect(asst.added[0].files).To(HaveLen(1))
			Expect(asst.added[0].files[0].Name).To(Equal("report.pdf"))
			Expect(string(asst.added[0].files[0].Content)).To(Equal("%PDF-1.7"))
		})

		It("fails when a file cannot be downloaded", func() {
			ev := message("channel")
			ev.Message.Files = []slack.File{{Name: "gone.pdf", URLPrivate: "https://files.slack.com/gone.pdf"}}

			Expect(newHandler().HandleMessage(ctx, ev)).To(MatchError(ContainSubstring("downloading gone.pdf")))
			Expect(asst.added).To(BeEmpty())
		})

		It("replies with speech to a spoken prompt", func() {
			asst.voicePrompt = true

			Expect(newHandler().HandleMessage(ctx, message("im"))).To(Succeed())

			Expect(asst.spoken).To(Equal([]string{asst.answer}))
			Expect(api.uploads).To(HaveLen(1))
			Expect(api.uploads[0].Filename).To(Equal("response.mp3"))
			Expect(api.uploads[0].Title).To(Equal("Voice Response"))
			Expect(api.uploads[0].Channel).To(Equal("C1"))
			Expect(api.uploaded).To(Equal([]string{"ID3"}))
		})

		It("resolves the bot identity once", func() {
			h := newHandler()
			Expect(h.HandleMessage(ctx, message("channel"))).To(Succeed())
			Expect(h.HandleMessage(ctx, message("channel"))).To(Succeed())
			Expect(api.authCalls).To(Equal(1))
		})

		It("retries the identity lookup after a failure", func() {
			api.authErr = errors.New("invalid_auth")
			h := newHandler()
			Expect(h.HandleMessage(ctx, message("channel"))).To(MatchError(ContainSubstring("invalid_auth")))

			api.authErr = nil
			Expect(h.HandleMessage(ctx, message("channel"))).To(Succeed())
			Expect(api.authCalls).To(Equal(2))
		})
	})

	Describe("HandleMention", func() {
		mention := func(channel string) *slackevents.AppMentionEvent {
			return &slackevents.AppMentionEvent{
				User:            "U1",
				Text:            "<@UBOT> summarise",
				TimeStamp:       "1700000000.000100",
				ThreadTimeStamp: "1699999999.000001",
				Channel:         channel,
			}
		}

		It("acknowledges the message and answers in its thread", func() {
			Expect(newHandler().HandleMention(ctx, mention("C1"))).To(Succeed())

			Expect(api.reactions).To(HaveLen(1))
			Expect(api.reactions[0].ref).To(Equal(slack.NewRefToMessage("C1", "1700000000.000100")))
			Expect(slices.Contains([]string{
				"thumbsup", "ok_hand", "eyes", "wave", "robot_face", "saluting_face", "v",
				"100", "muscle", "thought_balloon", "speech_balloon", "space_invader", "call_me_hand",
			}, api.reactions[0].name)).To(BeTrue())

			Expect(api.posts).To(HaveLen(1))
			Expect(api.posts[0].threadTS).To(Equal("1699999999.000001"))
			Expect(api.uploads).To(BeEmpty())
		})

		It("runs the channel's assistant with the user's context", func() {
			Expect(newHandler().HandleMention(ctx, mention("CSALES"))).To(Succeed())

			Expect(asst.requests).To(HaveLen(1))
			req := asst.requests[0]
			Expect(req.AssistantID).To(Equal("asst_sales"))
			Expect(req.CallContext.ChannelID).To(Equal("CSALES"))
			Expect(req.CallContext.User.Email).To(Equal("ada@example.com"))
			Expect(req.AdditionalInstructions).To(ContainSubstring("Ada Lovelace"))
			Expect(req.AdditionalInstructions).To(ContainSubstring("Europe/Berlin"))
		})

		It("falls back to the default assistant", func() {
			Expect(newHandler().HandleMention(ctx, mention("COTHER"))).To(Succeed())
			Expect(asst.requests[0].AssistantID).To(Equal("asst_default"))
		})

		It("caches user profiles", func() {
			h := newHandler()
			Expect(h.HandleMention(ctx, mention("C1"))).To(Succeed())
			Expect(h.HandleMention(ctx, mention("C1"))).To(Succeed())
			Expect(api.userCalls).To(Equal(1))

			h.Profiles().Invalidate("U1")
			Expect(h.HandleMention(ctx, mention("C1"))).To(Succeed())
			Expect(api.userCalls).To(Equal(2))
		})

		It("still answers when the profile is unavailable", func() {
			ev := mention("C1")
			ev.User = "UNKNOWN"

			Expect(newHandler().HandleMention(ctx, ev)).To(Succeed())
			Expect(asst.requests[0].CallContext.User.ID).To(Equal("UNKNOWN"))
			Expect(api.posts).To(HaveLen(1))
		})

		It("waits for the conversation lock", func() {
			unlock, err := locker.Lock(ctx, "C1", time.Minute)
			Expect(err).NotTo(HaveOccurred())
			defer unlock()

			short, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
			defer cancel()

			Expect(newHandler().HandleMention(short, mention("C1"))).NotTo(Succeed())
			Expect(asst.requests).To(BeEmpty())
			Expect(api.posts).To(BeEmpty())
		})
	})
})
