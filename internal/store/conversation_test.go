package store_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"samhq.app/sam/internal/model"
	"samhq.app/sam/internal/store"
)

type staticToolIDs []string

func (s staticToolIDs) ToolIDs(context.Context) []string { return s }

var _ = Describe("ConversationStore", func() {
	var (
		ctx    context.Context
		mr     *miniredis.Miniredis
		client *redis.Client
	)

	BeforeEach(func() {
		ctx = context.Background()
		mr = miniredis.RunT(GinkgoT())
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		DeferCleanup(client.Close)
	})

	Describe("Get", func() {
		It("returns an empty record for a missing key without writing", func() {
			s := store.NewConversationStore(client, store.ConversationConfig{Model: "gpt-4o"})

			first, err := s.Get(ctx, "C1")
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Messages).To(BeEmpty())
			Expect(first.Files).To(BeEmpty())
			Expect(first.Model).To(Equal("gpt-4o"))
			Expect(first.Features).To(Equal(model.Features{}))

			second, err := s.Get(ctx, "C1")
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))

			Expect(mr.Keys()).To(BeEmpty())
		})

		It("overlays model and tool ids onto the stored record", func() {
			s := store.NewConversationStore(client, store.ConversationConfig{
				Model:   "llama3",
				ToolIDs: staticToolIDs{"weather"},
			})
			Expect(mr.Set("thread_C1", `{"messages":[{"role":"user","content":"hi"}],"files":[],"model":"old","tool_ids":["stale"]}`)).To(Succeed())

			conv, err := s.Get(ctx, "C1")
			Expect(err).NotTo(HaveOccurred())
			Expect(conv.Messages).To(Equal([]model.Message{{Role: model.RoleUser, Content: "hi"}}))
			Expect(conv.Model).To(Equal("llama3"))
			Expect(conv.ToolIDs).To(Equal([]string{"weather"}))
		})

		It("fails on a corrupt record", func() {
			s := store.NewConversationStore(client, store.ConversationConfig{})
			Expect(mr.Set("thread_C1", "{not json")).To(Succeed())

			_, err := s.Get(ctx, "C1")
			Expect(err).To(MatchError(ContainSubstring("decoding conversation C1")))
		})

		It("propagates connectivity failures", func() {
			s := store.NewConversationStore(client, store.ConversationConfig{})
			mr.Close()

			_, err := s.Get(ctx, "C1")
			Expect(err).To(MatchError(ContainSubstring("getting conversation C1")))
		})
	})

	Describe("Set", func() {
		It("stores the record as JSON under the thread key without expiry", func() {
			s := store.NewConversationStore(client, store.ConversationConfig{})
			conv := model.NewConversation()
			conv.Append(model.RoleUser, "hello")
			conv.AttachFiles("file-1")

			Expect(s.Set(ctx, "C1", conv)).To(Succeed())

			raw, err := mr.Get("thread_C1")
			Expect(err).NotTo(HaveOccurred())
			var stored map[string]any
			Expect(json.Unmarshal([]byte(raw), &stored)).To(Succeed())
			Expect(stored["messages"]).To(HaveLen(1))
			Expect(stored["files"]).To(Equal([]any{map[string]any{"type": "file", "id": "file-1"}}))
			Expect(mr.TTL("thread_C1")).To(BeZero())
		})

		It("expires the record at the next local midnight when daily reset is on", func() {
			now := time.Date(2024, 3, 14, 15, 30, 0, 0, berlin)
			mr.SetTime(now)

			s := store.NewConversationStore(client, store.ConversationConfig{
				DailyReset: true,
				Location:   berlin,
			}).WithClock(func() time.Time { return now })

			Expect(s.Set(ctx, "C1", model.NewConversation())).To(Succeed())
			Expect(mr.TTL("thread_C1")).To(Equal(8*time.Hour + 30*time.Minute))
		})

		It("round-trips through Get", func() {
			s := store.NewConversationStore(client, store.ConversationConfig{})
			conv := model.NewConversation()
			conv.ThreadID = "thread_abc"
			conv.Append(model.RoleUser, "hi")
			conv.Append(model.RoleAssistant, "Hello!")
			Expect(s.Set(ctx, "D1", conv)).To(Succeed())

			got, err := s.Get(ctx, "D1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ThreadID).To(Equal("thread_abc"))
			last, ok := got.LastMessage()
			Expect(ok).To(BeTrue())
			Expect(last.Content).To(Equal("Hello!"))
		})
	})
})

var berlin = mustLoadLocation("Europe/Berlin")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

var _ = Describe("NextMidnight", func() {
	DescribeTable("is the start of the following local day regardless of time of day",
		func(now time.Time) {
			Expect(store.NextMidnight(now, berlin)).To(BeTemporally("==", time.Date(2024, 3, 15, 0, 0, 0, 0, berlin)))
		},
		Entry("just after midnight", time.Date(2024, 3, 14, 0, 0, 1, 0, berlin)),
		Entry("mid afternoon", time.Date(2024, 3, 14, 15, 30, 0, 0, berlin)),
		Entry("one second before midnight", time.Date(2024, 3, 14, 23, 59, 59, 0, berlin)),
		Entry("given in UTC", time.Date(2024, 3, 14, 22, 59, 59, 0, time.UTC)),
	)

	It("handles daylight saving transitions", func() {
		now := time.Date(2024, 3, 30, 12, 0, 0, 0, berlin)
		next := store.NextMidnight(now, berlin)
		Expect(next.Sub(now)).To(Equal(12 * time.Hour))
		Expect(store.NextMidnight(next, berlin).Sub(next)).To(Equal(23 * time.Hour))
	})

	It("rolls over month ends", func() {
		now := time.Date(2024, 12, 31, 18, 0, 0, 0, berlin)
		Expect(store.NextMidnight(now, berlin)).To(BeTemporally("==", time.Date(2025, 1, 1, 0, 0, 0, 0, berlin)))
	})
})
