package assistant_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"samhq.app/sam/core/config"
	"samhq.app/sam/internal/assistant"
	"samhq.app/sam/internal/model"
	"samhq.app/sam/internal/tools"
)

type echoParams struct {
	Text string `json:"text"`
}

var errToolDown = errors.New("backend down")

func testRegistry() *tools.Registry {
	catalog := tools.Catalog{
		"echo": tools.Func("Echo the text back.",
			func(_ context.Context, args echoParams, cc tools.CallContext) (string, error) {
				if cc.User.ID != "" {
					return args.Text + " for " + cc.User.ID, nil
				}
				return args.Text, nil
			}),
		"broken": tools.Func("Always fails.",
			func(context.Context, echoParams, tools.CallContext) (string, error) {
				return "", errToolDown
			}),
	}
	registry, err := tools.NewRegistry([]config.ToolDeclaration{
		{Name: "echo", Path: "echo"},
		{Name: "broken", Path: "broken"},
	}, catalog)
	Expect(err).NotTo(HaveOccurred())
	return registry
}

var _ = Describe("RunDriver", func() {
	var (
		ctx     context.Context
		sleeper *recordingSleeper
	)

	BeforeEach(func() {
		ctx = context.Background()
		sleeper = &recordingSleeper{}
	})

	newDriver := func(threads *fakeThreads) *assistant.RunDriver {
		return assistant.NewRunDriver(threads, testRegistry(), nil).WithSleeper(sleeper.sleep)
	}

	Describe("Complete", func() {
		It("returns once the run completes", func() {
			threads := newFakeThreads(append(pending(3), completed())...)

			Expect(newDriver(threads).Complete(ctx, "thread_1", "run_1", tools.CallContext{})).To(Succeed())
			Expect(threads.getCalls).To(Equal(4))
			Expect(sleeper.waits).To(HaveLen(3))
			Expect(threads.cancelCalls).To(BeZero())
		})

		It("gives up after the retry budget and cancels the run exactly once", func() {
			threads := newFakeThreads(model.Run{Status: model.RunStatusQueued})

			err := newDriver(threads).Complete(ctx, "thread_1", "run_1", tools.CallContext{})

			Expect(err).To(MatchError(assistant.ErrMaxRetriesExceeded))
			Expect(threads.cancelCalls).To(Equal(1))
			Expect(threads.getCalls).To(Equal(assistant.MaxRetries + 1))
			Expect(sleeper.waits).To(HaveLen(assistant.MaxRetries + 1))
		})

		It("grows the wait exponentially with each pending poll", func() {
			threads := newFakeThreads(append(pending(4), completed())...)

			Expect(newDriver(threads).Complete(ctx, "thread_1", "run_1", tools.CallContext{})).To(Succeed())
			for i, wait := range sleeper.waits {
				base := time.Duration(1<<i) * time.Second
				Expect(wait).To(BeNumerically(">=", base))
				Expect(wait).To(BeNumerically("<", base+10*time.Second))
			}
		})

		It("resets the retry budget after a tool round-trip", func() {
			call := model.ToolCall{ID: "call_1", Name: "echo", Arguments: `{"text":"ping"}`}
			script := []model.Run{requiresAction(call)}
			script = append(script, pending(10)...)
			script = append(script, requiresAction(call))
			script = append(script, pending(10)...)
			script = append(script, completed())
			threads := newFakeThreads(script...)

			Expect(newDriver(threads).Complete(ctx, "thread_1", "run_1", tools.CallContext{})).To(Succeed())
			Expect(threads.submitted).To(HaveLen(2))
			Expect(threads.cancelCalls).To(BeZero())
			Expect(sleeper.waits).To(HaveLen(20))
		})

		It("submits all outputs of a batch together, in call order", func() {
			threads := newFakeThreads(
				requiresAction(
					model.ToolCall{ID: "call_b", Name: "echo", Arguments: `{"text":"second"}`},
					model.ToolCall{ID: "call_a", Name: "echo", Arguments: `{"text":"first"}`},
				),
				completed(),
			)

			Expect(newDriver(threads).Complete(ctx, "thread_1", "run_1", tools.CallContext{})).To(Succeed())
			Expect(threads.submitted).To(Equal([][]model.ToolOutput{{
				{ToolCallID: "call_b", Output: "second"},
				{ToolCallID: "call_a", Output: "first"},
			}}))
		})

		It("passes the call context to tools", func() {
			threads := newFakeThreads(
				requiresAction(model.ToolCall{ID: "call_1", Name: "echo", Arguments: `{"text":"hi"}`}),
				completed(),
			)
			cc := tools.CallContext{User: model.User{ID: "U42"}, ChannelID: "C1"}

			Expect(newDriver(threads).Complete(ctx, "thread_1", "run_1", cc)).To(Succeed())
			Expect(threads.submitted[0][0].Output).To(Equal("hi for U42"))
		})

		It("treats an unknown tool as fatal without consuming retries", func() {
			threads := newFakeThreads(
				requiresAction(model.ToolCall{ID: "call_1", Name: "launch_rockets", Arguments: `{}`}),
				completed(),
			)

			err := newDriver(threads).Complete(ctx, "thread_1", "run_1", tools.CallContext{})

			var notFound *tools.ToolNotFoundError
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.Name).To(Equal("launch_rockets"))
			Expect(threads.cancelCalls).To(Equal(1))
			Expect(threads.getCalls).To(Equal(1))
			Expect(sleeper.waits).To(BeEmpty())
			Expect(threads.submitted).To(BeEmpty())
		})

		It("treats malformed arguments as fatal", func() {
			threads := newFakeThreads(
				requiresAction(model.ToolCall{ID: "call_1", Name: "echo", Arguments: `{"text":`}),
				completed(),
			)

			err := newDriver(threads).Complete(ctx, "thread_1", "run_1", tools.CallContext{})

			var invalid *tools.InvalidArgumentsError
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(invalid.Tool).To(Equal("echo"))
			Expect(threads.cancelCalls).To(Equal(1))
			Expect(threads.submitted).To(BeEmpty())
		})

		It("cancels the run when a tool body fails", func() {
			threads := newFakeThreads(
				requiresAction(
					model.ToolCall{ID: "call_1", Name: "echo", Arguments: `{"text":"ok"}`},
					model.ToolCall{ID: "call_2", Name: "broken", Arguments: `{"text":"x"}`},
				),
			)

			err := newDriver(threads).Complete(ctx, "thread_1", "run_1", tools.CallContext{})

			var toolErr *assistant.ToolError
			Expect(errors.As(err, &toolErr)).To(BeTrue())
			Expect(toolErr.Tool).To(Equal("broken"))
			Expect(toolErr.CallID).To(Equal("call_2"))
			Expect(err).To(MatchError(errToolDown))
			Expect(threads.cancelCalls).To(Equal(1))
			Expect(threads.submitted).To(BeEmpty())
		})

		It("reports an incomplete run with its reason", func() {
			threads := newFakeThreads(model.Run{Status: model.RunStatusIncomplete, IncompleteReason: "max_prompt_tokens"})

			err := newDriver(threads).Complete(ctx, "thread_1", "run_1", tools.CallContext{})

			var incomplete *assistant.IncompleteRunError
			Expect(errors.As(err, &incomplete)).To(BeTrue())
			Expect(incomplete.Reason).To(Equal("max_prompt_tokens"))
			Expect(threads.cancelCalls).To(BeZero())
		})

		DescribeTable("reports other terminal statuses as run failures",
			func(status model.RunStatus) {
				threads := newFakeThreads(model.Run{Status: status, LastErrorCode: "server_error"})

				err := newDriver(threads).Complete(ctx, "thread_1", "run_1", tools.CallContext{})

				var failed *assistant.RunFailedError
				Expect(errors.As(err, &failed)).To(BeTrue())
				Expect(failed.Status).To(Equal(status))
				Expect(err.Error()).To(ContainSubstring("failed with status " + string(status)))
			},
			Entry("failed", model.RunStatusFailed),
			Entry("cancelled", model.RunStatusCancelled),
			Entry("expired", model.RunStatusExpired),
		)

		It("returns remote API errors unchanged", func() {
			threads := newFakeThreads(completed())
			apiErr := errors.New("connection reset")
			threads.getErr = apiErr

			err := newDriver(threads).Complete(ctx, "thread_1", "run_1", tools.CallContext{})
			Expect(err).To(MatchError(apiErr))
			Expect(threads.cancelCalls).To(BeZero())
		})

		It("stops waiting when the context is cancelled", func() {
			threads := newFakeThreads(model.Run{Status: model.RunStatusQueued})
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			err := newDriver(threads).Complete(cancelled, "thread_1", "run_1", tools.CallContext{})
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Describe("Execute", func() {
		It("starts a run with the registry's tools and returns the answer", func() {
			threads := newFakeThreads(model.Run{Status: model.RunStatusQueued}, completed())
			threads.latest = &model.AssistantMessage{Text: "Hello!"}

			answer, err := newDriver(threads).Execute(ctx, "thread_1", "asst_1", "Be brief.", tools.CallContext{})

			Expect(err).NotTo(HaveOccurred())
			Expect(answer).To(Equal("Hello!"))
			Expect(threads.runs).To(HaveLen(1))
			Expect(threads.runs[0].AssistantID).To(Equal("asst_1"))
			Expect(threads.runs[0].AdditionalInstructions).To(Equal("Be brief."))
			Expect(threads.runs[0].Tools).To(HaveLen(2))
			Expect(threads.runs[0].Tools[0].Name).To(Equal("echo"))
		})

		It("fails when no assistant message exists", func() {
			threads := newFakeThreads(completed())

			_, err := newDriver(threads).Execute(ctx, "thread_1", "asst_1", "", tools.CallContext{})
			Expect(err).To(MatchError(assistant.ErrNoAssistantMessage))
		})

		It("carries the remote failure code", func() {
			threads := newFakeThreads(model.Run{Status: model.RunStatusFailed, LastErrorCode: "rate_limit_exceeded", LastErrorMessage: "rate_limited"})

			_, err := newDriver(threads).Execute(ctx, "thread_1", "asst_1", "", tools.CallContext{})

			var failed *assistant.RunFailedError
			Expect(errors.As(err, &failed)).To(BeTrue())
			Expect(failed.Message).To(Equal("rate_limited"))
			Expect(strings.Contains(err.Error(), "rate_limited")).To(BeTrue())
		})
	})
})

var _ = Describe("Backoff", func() {
	It("waits 2^retry seconds plus less than ten seconds of jitter", func() {
		for retry := 0; retry <= assistant.MaxRetries; retry++ {
			base := time.Duration(1<<retry) * time.Second
			for range 20 {
				wait := assistant.Backoff(retry)
				Expect(wait).To(BeNumerically(">=", base))
				Expect(wait).To(BeNumerically("<", base+10*time.Second))
			}
		}
	})
})
