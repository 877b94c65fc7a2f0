package assistant_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"samhq.app/sam/common/llm"
	"samhq.app/sam/internal/assistant"
	"samhq.app/sam/internal/model"
)

var _ = Describe("ChatBackend", func() {
	var (
		ctx     context.Context
		server  *httptest.Server
		backend *assistant.ChatBackend

		mu       sync.Mutex
		lastChat map[string]any
		upload   string
		models   string
	)

	BeforeEach(func() {
		ctx = context.Background()
		lastChat = nil
		upload = ""
		models = `{"data":[{"id":"other","info":{"meta":{"toolIds":["x"]}}},{"id":"sam","info":{"meta":{"toolIds":["weather","calendar"]}}}]}`

		mux := http.NewServeMux()
		mux.HandleFunc("POST /api/chat/completions", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer owui-key"))
			var body map[string]any
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
			mu.Lock()
			lastChat = body
			mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","created":0,"model":"sam",
				"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Hi there"}}]}`)
		})
		mux.HandleFunc("POST /api/v1/files/", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			file, header, err := r.FormFile("file")
			Expect(err).NotTo(HaveOccurred())
			content, err := io.ReadAll(file)
			Expect(err).NotTo(HaveOccurred())
			mu.Lock()
			upload = header.Filename + ":" + string(content)
			mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":"f-123","filename":"notes.txt"}`)
		})
		mux.HandleFunc("GET /api/models", func(w http.ResponseWriter, r *http.Request) {
			if models == "" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, models)
		})
		server = httptest.NewServer(mux)
		DeferCleanup(server.Close)

		client, err := llm.NewClient(llm.Config{APIKey: "owui-key", BaseURL: server.URL + "/api"})
		Expect(err).NotTo(HaveOccurred())
		backend = assistant.NewChatBackend(client, "sam")
	})

	It("sends the whole history with files, features and tool ids", func() {
		conv := model.NewConversation()
		conv.Model = "sam"
		conv.ToolIDs = []string{"weather"}
		conv.Features.WebSearch = true
		conv.AttachFiles("f-1")
		conv.Append(model.RoleUser, "hi")
		conv.Append(model.RoleAssistant, "hello")
		conv.Append(model.RoleUser, "what's new?")

		answer, err := backend.Respond(ctx, conv, assistant.Request{})
		Expect(err).NotTo(HaveOccurred())
		Expect(answer).To(Equal("Hi there"))

		mu.Lock()
		defer mu.Unlock()
		Expect(lastChat["model"]).To(Equal("sam"))
		Expect(lastChat["tool_ids"]).To(Equal([]any{"weather"}))
		Expect(lastChat["files"]).To(Equal([]any{map[string]any{"type": "file", "id": "f-1"}}))
		Expect(lastChat["features"]).To(HaveKeyWithValue("web_search", true))
		Expect(lastChat["messages"]).To(HaveLen(3))
		Expect(lastChat["messages"].([]any)[1]).To(HaveKeyWithValue("role", "assistant"))
	})

	It("falls back to the configured model", func() {
		conv := model.NewConversation()
		conv.Append(model.RoleUser, "hi")

		_, err := backend.Respond(ctx, conv, assistant.Request{})
		Expect(err).NotTo(HaveOccurred())

		mu.Lock()
		defer mu.Unlock()
		Expect(lastChat["model"]).To(Equal("sam"))
	})

	It("uploads attachments as multipart forms", func() {
		id, err := backend.UploadFile(ctx, "notes.txt", []byte("remember the milk"))
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal("f-123"))

		mu.Lock()
		defer mu.Unlock()
		Expect(upload).To(Equal("notes.txt:remember the milk"))
	})

	It("leaves the history alone on append", func() {
		conv := model.NewConversation()
		Expect(backend.Append(ctx, conv, model.Message{Role: model.RoleUser, Content: "hi"})).To(Succeed())
	})

	Describe("ToolIDs", func() {
		It("reads the tool ids of the configured model", func() {
			Expect(backend.ToolIDs(ctx)).To(Equal([]string{"weather", "calendar"}))
		})

		It("defaults to an empty list when the model is unknown", func() {
			models = `{"data":[{"id":"other","info":{"meta":{"toolIds":["x"]}}}]}`
			Expect(backend.ToolIDs(ctx)).To(BeEmpty())
		})

		It("defaults to an empty list when the server fails", func() {
			models = ""
			ids := backend.ToolIDs(ctx)
			Expect(ids).NotTo(BeNil())
			Expect(ids).To(BeEmpty())
		})
	})
})
