package llm_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"samhq.app/sam/common/llm"
)

type pairParams struct {
	A int    `json:"a" jsonschema_description:"The first value."`
	B string `json:"b" jsonschema_description:"The second value."`
}

type optionalParams struct {
	Query    string `json:"query"`
	Language string `json:"language,omitempty" jsonschema:"enum=DE,enum=EN"`
	MinAge   int    `json:"min_age,omitempty"`
}

type noParams struct{}

var _ = Describe("GenerateParameters", func() {
	It("marks every field without omitempty as required, in declaration order", func() {
		params, err := llm.GenerateParameters(pairParams{})
		Expect(err).NotTo(HaveOccurred())

		Expect(params["type"]).To(Equal("object"))
		Expect(params["required"]).To(Equal([]any{"a", "b"}))
		Expect(params).NotTo(HaveKey("$schema"))

		props := params["properties"].(map[string]any)
		Expect(props["a"]).To(HaveKeyWithValue("type", "integer"))
		Expect(props["b"]).To(HaveKeyWithValue("type", "string"))
		Expect(props["b"]).To(HaveKeyWithValue("description", "The second value."))
	})

	It("maps closed value sets to a string enum and leaves optional fields out of required", func() {
		params, err := llm.GenerateParameters(optionalParams{})
		Expect(err).NotTo(HaveOccurred())

		Expect(params["required"]).To(Equal([]any{"query"}))
		props := params["properties"].(map[string]any)
		Expect(props["language"]).To(HaveKeyWithValue("type", "string"))
		Expect(props["language"]).To(HaveKeyWithValue("enum", []any{"DE", "EN"}))
		Expect(props["min_age"]).To(HaveKeyWithValue("type", "integer"))
	})

	It("emits an empty object for parameterless tools", func() {
		params, err := llm.GenerateParameters(noParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(params["properties"]).To(BeEmpty())
		Expect(params["required"]).To(BeEmpty())
	})
})

var _ = Describe("ParseToolArguments", func() {
	It("decodes JSON arguments", func() {
		args, err := llm.ParseToolArguments[pairParams](`{"a": 1, "b": "x"}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(args).To(Equal(pairParams{A: 1, B: "x"}))
	})

	It("treats empty arguments as an empty object", func() {
		args, err := llm.ParseToolArguments[noParams]("")
		Expect(err).NotTo(HaveOccurred())
		Expect(args).To(Equal(noParams{}))
	})

	It("fails on malformed JSON", func() {
		_, err := llm.ParseToolArguments[pairParams](`{"a": `)
		Expect(err).To(MatchError(ContainSubstring("parse tool arguments")))
	})
})

var _ = Describe("AssistantTools", func() {
	It("wraps each tool as a function tool", func() {
		tools := llm.AssistantTools([]llm.Tool{{
			Name:        "web_search",
			Description: "Search the web.",
			Parameters:  map[string]any{"type": "object"},
		}})
		Expect(tools).To(HaveLen(1))
		Expect(tools[0].OfFunction).NotTo(BeNil())
		Expect(tools[0].OfFunction.Function.Name).To(Equal("web_search"))
		Expect(tools[0].OfFunction.Function.Description.Value).To(Equal("Search the web."))
	})
})
