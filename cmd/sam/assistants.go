package main

import (
	"context"
	"fmt"
	"io"

	"github.com/openai/openai-go"

	"samhq.app/sam/common/llm"
	"samhq.app/sam/core/config"
)

// instructionsUpdater replaces the instructions of a remote assistant.
type instructionsUpdater func(ctx context.Context, a config.Assistant, instructions string) error

func listAssistants(w io.Writer, project config.Project) {
	if len(project.Assistants) == 0 {
		fmt.Fprintln(w, "No assistants configured.")
		return
	}
	for _, a := range project.Assistants {
		fmt.Fprintf(w, "%s (%s): %s\n", a.Name, a.Project, a.AssistantID)
	}
}

func uploadAssistants(ctx context.Context, w io.Writer, project config.Project, update instructionsUpdater) error {
	for _, a := range project.Assistants {
		fmt.Fprintf(w, "Uploading %s... ", a.Name)
		prompt, err := project.SystemPrompt(a)
		if err != nil {
			fmt.Fprintln(w, "Failed!")
			return err
		}
		if err := update(ctx, a, prompt); err != nil {
			fmt.Fprintln(w, "Failed!")
			return fmt.Errorf("updating assistant %s: %w", a.Name, err)
		}
		fmt.Fprintln(w, "Done!")
	}
	return nil
}

// openAIUpdater updates assistants with the API key of their project.
func openAIUpdater(cfg config.Config) instructionsUpdater {
	return func(ctx context.Context, a config.Assistant, instructions string) error {
		client, err := llm.NewClient(llm.Config{
			APIKey:  cfg.ProjectAPIKey(a.Project),
			BaseURL: cfg.OpenAI.BaseURL,
		})
		if err != nil {
			return err
		}
		_, err = client.Beta.Assistants.Update(ctx, a.AssistantID, openai.BetaAssistantUpdateParams{
			Instructions: openai.String(instructions),
		})
		return err
	}
}
