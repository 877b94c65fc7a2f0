package main

import (
	"github.com/spf13/cobra"

	"samhq.app/sam/core/config"
)

func buildRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run Sam on a chat platform",
	}
	cmd.AddCommand(buildRunSlackCmd())
	return cmd
}

func buildRunSlackCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "slack",
		Short: "Connect to Slack over socket mode and answer messages",
		Long: `Connect to Slack over socket mode and answer messages.

Requires SLACK_BOT_TOKEN, SLACK_APP_TOKEN and OPENAI_API_KEY. When PORT is set
an HTTP server exposes /health and /metrics. When OPEN_WEBUI_URL is set the
OpenWebUI chat endpoint answers instead of the Assistants API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSlack(cmd.Context(), verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

func buildAssistantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assistants",
		Short: "Manage the assistants declared in the project file",
	}
	cmd.AddCommand(buildAssistantsListCmd(), buildAssistantsUploadCmd())
	return cmd
}

func buildAssistantsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the configured assistants",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			project, err := config.LoadProject(cfg.ConfigPath)
			if err != nil {
				return err
			}
			listAssistants(cmd.OutOrStdout(), project)
			return nil
		},
	}
}

func buildAssistantsUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload",
		Short: "Upload each assistant's compiled instructions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			project, err := config.LoadProject(cfg.ConfigPath)
			if err != nil {
				return err
			}
			return uploadAssistants(cmd.Context(), cmd.OutOrStdout(), project, openAIUpdater(cfg))
		},
	}
}
