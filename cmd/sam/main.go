// Command sam runs the Slack assistant and manages its remote assistants.
//
//	sam run slack [-v]
//	sam assistants list
//	sam assistants upload
//
// Settings come from the environment (and .env in development); assistants
// and tools are declared in sam.yaml, or the file named by SAM_CONFIG.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "sam",
		Short:        "Sam - a Slack assistant backed by OpenAI assistants",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		buildRunCmd(),
		buildAssistantsCmd(),
	)
	return rootCmd
}

const banner = `
 ███████╗ █████╗ ███╗   ███╗
 ██╔════╝██╔══██╗████╗ ████║
 ███████╗███████║██╔████╔██║
 ╚════██║██╔══██║██║╚██╔╝██║
 ███████║██║  ██║██║ ╚═╝ ██║
 ╚══════╝╚═╝  ╚═╝╚═╝     ╚═╝
`

func printBanner() {
	fmt.Fprintf(os.Stderr, "%s\n", banner)
}
