// Command joint serves text-mode art documents for collaborative editing
// over websockets.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/textmode-dev/joint/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
   ░░█ █▀█ █ █▄░█ ▀█▀
   █▄█ █▄█ █ █░▀█ ░█░
`

func main() {
	if os.Getenv("NO_COLOR") != "" {
		errors.DisableColors()
	}
	if err := rootCmd().Execute(); err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "joint",
		Short: "Collaborative text-mode art server",
		Long: `joint serves BinaryText art documents to websocket clients
so several artists can draw on the same canvas at once.

Each document is a session bound to a URL path. Edits are relayed
to everyone connected and the document is saved back to disk
periodically and on shutdown.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		serveCmd(),
		versionCmd(),
	)
	return root
}

// printBanner prints the ASCII art banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
}
