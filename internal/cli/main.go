package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "captionctl <audio>...",
		Short:        "Generate word-level caption JSON files from audio",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args)
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.Flags().String("config", "config/config.yaml", "Configuration file")
	root.Flags().String("model", "", "Whisper model name (tiny, base, small, medium, large-v3)")
	root.Flags().String("language", "auto", "Language code or 'auto'")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
