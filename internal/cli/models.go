package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scribecli/scribe/internal/whisper"
)

func newModelsCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List known model identifiers and their install state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			modelDir, err := app.modelStorageDir()
			if err != nil {
				return err
			}

			for _, name := range whisper.ModelNames() {
				resolved, err := whisper.ResolveModel(name, modelDir)
				if err != nil {
					return err
				}

				state := "not downloaded"
				if !resolved.NeedsDownload {
					state = "installed"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %-16s %s\n", name, state, resolved.Path)
			}
			return nil
		},
	}

	bindLoggingFlags(cmd, app)
	bindModelFlags(cmd, app)
	bindConfigFlag(cmd, app)

	return cmd
}
