package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/scribecli/scribe/internal/config"
	"github.com/scribecli/scribe/internal/logging"
	"github.com/scribecli/scribe/internal/platform"
	"github.com/scribecli/scribe/internal/version"
)

type appState struct {
	verbose      bool
	jsonLogs     bool
	noProgress   bool
	model        string
	modelDir     string
	language     string
	autoDownload bool
	configPath   string

	logger *zap.Logger
	now    func() time.Time

	transcribeFn func(ctx context.Context, audioPath, modelRef string) (string, error)
}

// NewRootCmd builds the scribe command tree. The root command is the whole
// tool: transcribe one audio file and print the text.
func NewRootCmd() *cobra.Command {
	return newRootCmd(newAppState())
}

func newAppState() *appState {
	app := &appState{
		model:        "base",
		language:     "en",
		autoDownload: true,
		now:          time.Now,
	}
	app.transcribeFn = app.transcribeAudio
	return app
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scribe <audio-file> [model]",
		Short: "Transcribe an audio file with a whisper speech model",
		Long: `Scribe loads a pretrained whisper speech-recognition model, runs it over
the given audio file, and prints the transcript to stdout. Missing models
are downloaded and cached on first use.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.initialize(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			modelRef := app.model
			if len(args) > 1 {
				modelRef = args[1]
			}

			transcript, err := app.transcribeFn(cmd.Context(), args[0], modelRef)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), transcript)
			if isBlankTranscript(transcript) {
				app.log().Warn(noSpeechHint())
			}
			return nil
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd, app)
	bindProgressFlag(cmd, app)
	bindModelFlags(cmd, app)
	bindLanguageAndDownloadFlags(cmd, app)
	bindConfigFlag(cmd, app)

	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newModelsCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// initialize sets up logging and overlays config-file values onto any flag
// the user did not set explicitly.
func (a *appState) initialize(flags *pflag.FlagSet) error {
	logger, err := logging.New(logging.Options{Verbose: a.verbose, JSON: a.jsonLogs})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger

	cfg, err := config.Resolve(a.configPath)
	if err != nil {
		return err
	}
	a.applyConfig(flags, cfg)

	a.language = sanitizeLanguage(a.language)
	return nil
}

func (a *appState) applyConfig(flags *pflag.FlagSet, cfg config.Config) {
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	if cfg.Model != "" && !changed("model") {
		a.model = cfg.Model
	}
	if cfg.ModelDir != "" && !changed("model-dir") {
		a.modelDir = cfg.ModelDir
	}
	if cfg.Language != "" && !changed("language") {
		a.language = cfg.Language
	}
	if cfg.AutoDownload != nil && !changed("auto-download") {
		a.autoDownload = *cfg.AutoDownload
	}
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.Flags().BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
}

func bindProgressFlag(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.model, "model", app.model, "Model name or model file path")
	cmd.Flags().StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory where models are stored")
}

func bindLanguageAndDownloadFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.language, "language", app.language, "Language code (en|de|auto|...) for transcription")
	cmd.Flags().BoolVar(&app.autoDownload, "auto-download", app.autoDownload, "Automatically download missing models")
}

func bindConfigFlag(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.configPath, "config", app.configPath, "Config file path (default <config-dir>/scribe/config.toml)")
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.modelDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
