package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cinebooker-cli/config"
	"cinebooker-cli/logging"
	"cinebooker-cli/service"
	"cinebooker-cli/store"
	"cinebooker-cli/tui"
)

// app bundles the collaborators every command needs.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	client   *service.Client
	store    *store.Store
	sessions *service.Sessions
}

func newApp(errOut io.Writer) (*app, error) {
	cfg, warnings, err := config.Load()
	if err != nil {
		return nil, err
	}
	for _, warning := range warnings {
		fmt.Fprintf(errOut, "warning: %s\n", warning)
	}

	logger, err := logging.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	client := service.NewClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.HTTPTimeout}, logger)
	st := store.New(cfg.ConfigDir, cfg.CacheDir)
	sessions := service.NewSessions(client, st, logger)
	client.SetTokenSource(sessions)
	if err := sessions.Restore(); err != nil {
		logger.Warn("session restore failed", zap.Error(err))
	}

	logger.Debug("started", zap.String("api", cfg.APIBaseURL), zap.Duration("timeout", cfg.HTTPTimeout))
	return &app{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		store:    st,
		sessions: sessions,
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// withApp builds the app for a single command run.
func withApp(cmd *cobra.Command, run func(ctx context.Context, a *app) error) error {
	a, err := newApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()
	return run(cmd.Context(), a)
}

func newRootCmd(version string, commit string) *cobra.Command {
	versionLine := version
	if commit != "none" && commit != "" {
		versionLine = fmt.Sprintf("%s (%s)", version, commit)
	}

	root := &cobra.Command{
		Use:           "cinebooker",
		Short:         "Book movie tickets from the terminal",
		Long:          `Browse movies and showtimes, pick your seats and book them without leaving the terminal.`,
		Version:       versionLine,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				program := tea.NewProgram(tui.New(tui.Options{
					Client:   a.client,
					Sessions: a.sessions,
					Store:    a.store,
					Logger:   a.logger,
					MovieID:  a.cfg.MovieID,
				}), tea.WithAltScreen(), tea.WithContext(ctx))
				_, err := program.Run()
				return err
			})
		},
	}
	root.SetVersionTemplate(config.AppName + " {{.Version}}\n")

	root.AddCommand(
		newMoviesCmd(),
		newShowsCmd(),
		newSeatsCmd(),
		newBookCmd(),
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newVersionCmd(versionLine),
	)
	return root
}

func newVersionCmd(versionLine string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", config.AppName, versionLine)
		},
	}
}

// Execute runs the command line and returns the process exit code.
func Execute(version string, commit string) int {
	root := newRootCmd(version, commit)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+service.UserMessage(err))
		return 1
	}
	return 0
}
