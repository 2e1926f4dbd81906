package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/agentdesk/internal/app"
	"github.com/zjrosen/agentdesk/internal/config"
	"github.com/zjrosen/agentdesk/internal/log"
)

func init() {
	// Query the terminal background before any Bubble Tea program starts so
	// the OSC 11 reply cannot race the input loop.
	_ = lipgloss.HasDarkBackground()
}

// localConfigPath is where a default config is written when none exists.
const localConfigPath = ".agentdesk/config.yaml"

var (
	version   = "dev"
	cfgFile   string
	cfg       config.Config
	debugFlag bool
	cwdFlag   string
	attachArg []string
)

var rootCmd = &cobra.Command{
	Use:   "agentdesk",
	Short: "A terminal front-end for coding agent sessions",
	Long: `A terminal front-end for starting, continuing and stopping coding agent
sessions on a backend reached over a WebSocket event channel.

With no backend.url configured, agentdesk runs against an in-process loopback
so the interface can be explored without a backend.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .agentdesk/config.yaml, then ~/.config/agentdesk/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false,
		"write debug logs (also enabled by AGENTDESK_DEBUG)")
	rootCmd.Flags().StringVar(&cwdFlag, "cwd", "",
		"working directory for new sessions (overrides session.default_cwd)")
	rootCmd.Flags().StringArrayVarP(&attachArg, "attach", "a", nil,
		"file to attach to the first prompt (repeatable)")
}

func initConfig() {
	cfg = config.Defaults()

	path, err := resolveConfigPath(cfgFile)
	if err != nil {
		// Nothing found anywhere: create the default locally.
		if writeErr := config.WriteDefaultConfig(localConfigPath); writeErr == nil {
			path = localConfigPath
		}
	}
	if path == "" {
		return
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: reading %s: %v\n", path, err)
		return
	}
	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: decoding %s: %v\n", path, err)
	}
}

var errNoConfig = errors.New("no config file found")

// resolveConfigPath applies the lookup order: explicit flag, then
// .agentdesk/config.yaml, then ~/.config/agentdesk/config.yaml.
func resolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if _, err := os.Stat(localConfigPath); err == nil {
		return localConfigPath, nil
	}
	if dir := config.ConfigDir(); dir != "" {
		user := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(user); err == nil {
			return user, nil
		}
	}
	return "", errNoConfig
}

// loadConfig re-reads path on top of the defaults. Used for live reloads.
func loadConfig(path string) (config.Config, error) {
	out := config.Defaults()
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return out, fmt.Errorf("reading config: %w", err)
	}
	if err := v.Unmarshal(&out); err != nil {
		return out, fmt.Errorf("decoding config: %w", err)
	}
	if err := config.Validate(out); err != nil {
		return out, err
	}
	return out, nil
}

// initLogging installs the debug log when --debug or AGENTDESK_DEBUG is set.
// The returned cleanup is never nil.
func initLogging() (func(), error) {
	if !debugFlag && os.Getenv("AGENTDESK_DEBUG") == "" {
		return func() {}, nil
	}
	path := cfg.LogPath
	if env := os.Getenv("AGENTDESK_LOG"); env != "" {
		path = env
	}
	if path == "" {
		path = "debug.log"
	}
	cleanup, err := log.Init(path)
	if err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	return cleanup, nil
}

func runApp(cmd *cobra.Command, _ []string) error {
	cleanupLog, err := initLogging()
	if err != nil {
		return err
	}
	defer cleanupLog()

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	configPath := viper.ConfigFileUsed()
	if configPath == "" {
		configPath = localConfigPath
	}

	rt, err := newRuntime(cmd.Context(), cfg, configPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			log.ErrorErr(log.CatConfig, "Shutdown failed", closeErr)
		}
	}()

	log.Info(log.CatConfig, "Starting agentdesk", "version", version, "config", configPath, "backend", cfg.Backend.URL)

	zone.NewGlobal()
	model := app.New(rt.Services(), cfg, app.Options{Cwd: cwdFlag, Attachments: attachArg})
	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	final, err := p.Run()
	if m, ok := final.(app.Model); ok {
		_ = m.Close()
	}
	if err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
