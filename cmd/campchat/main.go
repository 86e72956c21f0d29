package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"campchat/cmd/campchat/chat"
	"campchat/internal/config"
	"campchat/internal/instructions"
	"campchat/internal/logging"
	"campchat/internal/relay"
	"campchat/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	relayURL   string
	debugMode  bool
	deleteYes  bool

	// Logger for non-interactive subcommands
	logger *zap.Logger
)

// rootCmd launches the interactive chat widget when run bare.
var rootCmd = &cobra.Command{
	Use:   "campchat",
	Short: "campchat - terminal chat widget for camp knowledge bases",
	Long: `campchat is a terminal front end for camp knowledge-base assistants.

It connects to a relay backend, lets a parent pick a camp, register campers
for personalized answers, and chat against the camp's documentation with
streamed, markdown-rendered responses.

Run without arguments to start the interactive chat interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Interactive mode has its own UI; skip the console logger there.
		if cmd.Use == "campchat" && cmd.CalledAs() == "campchat" {
			return nil
		}
		zcfg := zap.NewProductionConfig()
		if debugMode {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveChat()
	},
}

// campsCmd lists the camps the relay exposes.
var campsCmd = &cobra.Command{
	Use:   "camps",
	Short: "List the camps available on the relay",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client := relay.NewClient(cfg.Relay.BaseURL, cfg.RelayTimeout())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		camps, err := client.ListCamps(ctx)
		if err != nil {
			return fmt.Errorf("failed to list camps: %w", err)
		}
		logger.Info("camps listed", zap.Int("count", len(camps)))
		for _, c := range camps {
			fmt.Printf("%s\t%s\n", c.ID, c.Name)
		}
		return nil
	},
}

// instructionsCmd manages per-camp instruction overrides from the command
// line, for operators who script widget deployments.
var instructionsCmd = &cobra.Command{
	Use:   "instructions",
	Short: "Manage custom instruction overrides for a camp",
}

var instructionsGetCmd = &cobra.Command{
	Use:   "get [camp-id]",
	Short: "Print the instruction override for a camp",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, ctx, cancel, err := instructionsCache()
		if err != nil {
			return err
		}
		defer cancel()
		text, err := cache.Load(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to load instructions: %w", err)
		}
		if text == "" {
			fmt.Println("(no override configured)")
			return nil
		}
		fmt.Println(text)
		return nil
	},
}

var instructionsSetCmd = &cobra.Command{
	Use:   "set [camp-id] [text]",
	Short: "Replace the instruction override for a camp",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, ctx, cancel, err := instructionsCache()
		if err != nil {
			return err
		}
		defer cancel()
		if err := cache.Save(ctx, args[0], args[1]); err != nil {
			return fmt.Errorf("failed to save instructions: %w", err)
		}
		logger.Info("instructions saved", zap.String("camp", args[0]))
		return nil
	},
}

var instructionsDeleteCmd = &cobra.Command{
	Use:   "delete [camp-id]",
	Short: "Remove the instruction override for a camp",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !deleteYes {
			fmt.Fprintf(cmd.OutOrStdout(), "Delete the instruction override for %s? [y/N] ", args[0])
			reader := bufio.NewReader(cmd.InOrStdin())
			line, _ := reader.ReadString('\n')
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "y", "yes":
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "aborted")
				return nil
			}
		}
		cache, ctx, cancel, err := instructionsCache()
		if err != nil {
			return err
		}
		defer cancel()
		if err := cache.Delete(ctx, args[0]); err != nil {
			return fmt.Errorf("failed to delete instructions: %w", err)
		}
		logger.Info("instructions deleted", zap.String("camp", args[0]))
		return nil
	},
}

func instructionsCache() (*instructions.Cache, context.Context, context.CancelFunc, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	client := relay.NewClient(cfg.Relay.BaseURL, cfg.RelayTimeout())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	return instructions.NewCache(client), ctx, cancel, nil
}

func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if relayURL != "" {
		cfg.Relay.BaseURL = relayURL
	}
	if debugMode {
		cfg.Logging.DebugMode = true
	}
	return cfg, nil
}

func runInteractiveChat() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := logging.Initialize(config.StateDir(), logging.Config{
		DebugMode: cfg.Logging.DebugMode,
		Level:     cfg.Logging.Level,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.CloseAll()
	logging.Boot("campchat starting, relay %s", cfg.Relay.BaseURL)

	// Reload logging settings when the config file changes on disk.
	watcher, err := config.NewWatcher(configFileOrDefault())
	if err == nil {
		watcher.Start()
		defer watcher.Stop()
		go func() {
			for fresh := range watcher.Updates() {
				logging.Reconfigure(logging.Config{
					DebugMode: fresh.Logging.DebugMode,
					Level:     fresh.Logging.Level,
				})
			}
		}()
	} else {
		logging.BootError("config watcher unavailable: %v", err)
	}

	client := relay.NewClient(cfg.Relay.BaseURL, cfg.RelayTimeout())
	engine := session.NewEngine(client, session.Options{
		HistoryWindow:    cfg.Engine.HistoryWindow,
		ThinkingInterval: cfg.ThinkingInterval(),
		SuggestionLimit:  cfg.Engine.SuggestionLimit,
	})
	defer engine.Close()

	p := tea.NewProgram(chat.New(engine, cfg), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat interface failed: %w", err)
	}
	return nil
}

func configFileOrDefault() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ~/.campchat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&relayURL, "relay-url", "", "relay base URL override")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	instructionsDeleteCmd.Flags().BoolVar(&deleteYes, "yes", false, "skip the confirmation prompt")

	instructionsCmd.AddCommand(instructionsGetCmd, instructionsSetCmd, instructionsDeleteCmd)
	rootCmd.AddCommand(campsCmd, instructionsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
