package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/knot/internal/app"
	"github.com/lu-zhengda/knot/internal/archive"
	"github.com/lu-zhengda/knot/internal/config"
	"github.com/lu-zhengda/knot/internal/credential"
	"github.com/lu-zhengda/knot/internal/gateway"
	"github.com/lu-zhengda/knot/internal/logging"
	"github.com/lu-zhengda/knot/internal/settings"
	"github.com/lu-zhengda/knot/internal/store/sqlite"
)

var (
	// version is set via ldflags at build time.
	version = "dev"
	cfgFile string

	// jsonFlag enables JSON output for all commands.
	jsonFlag bool
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "knot",
		Short:        "Turn mail into work folders",
		Long:         "Create work folders from mail, then archive them by department.",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if shell, _ := cmd.Flags().GetString("generate-completion"); shell != "" {
				switch shell {
				case "bash":
					return cmd.Root().GenBashCompletion(os.Stdout)
				case "zsh":
					return cmd.Root().GenZshCompletion(os.Stdout)
				case "fish":
					return cmd.Root().GenFishCompletion(os.Stdout, true)
				default:
					return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", shell)
				}
			}
			return cmd.Help()
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("knot %s\n", version))
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().String("generate-completion", "", "Generate shell completion (bash, zsh, fish)")
	root.Flags().MarkHidden("generate-completion")
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&jsonFlag, "json", false, "output in JSON format")
	root.AddCommand(newSettingsCmd())
	root.AddCommand(newDeptCmd())
	root.AddCommand(newMailCmd())
	root.AddCommand(newFolderCmd())
	root.AddCommand(newArchiveCmd())
	root.AddCommand(newHistoryCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newStatusCmd())
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		if gateway.IsTransport(err) {
			fmt.Fprintln(os.Stderr, backendHint)
		}
		os.Exit(1)
	}
}

// openDB creates the data directory and opens the history database.
func openDB() (*sqlite.DB, error) {
	dataDir := config.DataDir()
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "knot.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// loadConfig loads the application configuration from the config file
// and applies its log level.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = filepath.Join(config.ConfigDir(), "config.toml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logging.SetLevel(cfg.Log.Level)
	return cfg, nil
}

// env bundles the collaborators client commands share.
type env struct {
	cfg      *config.Config
	store    *settings.Store
	registry *settings.Registry
	vault    *credential.Vault
	gateway  *gateway.Client
	archive  *archive.Orchestrator
	workflow *app.Workflow
}

func newEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	timeout, err := time.ParseDuration(cfg.Backend.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 30 * time.Second
	}

	st := settings.NewStore(cfg.SettingsPath())
	reg := settings.NewRegistry(st)
	gw := gateway.NewClient(cfg.Backend.URL, timeout)
	orch := archive.NewOrchestrator(gw)
	logging.Logger(logging.CLI).WithField("backend", cfg.Backend.URL).Debug("using backend")

	return &env{
		cfg:      cfg,
		store:    st,
		registry: reg,
		vault:    credential.NewVault(),
		gateway:  gw,
		archive:  orch,
		workflow: app.NewWorkflow(gw, st, reg, orch),
	}, nil
}
