package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lu-zhengda/knot/internal/logging"
	"github.com/lu-zhengda/knot/internal/mailbox"
	"github.com/lu-zhengda/knot/internal/server"
)

func newServeCmd() *cobra.Command {
	var portFlag int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the backend",
		Long: "Run the HTTP backend that talks to the mail server and touches the filesystem.\n" +
			"A .env file in the working directory is loaded first; KNOT_ADDR, KNOT_PORT,\n" +
			"KNOT_CORS_ORIGINS and KNOT_LOG_LEVEL override the config file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ApplyEnv(); err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				if portFlag <= 0 || portFlag > 65535 {
					return fmt.Errorf("invalid --port %d", portFlag)
				}
				cfg.Server.Port = portFlag
			}
			logging.SetLevel(cfg.Log.Level)

			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			session := mailbox.NewSession()
			defer session.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.Options{
				Addr:        cfg.ListenAddr(),
				CORSOrigins: cfg.Origins(),
			}, session, db)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().IntVar(&portFlag, "port", 0, "listen port (overrides config and KNOT_PORT)")
	return cmd
}
