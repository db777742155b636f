package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/floq/internal/cmd/client"
	serverrun "github.com/rzbill/floq/internal/cmd/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "floq",
		Short:         "floq message queue",
		Long:          "floq is a single-binary queue with visibility timeouts and at-least-once delivery.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start floq server (gRPC and HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := cmd.Flags()
			opts := serverrun.Options{}
			opts.ConfigPath, _ = f.GetString("config")
			opts.DataDir, _ = f.GetString("data-dir")
			opts.GRPCAddr, _ = f.GetString("grpc-addr")
			opts.HTTPAddr, _ = f.GetString("http-addr")
			opts.Fsync, _ = f.GetString("fsync")
			opts.LogLevel, _ = f.GetString("log-level")
			opts.LogFormat, _ = f.GetString("log-format")
			if err := serverrun.Run(cmd.Context(), opts); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	sf := serverStartCmd.Flags()
	sf.String("config", os.Getenv("FLOQ_CONFIG"), "Config file (JSON or YAML)")
	sf.String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	sf.String("grpc-addr", "", "gRPC listen address (default :7070)")
	sf.String("http-addr", "", "HTTP listen address (default :7080)")
	sf.String("fsync", "", "Fsync mode: always|interval|never")
	sf.String("log-level", "", "Log level: debug|info|warn|error")
	sf.String("log-format", "", "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	clientcmd.AddClientCommands(rootCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}
