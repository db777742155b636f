package client

import (
	"github.com/spf13/cobra"
)

// AddClientCommands registers the client commands and their connection
// flags on root.
func AddClientCommands(root *cobra.Command) {
	pf := root.PersistentFlags()
	pf.String("http", getenvDefault("FLOQ_HTTP", defaultHTTPAddr), "HTTP API base URL")
	pf.String("grpc", getenvDefault("FLOQ_GRPC", defaultGRPCAddr), "gRPC address")
	pf.String("transport", getenvDefault("FLOQ_TRANSPORT", "http"), "Client transport: http|grpc")

	root.AddCommand(
		newSendCommand(),
		newReceiveCommand(),
		newAckCommand(),
		newExtendCommand(),
		newReleaseCommand(),
		newCountsCommand(),
		newQueuesCommand(),
		newPurgeCommand(),
		newDeadLetterCommand(),
	)
}

// NewRoot constructs a standalone root command holding only the client
// commands.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "floq",
		Short:         "floq client commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	AddClientCommands(root)
	return root
}
