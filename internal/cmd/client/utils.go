package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rzbill/floq/internal/cmd/client/transports"
)

const (
	defaultHTTPAddr = "http://127.0.0.1:7080"
	defaultGRPCAddr = "127.0.0.1:7070"
)

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// transportFor builds the transport selected by the root's persistent flags.
func transportFor(cmd *cobra.Command) (transports.QueuesTransport, error) {
	kind, _ := cmd.Flags().GetString("transport")
	switch kind {
	case "", "http":
		addr, _ := cmd.Flags().GetString("http")
		return transports.NewHTTPTransport(addr, nil), nil
	case "grpc":
		addr, _ := cmd.Flags().GetString("grpc")
		return transports.NewGrpcTransport(func(context.Context) (*grpc.ClientConn, error) {
			return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		}), nil
	default:
		return nil, fmt.Errorf("invalid --transport %q; use http|grpc", kind)
	}
}

// printJSON writes v indented to w.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// decodedBody returns a map holding one of body_json, body_text or body_b64.
func decodedBody(body []byte) map[string]any {
	out := map[string]any{}
	if len(body) > 0 && (body[0] == '{' || body[0] == '[') {
		var v any
		if json.Unmarshal(body, &v) == nil {
			out["body_json"] = v
			return out
		}
	}
	if utf8.Valid(body) {
		out["body_text"] = string(body)
		return out
	}
	out["body_b64"] = body
	return out
}

// readBody takes --data, or stdin when --data is "-".
func readBody(cmd *cobra.Command) ([]byte, error) {
	data, _ := cmd.Flags().GetString("data")
	if data == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return []byte(data), nil
}
