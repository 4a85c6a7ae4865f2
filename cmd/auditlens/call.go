package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hazyhaar/auditlens/pkg/mcpquic"
	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	var (
		addr     string
		insecure bool
	)

	cmd := &cobra.Command{
		Use:   "call [tool] [key=value...]",
		Short: "Call an MCP tool on a running 'serve --tls' instance over QUIC",
		Long:  "Without a tool name, lists the available tools.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := mcpquic.NewClient(addr, version, mcpquic.ClientTLSConfig(insecure))
			if err := client.Connect(ctx); err != nil {
				return err
			}
			defer client.Close()
			w := cmd.OutOrStdout()

			if len(args) == 0 {
				tools, err := client.ListTools(ctx)
				if err != nil {
					return err
				}
				for _, t := range tools.Tools {
					fmt.Fprintf(w, "%-22s %s\n", t.Name, t.Description)
				}
				return nil
			}

			toolArgs, err := parseToolArgs(args[1:])
			if err != nil {
				return err
			}
			text, err := client.CallText(ctx, args[0], toolArgs)
			if err != nil {
				return err
			}
			var pretty bytes.Buffer
			if json.Indent(&pretty, []byte(text), "", "  ") == nil {
				text = pretty.String()
			}
			fmt.Fprintln(w, text)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:8420", "server address")
	cmd.Flags().BoolVar(&insecure, "insecure", true, "accept self-signed certificates")
	return cmd
}

// parseToolArgs turns key=value pairs into tool arguments. true and false
// become booleans.
func parseToolArgs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q: want key=value", p)
		}
		switch v {
		case "true", "false":
			out[k] = v == "true"
		default:
			out[k] = v
		}
	}
	return out, nil
}
