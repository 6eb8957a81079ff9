package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fractalmind-ai/codeteam/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func main() {
	os.Exit(runWithContext(context.Background(), os.Args[1:], os.Stdout))
}

func runWithContext(ctx context.Context, args []string, out io.Writer) int {
	var (
		url     string
		agent   string
		timeout time.Duration
	)
	rootCmd := &cobra.Command{
		Use:           "codeteam-client [tool] [json-arguments]",
		Short:         "Send one request to a codeteam gateway and print the reply",
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := buildRequest(agent, args)
			resp, err := roundTrip(cmd.Context(), url, req, timeout)
			if err != nil {
				return err
			}
			payload, err := json.Marshal(resp)
			if err != nil {
				return fmt.Errorf("marshal failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(payload))
			return nil
		},
	}
	rootCmd.Flags().StringVar(&url, "url", "ws://127.0.0.1:18790/ws", "websocket server URL")
	rootCmd.Flags().StringVar(&agent, "agent", "Admin", "agent the call is made for")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "how long to wait for the reply")
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return 1
	}
	return 0
}

// buildRequest sends an echo with no tool, "list" for the tool list, or a call.
func buildRequest(agent string, args []string) protocol.Message {
	switch {
	case len(args) == 0:
		return protocol.Message{
			Kind:   protocol.MessageKindEvent,
			Action: protocol.ActionEcho,
			Data:   map[string]string{"text": "hello"},
		}
	case args[0] == "list":
		return protocol.Message{Kind: protocol.MessageKindTool, Action: protocol.ActionList}
	}
	call := protocol.ToolCall{
		ID:    uuid.NewString(),
		Agent: agent,
		Name:  args[0],
	}
	if len(args) == 2 {
		call.Arguments = json.RawMessage(args[1])
	}
	return protocol.Message{Kind: protocol.MessageKindTool, Action: protocol.ActionCall, Data: call}
}

func roundTrip(ctx context.Context, url string, req protocol.Message, timeout time.Duration) (*protocol.Message, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(&req); err != nil {
		return nil, fmt.Errorf("write failed: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(timeout))

	var resp protocol.Message
	if err := conn.ReadJSON(&resp); err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	return &resp, nil
}
