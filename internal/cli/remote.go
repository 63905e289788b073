package cli

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/bufbuild/connect-go"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"

	"github.com/kamal-haider/ai-consensus-cli/internal/rpc"
	"github.com/kamal-haider/ai-consensus-cli/internal/rpc/connectjson"
	"github.com/kamal-haider/ai-consensus-cli/internal/rpc/consensusrpc"
)

// NewRemoteCmd sends a prompt to a running daemon and streams events
// back.
func NewRemoteCmd(opts *Options) *cobra.Command {
	var (
		maxRounds  int
		strictJSON bool
		noSummary  bool
		verbose    bool
		shareMode  string
	)

	cmd := &cobra.Command{
		Use:   "remote \"<prompt>\"",
		Short: "Run consensus on the daemon and stream the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[0]
			if strings.TrimSpace(prompt) == "" {
				return fmt.Errorf("prompt cannot be empty")
			}

			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			reqBody := rpc.RunConsensusRequest{
				Prompt:      prompt,
				MaxRounds:   maxRounds,
				StrictJSON:  strictJSON,
				OmitSummary: noSummary,
				ShareMode:   shareMode,
			}

			baseURL := daemonURL(cfg.Server.Addr)
			switch strings.ToLower(strings.TrimSpace(cfg.Server.Transport)) {
			case "ndjson":
				return runNDJSON(ctx, cmd, baseURL+"/consensus/run", reqBody, verbose)
			default:
				return runConnect(ctx, cmd, baseURL+consensusrpc.ConnectRunProcedure, reqBody, verbose)
			}
		},
	}

	cmd.Flags().IntVar(&maxRounds, "max-rounds", 0, "Override the daemon's round limit for this run")
	cmd.Flags().BoolVar(&strictJSON, "strict-json", false, "Fail on malformed model output instead of attempting recovery")
	cmd.Flags().BoolVar(&noSummary, "no-consensus-summary", false, "Omit the disagreement summary from non-consensus output")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print trace events to stderr as JSON lines")
	cmd.Flags().StringVar(&shareMode, "share-mode", "", "What critics see: digest or raw")
	return cmd
}

func daemonURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func runNDJSON(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.RunConsensusRequest, verbose bool) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var evt rpc.RunEvent
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := renderEvent(cmd, evt, verbose); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func runConnect(ctx context.Context, cmd *cobra.Command, url string, reqBody rpc.RunConsensusRequest, verbose bool) error {
	client := connect.NewClient[rpc.RunStreamRequest, rpc.RunEvent](buildH2CClient(), url, connect.WithCodec(connectjson.Codec{}))
	stream := client.CallBidiStream(ctx)

	if err := stream.Send(&rpc.RunStreamRequest{Run: &reqBody}); err != nil {
		return err
	}

	// propagate cancellation to the daemon.
	go func() {
		<-ctx.Done()
		_ = stream.Send(&rpc.RunStreamRequest{Cancel: true})
		_ = stream.CloseRequest()
	}()

	for {
		evt, err := stream.Receive()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := renderEvent(cmd, *evt, verbose); err != nil {
			return err
		}
	}
	_ = stream.CloseRequest()
	return stream.CloseResponse()
}

func renderEvent(cmd *cobra.Command, evt rpc.RunEvent, verbose bool) error {
	switch evt.Type {
	case "result":
		fmt.Fprintln(cmd.OutOrStdout(), evt.Output)
		fmt.Fprintf(cmd.ErrOrStderr(), "consensus=%t stop_reason=%s rounds=%d\n",
			evt.ConsensusReached, evt.StopReason, evt.RoundsCompleted)
	case "error":
		code := evt.ExitCode
		if code == 0 {
			code = 4
		}
		return &exitError{code: code, msg: "daemon error: " + evt.Error}
	default:
		if verbose {
			enc := json.NewEncoder(cmd.ErrOrStderr())
			_ = enc.Encode(evt)
		}
	}
	return nil
}

func buildH2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
