package consensusrpc

import (
	"context"
	"errors"
	"net/http"

	"github.com/bufbuild/connect-go"

	"github.com/kamal-haider/ai-consensus-cli/internal/observability"
	"github.com/kamal-haider/ai-consensus-cli/internal/rpc"
	"github.com/kamal-haider/ai-consensus-cli/internal/rpc/connectjson"
)

const ConnectRunProcedure = "/connect.consensus.v1.ConsensusService/Run"

// NewConnectHandler builds a Connect bidi stream handler for Run.
func NewConnectHandler(runner Runner, metrics *observability.Metrics) (string, http.Handler) {
	h := &connectRunHandler{runner: runner, metrics: metrics}
	return ConnectRunProcedure, connect.NewBidiStreamHandler(ConnectRunProcedure, h.handle, connect.WithCodec(connectjson.Codec{}))
}

type connectRunHandler struct {
	runner  Runner
	metrics *observability.Metrics
}

func (h *connectRunHandler) handle(ctx context.Context, stream *connect.BidiStream[rpc.RunStreamRequest, rpc.RunEvent]) error {
	h.metrics.IncActiveStreams("connect")
	defer h.metrics.DecActiveStreams("connect")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	first, err := stream.Receive()
	if err != nil {
		h.metrics.RecordTransportError("connect", "receive_first")
		return err
	}
	if first == nil || first.Run == nil {
		h.metrics.RecordTransportError("connect", "missing_run")
		return connect.NewError(connect.CodeInvalidArgument, errors.New("first message must include run payload"))
	}
	if first.Run.Prompt == "" {
		h.metrics.RecordTransportError("connect", "empty_prompt")
		return connect.NewError(connect.CodeInvalidArgument, errors.New("prompt is required"))
	}

	// Listen for cancellation messages from the client.
	go func() {
		for {
			msg, recvErr := stream.Receive()
			if recvErr != nil {
				if !errors.Is(recvErr, context.Canceled) {
					h.metrics.RecordTransportError("connect", "receive_stream")
				}
				cancel()
				return
			}
			if msg != nil && msg.Cancel {
				cancel()
				return
			}
		}
	}()

	httpReq := (&http.Request{}).WithContext(ctx)

	events, runErr := h.runner.Run(httpReq, *first.Run)
	if runErr != nil {
		h.metrics.RecordTransportError("connect", "runner_error")
		return connect.NewError(connect.CodeInternal, runErr)
	}

	for ev := range events {
		ev := ev
		if err := stream.Send(&ev); err != nil {
			h.metrics.RecordTransportError("connect", "send")
			return err
		}
	}
	return nil
}
