package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/R3E-Network/credible-commitment-machine/platform/os"
	"github.com/R3E-Network/credible-commitment-machine/tee/bridge"
)

// SocketServer serves JSON-RPC 2.0 over Bridge's newline-delimited TCP
// framing: one connection per client, one request per line, dispatched
// serially per connection.
type SocketServer struct {
	bridge  *bridge.Socket
	handler *Handler
	logger  os.Logger
	done    chan struct{}
}

// NewSocketServer builds a SocketServer listening on addr.
func NewSocketServer(addr string, handler *Handler, logger os.Logger) *SocketServer {
	return &SocketServer{
		bridge:  bridge.NewSocket(bridge.SocketConfig{Address: addr}),
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Serve listens on the configured address and accepts connections until
// Close is called or ctx is done. It returns nil on a clean shutdown.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := s.bridge.Listen(ctx); err != nil {
		return err
	}
	s.logger.Info("rpc socket listening", "address", s.bridge.Address())

	for {
		connID, err := s.bridge.Accept(ctx)
		if err != nil {
			select {
			case <-s.done:
				return nil
			case <-ctx.Done():
				return nil
			default:
			}
			var netErr net.Error
			if errors.As(err, &netErr) {
				continue
			}
			return err
		}
		go s.serveConn(ctx, connID)
	}
}

func (s *SocketServer) serveConn(ctx context.Context, connID string) {
	defer s.bridge.CloseConn(connID)
	for {
		line, err := s.bridge.ReadMessage(ctx, connID)
		if err != nil {
			return
		}

		var req Request
		var resp *Response
		if err := json.Unmarshal(line, &req); err != nil {
			resp = &Response{JSONRPC: "2.0", Error: errorf(codeParseError, "invalid JSON-RPC envelope: %v", err)}
		} else {
			callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			resp = s.handler.Dispatch(callCtx, &req)
			cancel()
		}

		payload, err := json.Marshal(resp)
		if err != nil {
			return
		}
		if err := s.bridge.WriteMessage(ctx, connID, payload); err != nil {
			return
		}
	}
}

// Close stops accepting new connections and closes all tracked ones.
func (s *SocketServer) Close() error {
	close(s.done)
	return s.bridge.Close()
}

// Address returns the socket's listening address, resolved to the actual
// bound port once Serve has called Listen.
func (s *SocketServer) Address() string {
	return s.bridge.Address()
}
