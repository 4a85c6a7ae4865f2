package mcpquic

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hazyhaar/auditlens/pkg/kit"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/quic-go/quic-go"
)

// Handler serves MCP sessions on QUIC connections accepted elsewhere. The
// chassis hands it every connection that negotiated ALPNProtocolMCP.
type Handler struct {
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewHandler creates an MCP connection handler.
func NewHandler(mcpSrv *server.MCPServer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{mcpServer: mcpSrv, logger: logger}
}

// ServeConn runs one MCP session on the first stream of conn.
func (h *Handler) ServeConn(ctx context.Context, conn *quic.Conn) {
	remote := conn.RemoteAddr().String()

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		h.logger.Warn("mcp: accept stream", "remote", remote, "error", err)
		conn.CloseWithError(ConnErrorProtocolViolation, "stream accept failed")
		return
	}

	if err := ValidateMagicBytes(stream); err != nil {
		h.logger.Warn("mcp: bad preamble", "remote", remote, "error", err)
		stream.CancelWrite(StreamErrorProtocolConfusion)
		stream.CancelRead(StreamErrorProtocolConfusion)
		conn.CloseWithError(ConnErrorProtocolViolation, "invalid magic bytes")
		return
	}

	sid := "quic_" + uuid.NewString()[:8]
	h.logger.Info("mcp: session started", "session", sid, "remote", remote)
	err = h.Serve(ctx, sid, stream)
	switch {
	case errors.Is(err, ErrMessageTooLarge):
		stream.CancelRead(StreamErrorMessageTooLarge)
		conn.CloseWithError(ConnErrorProtocolViolation, "message too large")
	case err != nil:
		h.logger.Warn("mcp: session failed", "session", sid, "error", err)
		stream.Close()
	default:
		stream.Close()
	}
	h.logger.Info("mcp: session ended", "session", sid, "remote", remote)
}

// Serve exchanges newline-delimited JSON-RPC on rw until the peer closes it
// or ctx ends. Responses and server notifications share one writer.
func (h *Handler) Serve(ctx context.Context, sid string, rw io.ReadWriter) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess := newSession(sid, rw)
	if err := h.mcpServer.RegisterSession(ctx, sess); err != nil {
		return err
	}
	defer h.mcpServer.UnregisterSession(ctx, sid)

	ctx = kit.WithTransport(ctx, "mcp_quic")
	ctx = h.mcpServer.WithContext(ctx, sess)
	go sess.forwardNotifications(ctx)

	reader := bufio.NewReaderSize(rw, 64*1024)
	for {
		line, err := readLine(reader, MaxMessageSize)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if len(line) == 0 {
			continue
		}

		resp := h.mcpServer.HandleMessage(kit.WithRequestID(ctx, uuid.NewString()), json.RawMessage(line))
		if resp == nil {
			continue
		}
		if err := sess.send(resp); err != nil {
			return err
		}
	}
}

// session implements server.ClientSession for one stream.
type session struct {
	id            string
	notifications chan mcp.JSONRPCNotification
	initialized   atomic.Bool

	mu sync.Mutex
	w  io.Writer
}

func newSession(id string, w io.Writer) *session {
	return &session{
		id:            id,
		notifications: make(chan mcp.JSONRPCNotification, 100),
		w:             w,
	}
}

func (s *session) SessionID() string                                   { return s.id }
func (s *session) NotificationChannel() chan<- mcp.JSONRPCNotification { return s.notifications }
func (s *session) Initialize()                                         { s.initialized.Store(true) }
func (s *session) Initialized() bool                                   { return s.initialized.Load() }

func (s *session) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(data)
	return err
}

func (s *session) forwardNotifications(ctx context.Context) {
	for {
		select {
		case n := <-s.notifications:
			_ = s.send(n)
		case <-ctx.Done():
			return
		}
	}
}
