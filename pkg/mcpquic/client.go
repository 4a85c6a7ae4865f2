package mcpquic

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/quic-go/quic-go"
)

// ClientName identifies this client in the MCP handshake.
const ClientName = "auditlens-quic-client"

// Client is an MCP client over one QUIC stream.
type Client struct {
	addr      string
	version   string
	tlsCfg    *tls.Config
	conn      *quic.Conn
	stream    *quic.Stream
	mcpClient *client.Client
}

// NewClient prepares a client for addr. A nil tlsCfg accepts self-signed
// certificates.
func NewClient(addr, version string, tlsCfg *tls.Config) *Client {
	if tlsCfg == nil {
		tlsCfg = ClientTLSConfig(true)
	}
	return &Client{addr: addr, version: version, tlsCfg: tlsCfg}
}

// Connect dials, sends the preamble and runs the MCP handshake.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := quic.DialAddr(ctx, c.addr, c.tlsCfg, QUICConfig())
	if err != nil {
		return fmt.Errorf("quic dial %s: %w", c.addr, err)
	}

	if alpn := conn.ConnectionState().TLS.NegotiatedProtocol; alpn != ALPNProtocolMCP {
		conn.CloseWithError(ConnErrorUnsupportedALPN, "bad ALPN")
		return fmt.Errorf("%w: got %q", ErrUnsupportedALPN, alpn)
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(ConnErrorProtocolViolation, "stream open failed")
		return fmt.Errorf("open stream: %w", err)
	}
	c.conn, c.stream = conn, stream

	if err := SendMagicBytes(stream); err != nil {
		c.closeTransport()
		return err
	}

	mcpClient := client.NewClient(transport.NewIO(stream, &streamWriter{stream}, nopReadCloser{}))
	if err := mcpClient.Start(ctx); err != nil {
		c.closeTransport()
		return fmt.Errorf("mcp start: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: ClientName, Version: c.version}

	initCtx, cancel := context.WithTimeout(ctx, HandshakeTimeout)
	defer cancel()
	if _, err := mcpClient.Initialize(initCtx, initReq); err != nil {
		c.closeTransport()
		return fmt.Errorf("mcp initialize: %w", err)
	}

	c.mcpClient = mcpClient
	return nil
}

// ListTools returns the tools the server exposes.
func (c *Client) ListTools(ctx context.Context) (*mcp.ListToolsResult, error) {
	if c.mcpClient == nil {
		return nil, ErrNotConnected
	}
	return c.mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
}

// CallTool invokes a tool and returns its raw result.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	if c.mcpClient == nil {
		return nil, ErrNotConnected
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return c.mcpClient.CallTool(ctx, req)
}

// CallText invokes a tool and returns its text payload. A tool-level error
// is returned as a Go error.
func (c *Client) CallText(ctx context.Context, name string, args map[string]any) (string, error) {
	res, err := c.CallTool(ctx, name, args)
	if err != nil {
		return "", err
	}
	return ResultText(res)
}

// CallJSON is CallText decoded into v.
func (c *Client) CallJSON(ctx context.Context, name string, args map[string]any, v any) error {
	text, err := c.CallText(ctx, name, args)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(text), v)
}

// ResultText extracts the text content of a tool result.
func ResultText(res *mcp.CallToolResult) (string, error) {
	var text string
	for _, content := range res.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			text += tc.Text
		}
	}
	if res.IsError {
		return "", errors.New(text)
	}
	return text, nil
}

// Close ends the session and the connection.
func (c *Client) Close() error {
	if c.mcpClient != nil {
		c.mcpClient.Close()
	}
	c.closeTransport()
	return nil
}

func (c *Client) closeTransport() {
	if c.stream != nil {
		c.stream.Close()
	}
	if c.conn != nil {
		c.conn.CloseWithError(ConnErrorNoError, "client closing")
	}
}

type streamWriter struct{ stream *quic.Stream }

func (w *streamWriter) Write(p []byte) (int, error) { return w.stream.Write(p) }
func (w *streamWriter) Close() error                { return w.stream.Close() }

type nopReadCloser struct{}

func (nopReadCloser) Read([]byte) (int, error) { return 0, io.EOF }
func (nopReadCloser) Close() error             { return nil }
