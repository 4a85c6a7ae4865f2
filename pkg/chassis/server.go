// Package chassis serves the audit API on one port over two transports.
//
//   - TCP: HTTP/1.1 and HTTP/2 over TLS
//   - UDP: QUIC, demultiplexed by ALPN into HTTP/3 ("h3") and MCP
//     ("auditlens-mcp-v1")
//
// HTTP responses advertise HTTP/3 through Alt-Svc. Without cert files a
// self-signed development certificate is generated.
package chassis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/hazyhaar/auditlens/pkg/mcpquic"
	"github.com/mark3labs/mcp-go/server"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration for the chassis server.
type Config struct {
	Addr      string      // TCP and UDP listen address, e.g. ":8443"
	TLS       *tls.Config // nil: load CertFile/KeyFile or self-sign
	CertFile  string
	KeyFile   string
	Handler   http.Handler
	MCPServer *server.MCPServer // nil disables MCP over QUIC
	Logger    *slog.Logger
}

// Server is the dual-transport listener pair.
type Server struct {
	addr       string
	logger     *slog.Logger
	tlsCfg     *tls.Config
	handler    http.Handler
	mcpHandler *mcpquic.Handler

	mu        sync.Mutex
	tcpServer *http.Server
	h3Server  *http3.Server
	quicLn    *quic.Listener
}

// New prepares a server. Nothing listens until Start.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Handler == nil {
		return nil, errors.New("chassis: nil handler")
	}

	tlsCfg := cfg.TLS
	if tlsCfg == nil {
		var err error
		if cfg.CertFile != "" && cfg.KeyFile != "" {
			if tlsCfg, err = ProductionTLSConfig(cfg.CertFile, cfg.KeyFile); err != nil {
				return nil, fmt.Errorf("load TLS cert: %w", err)
			}
			cfg.Logger.Info("chassis: TLS certificate loaded", "cert", cfg.CertFile)
		} else {
			host, _, _ := net.SplitHostPort(cfg.Addr)
			if tlsCfg, err = DevelopmentTLSConfig(host); err != nil {
				return nil, fmt.Errorf("generate dev TLS: %w", err)
			}
			cfg.Logger.Warn("chassis: using self-signed development certificate")
		}
	}

	s := &Server{
		addr:    cfg.Addr,
		logger:  cfg.Logger,
		tlsCfg:  tlsCfg,
		handler: securityHeaders(altSvc(cfg.Addr, cfg.Handler)),
	}
	if cfg.MCPServer != nil {
		s.mcpHandler = mcpquic.NewHandler(cfg.MCPServer, cfg.Logger)
	}
	return s, nil
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// altSvc advertises HTTP/3 on the same port.
func altSvc(addr string, next http.Handler) http.Handler {
	_, port, _ := net.SplitHostPort(addr)
	if port == "" {
		port = "443"
	}
	value := fmt.Sprintf(`h3=":%s"; ma=86400`, port)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Alt-Svc", value)
		next.ServeHTTP(w, r)
	})
}

// Start listens on TCP and UDP and blocks until ctx ends or a listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	tcpTLS := s.tlsCfg.Clone()
	tcpTLS.NextProtos = []string{"h2", "http/1.1"}
	tcpLn, err := tls.Listen("tcp", s.addr, tcpTLS)
	if err != nil {
		return fmt.Errorf("TCP listen: %w", err)
	}
	quicLn, err := quic.ListenAddr(s.addr, s.tlsCfg, mcpquic.QUICConfig())
	if err != nil {
		tcpLn.Close()
		return fmt.Errorf("QUIC listen: %w", err)
	}

	s.mu.Lock()
	s.tcpServer = &http.Server{Handler: s.handler, TLSConfig: tcpTLS}
	s.h3Server = &http3.Server{Handler: s.handler}
	s.quicLn = quicLn
	s.mu.Unlock()

	s.logger.Info("chassis started", "addr", s.addr, "mcp", s.mcpHandler != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.tcpServer.Serve(tcpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("TCP: %w", err)
		}
		return nil
	})
	g.Go(func() error { return s.acceptQUIC(gctx, quicLn) })
	g.Go(func() error {
		<-gctx.Done()
		return errors.Join(s.tcpServer.Close(), s.closeQUIC())
	})

	err = g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// acceptQUIC dispatches each connection by its negotiated protocol.
func (s *Server) acceptQUIC(ctx context.Context, ln *quic.Listener) error {
	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, quic.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("QUIC accept: %w", err)
		}

		switch alpn := conn.ConnectionState().TLS.NegotiatedProtocol; alpn {
		case http3.NextProtoH3:
			go func() {
				if err := s.h3Server.ServeQUICConn(conn); err != nil {
					s.logger.Debug("chassis: HTTP/3 conn done", "remote", conn.RemoteAddr(), "error", err)
				}
			}()
		case mcpquic.ALPNProtocolMCP:
			if s.mcpHandler == nil {
				conn.CloseWithError(mcpquic.ConnErrorUnsupportedALPN, "MCP not enabled")
				continue
			}
			go s.mcpHandler.ServeConn(ctx, conn)
		default:
			s.logger.Warn("chassis: unknown ALPN", "alpn", alpn, "remote", conn.RemoteAddr())
			conn.CloseWithError(mcpquic.ConnErrorUnsupportedALPN, "unsupported ALPN: "+alpn)
		}
	}
}

// Stop shuts both listeners down. It is safe after Start has returned.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	tcp, h3 := s.tcpServer, s.h3Server
	s.mu.Unlock()

	var errs []error
	if tcp != nil {
		errs = append(errs, tcp.Shutdown(ctx))
	}
	errs = append(errs, s.closeQUIC())
	if h3 != nil {
		errs = append(errs, h3.Close())
	}
	s.logger.Info("chassis stopped")
	return errors.Join(errs...)
}

// closeQUIC closes the QUIC listener once.
func (s *Server) closeQUIC() error {
	s.mu.Lock()
	ln := s.quicLn
	s.quicLn = nil
	s.mu.Unlock()
	if ln == nil {
		return nil
	}
	return ln.Close()
}
