// Package rpc implements the wire protocol spoken between index partitions:
// newline-delimited JSON over persistent TCP connections, with named-method
// dispatch. It carries the distribution layer's search, count, and facet
// calls without pulling in a full RPC framework.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/logger"
)

// HandlerFunc processes one request and returns a response value or error.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Request is the wire format of one call. Method names follow the
// "Service.Method" convention.
type Request struct {
	Method string          `json:"method"`
	ID     string          `json:"id"`
	Params json.RawMessage `json:"params"`
}

// Response is the wire format of one reply.
type Response struct {
	ID    string `json:"id"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Server accepts connections and dispatches requests to registered handlers.
// Each connection is served by one goroutine; requests on a connection are
// handled in order.
type Server struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	listener net.Listener
	logger   *slog.Logger
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewServer returns a server with no registered methods.
func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handlers: make(map[string]HandlerFunc),
		logger:   logger.WithComponent("rpc.server"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register adds a handler under the given method name.
func (s *Server) Register(method string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	s.logger.Debug("method registered", "method", method)
}

// Start listens on addr and begins accepting connections in the background.
// Use addr ":0" with Addr to bind an ephemeral port.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln
	s.logger.Info("rpc server listening", "addr", ln.Addr())
	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Error("accept failed", "error", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// Close the connection when the server stops so the decoder unblocks.
	stop := context.AfterFunc(s.ctx, func() { conn.Close() })
	defer stop()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)
	for {
		var req Request
		if err := decoder.Decode(&req); err != nil {
			return
		}

		s.mu.RLock()
		handler, ok := s.handlers[req.Method]
		s.mu.RUnlock()

		resp := Response{ID: req.ID}
		if !ok {
			resp.Error = fmt.Sprintf("unknown method: %s", req.Method)
		} else if data, err := handler(s.ctx, req.Params); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Data = data
		}
		if err := encoder.Encode(resp); err != nil {
			s.logger.Error("write failed", "method", req.Method, "error", err)
			return
		}
	}
}

// Stop closes the listener, cancels in-flight handler contexts, and waits
// for connection goroutines to drain.
func (s *Server) Stop() {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	s.logger.Info("rpc server stopped")
}
