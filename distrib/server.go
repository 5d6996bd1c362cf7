package distrib

import (
	"context"
	"encoding/json"

	"github.com/Adithya-Monish-Kumar-K/searchcore/distrib/rpc"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/health"
)

// Server exposes one partition's Backend over the rpc protocol.
type Server struct {
	rpc     *rpc.Server
	backend Backend
	health  *health.Checker
}

// NewServer wires the backend's methods onto a fresh rpc server. The health
// checker is optional.
func NewServer(backend Backend, checker *health.Checker) *Server {
	s := &Server{rpc: rpc.NewServer(), backend: backend, health: checker}
	s.rpc.Register(MethodSearch, s.handleSearch)
	s.rpc.Register(MethodCount, s.handleCount)
	s.rpc.Register(MethodFacets, s.handleFacets)
	if checker != nil {
		s.rpc.Register(MethodHealth, s.handleHealth)
	}
	return s
}

// Start begins serving on addr.
func (s *Server) Start(addr string) error { return s.rpc.Start(addr) }

// Addr returns the bound listen address.
func (s *Server) Addr() string { return s.rpc.Addr() }

// Stop shuts the server down and drains connections.
func (s *Server) Stop() { s.rpc.Stop() }

func (s *Server) handleSearch(ctx context.Context, params json.RawMessage) (any, error) {
	var req SearchRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, err
	}
	q, err := DecodeQuery(req.Query)
	if err != nil {
		return nil, err
	}
	res, err := s.backend.Search(ctx, q, req.Limit)
	if err != nil {
		return nil, err
	}
	return &SearchResponse{Total: res.Total, Hits: res.Hits}, nil
}

func (s *Server) handleCount(ctx context.Context, params json.RawMessage) (any, error) {
	var req CountRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, err
	}
	q, err := DecodeQuery(req.Query)
	if err != nil {
		return nil, err
	}
	n, err := s.backend.Count(ctx, q)
	if err != nil {
		return nil, err
	}
	return &CountResponse{Count: n}, nil
}

func (s *Server) handleFacets(ctx context.Context, params json.RawMessage) (any, error) {
	var req FacetsRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, err
	}
	q, err := DecodeQuery(req.Query)
	if err != nil {
		return nil, err
	}
	facets, err := s.backend.Facets(ctx, q, req.Fields...)
	if err != nil {
		return nil, err
	}
	return &FacetsResponse{Facets: facets}, nil
}

func (s *Server) handleHealth(ctx context.Context, _ json.RawMessage) (any, error) {
	report := s.health.Run(ctx)
	return &report, nil
}
