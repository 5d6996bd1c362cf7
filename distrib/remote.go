package distrib

import (
	"context"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/distrib/rpc"
	scerrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchcore/query"
	"github.com/Adithya-Monish-Kumar-K/searchcore/search"
)

// Remote is a Backend served by another process. The connection is dialed
// lazily and redialed after transport failures.
type Remote struct {
	addr        string
	dialTimeout time.Duration

	mu     sync.Mutex
	client *rpc.Client
}

// NewRemote points a backend at a partition server address.
func NewRemote(addr string, dialTimeout time.Duration) *Remote {
	if dialTimeout <= 0 {
		dialTimeout = time.Second
	}
	return &Remote{addr: addr, dialTimeout: dialTimeout}
}

// Addr returns the partition server address.
func (r *Remote) Addr() string { return r.addr }

func (r *Remote) call(ctx context.Context, method string, params, result any) error {
	r.mu.Lock()
	client := r.client
	if client == nil {
		var err error
		client, err = rpc.Dial(r.addr, r.dialTimeout)
		if err != nil {
			r.mu.Unlock()
			return scerrors.Newf("dial", r.addr, scerrors.ErrShardUnavailable, "%v", err)
		}
		r.client = client
	}
	r.mu.Unlock()

	if err := r.call1(ctx, client, method, params, result); err != nil {
		// Drop the broken connection so the next call redials.
		r.mu.Lock()
		if r.client == client {
			client.Close()
			r.client = nil
		}
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *Remote) call1(ctx context.Context, client *rpc.Client, method string, params, result any) error {
	if err := client.Call(ctx, method, params, result); err != nil {
		return scerrors.Newf(method, r.addr, scerrors.ErrShardUnavailable, "%v", err)
	}
	return nil
}

// Search asks the partition for its top hits.
func (r *Remote) Search(ctx context.Context, q query.Node, limit int) (*Result, error) {
	spec, err := EncodeQuery(q)
	if err != nil {
		return nil, err
	}
	var resp SearchResponse
	if err := r.call(ctx, MethodSearch, &SearchRequest{Query: spec, Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &Result{Total: resp.Total, Hits: resp.Hits}, nil
}

// Count asks the partition for its match count.
func (r *Remote) Count(ctx context.Context, q query.Node) (int, error) {
	spec, err := EncodeQuery(q)
	if err != nil {
		return 0, err
	}
	var resp CountResponse
	if err := r.call(ctx, MethodCount, &CountRequest{Query: spec}, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Facets asks the partition for its facet counts.
func (r *Remote) Facets(ctx context.Context, q query.Node, fields ...string) (map[string][]search.FacetCount, error) {
	spec, err := EncodeQuery(q)
	if err != nil {
		return nil, err
	}
	var resp FacetsResponse
	if err := r.call(ctx, MethodFacets, &FacetsRequest{Query: spec, Fields: fields}, &resp); err != nil {
		return nil, err
	}
	return resp.Facets, nil
}

// Close drops the connection if one is open.
func (r *Remote) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		err := r.client.Close()
		r.client = nil
		return err
	}
	return nil
}

var _ Backend = (*Remote)(nil)
