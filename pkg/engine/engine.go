package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/wayfarer-nav/wayfarer/pkg/concurrent"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type RouterConfig struct {
	// Endpoint is the base url refresh requests are issued against.
	Endpoint string
	Timeout  time.Duration
	Workers  int
	Queue    int
}

// Router executes directions, map-matching and refresh requests against an
// OSRM-compatible endpoint and/or the tile-store cache, depending on the
// configured source. Requests run on a goroutine pool; callbacks fire from
// worker goroutines.
type Router struct {
	source   RouterSource
	cache    *Cache
	history  HistoryRecorder
	client   *http.Client
	endpoint string
	log      *zap.Logger

	seq  atomic.Uint64
	pool *concurrent.WorkerPool

	mu       sync.Mutex
	inflight map[RequestID]context.CancelFunc
}

// BuildRouter constructs the engine router. Invoked once per router
// instance, after BuildCache.
func BuildRouter(source RouterSource, cache *Cache, history HistoryRecorder, cfg RouterConfig, log *zap.Logger) (*Router, error) {
	if cache == nil {
		return nil, errors.New("router needs a cache, call BuildCache first")
	}
	if history == nil {
		history = NewNoopHistoryRecorder()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.Queue <= 0 {
		cfg.Queue = 32
	}

	pool := concurrent.NewWorkerPool(cfg.Workers, cfg.Queue)
	pool.Spawn(2)

	return &Router{
		source:   source,
		cache:    cache,
		history:  history,
		client:   &http.Client{Timeout: cfg.Timeout},
		endpoint: cfg.Endpoint,
		log:      log,
		pool:     pool,
		inflight: make(map[RequestID]context.CancelFunc),
	}, nil
}

func (r *Router) IssueDirectionsRequest(uri string, cb DirectionsCallback) RequestID {
	id := RequestID(r.seq.Inc())
	ctx := r.track(id)

	r.history.RecordEvent("directions_issued", id, uri)
	r.pool.Schedule(func() {
		defer r.release(id)
		r.serveDirections(ctx, id, uri, cb)
	})
	return id
}

func (r *Router) IssueRefreshRequest(responseID string, routeIndex, legIndex int, profile RoutingProfile, routeJSON []byte, cb DirectionsCallback) RequestID {
	uri := fmt.Sprintf("%s/route-refresh/v1/%s/%s/%d?from_leg=%d",
		r.endpoint, profile, url.PathEscape(responseID), routeIndex, legIndex)

	id := RequestID(r.seq.Inc())
	ctx := r.track(id)

	r.history.RecordEvent("refresh_issued", id, uri)
	r.pool.Schedule(func() {
		defer r.release(id)
		if ctx.Err() != nil {
			r.history.RecordEvent("cancelled", id, uri)
			return
		}
		// refresh re-requests live conditions, never served from cache
		payload, derr := r.fetch(ctx, http.MethodPost, uri, routeJSON)
		r.finish(ctx, id, uri, payload, derr, cb)
	})
	return id
}

func (r *Router) CancelRequest(id RequestID) {
	r.mu.Lock()
	cancel, ok := r.inflight[id]
	delete(r.inflight, id)
	r.mu.Unlock()

	if ok {
		cancel()
	}
}

// Close stops the worker pool. Pending scheduled requests still drain.
func (r *Router) Close() {
	r.pool.Close()
}

func (r *Router) track(id RequestID) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.inflight[id] = cancel
	r.mu.Unlock()
	return ctx
}

func (r *Router) release(id RequestID) {
	r.mu.Lock()
	delete(r.inflight, id)
	r.mu.Unlock()
}

func (r *Router) serveDirections(ctx context.Context, id RequestID, uri string, cb DirectionsCallback) {
	if ctx.Err() != nil {
		r.history.RecordEvent("cancelled", id, uri)
		return
	}

	if r.source == SourceOffline || r.source == SourceHybrid {
		if payload, ok := r.cache.Get(uri); ok {
			r.history.RecordEvent("completed_from_cache", id, uri)
			cb(payload, nil)
			return
		}
		if r.source == SourceOffline {
			r.history.RecordEvent("failed", id, uri)
			cb(nil, &DirectionsError{
				Code:    http.StatusNotFound,
				Message: "route not available in offline tile store",
			})
			return
		}
	}

	payload, derr := r.fetch(ctx, http.MethodGet, uri, nil)
	if derr == nil {
		r.cache.Put(uri, payload)
	}
	r.finish(ctx, id, uri, payload, derr, cb)
}

func (r *Router) finish(ctx context.Context, id RequestID, uri string, payload []byte, derr *DirectionsError, cb DirectionsCallback) {
	if ctx.Err() != nil {
		// cancelled mid-flight, the caller no longer wants the callback
		r.history.RecordEvent("cancelled", id, uri)
		return
	}
	if derr != nil {
		r.history.RecordEvent("failed", id, uri)
		cb(nil, derr)
		return
	}
	r.history.RecordEvent("completed", id, uri)
	cb(payload, nil)
}

func (r *Router) fetch(ctx context.Context, method, uri string, body []byte) ([]byte, *DirectionsError) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, uri, reader)
	if err != nil {
		return nil, &DirectionsError{Message: err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &DirectionsError{Message: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DirectionsError{Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &DirectionsError{
			Code:    resp.StatusCode,
			Message: http.StatusText(resp.StatusCode),
		}
	}
	return payload, nil
}
