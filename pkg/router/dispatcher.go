package router

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/wayfarer-nav/wayfarer/pkg/datastructure"
	"github.com/wayfarer-nav/wayfarer/pkg/engine"
	"github.com/wayfarer-nav/wayfarer/pkg/observability"
	"github.com/wayfarer-nav/wayfarer/pkg/util"
	"go.uber.org/zap"
)

// RouteSession is the session context handed back with directions and
// refresh completions so callers can correlate results.
type RouteSession struct {
	Options     datastructure.RouteOptions
	Credentials datastructure.Credentials
}

// MatchSession is the session context handed back with map-match completions.
type MatchSession struct {
	Options     datastructure.MatchOptions
	Credentials datastructure.Credentials
}

type RouteCompletionHandler func(session RouteSession, response *datastructure.RouteResponse, err error)

type MatchCompletionHandler func(session MatchSession, response *datastructure.MapMatchResponse, err error)

type RefreshCompletionHandler func(session RouteSession, response *datastructure.RouteRefreshResponse, err error)

type Config struct {
	Credentials datastructure.Credentials
	// DeliveryQueueSize bounds the completion delivery queue.
	DeliveryQueueSize int
}

// RequestDispatcher issues directions, map-matching and route-refresh
// requests to the underlying engine and tracks them in the registry until
// the first of completion or cancellation.
//
// Engine callbacks arrive on arbitrary goroutines; decode runs on the
// callback goroutine outside the registry lock, and the caller's completion
// handler always runs on the dispatcher's single delivery goroutine, so
// caller-facing callbacks are single-threaded and ordered per dispatcher.
type RequestDispatcher struct {
	log      *zap.Logger
	engine   engine.RouterInterface
	decoder  *ResponseDecoder
	registry *RequestRegistry
	creds    datastructure.Credentials

	// issueMu serializes request issuance with registration so a fast
	// callback observes the registered entry and the captured id.
	issueMu sync.Mutex

	deliveries chan func()
	done       chan struct{}
	closeOnce  sync.Once
}

func NewRequestDispatcher(cfg Config, eng engine.RouterInterface, log *zap.Logger) *RequestDispatcher {
	if cfg.DeliveryQueueSize <= 0 {
		cfg.DeliveryQueueSize = 16
	}
	d := &RequestDispatcher{
		log:        log,
		engine:     eng,
		decoder:    NewResponseDecoder(log),
		registry:   NewRequestRegistry(),
		creds:      cfg.Credentials,
		deliveries: make(chan func(), cfg.DeliveryQueueSize),
		done:       make(chan struct{}),
	}
	go d.deliverLoop()
	return d
}

// RequestRoute issues a directions request. The returned id is valid for
// Cancel before the completion fires. Exactly one completion is delivered
// unless the request is cancelled first.
func (d *RequestDispatcher) RequestRoute(options datastructure.RouteOptions, completion RouteCompletionHandler) engine.RequestID {
	session := RouteSession{Options: options, Credentials: d.creds}
	uri := options.DirectionsURI(d.creds)
	issuedAt := time.Now()

	d.issueMu.Lock()
	defer d.issueMu.Unlock()

	var id engine.RequestID
	id = d.engine.IssueDirectionsRequest(uri, func(payload []byte, derr *engine.DirectionsError) {
		d.issueMu.Lock()
		reqID := id
		d.issueMu.Unlock()
		d.finalizeRoute(reqID, issuedAt, session, completion, payload, derr)
	})
	d.registry.Register(id, &pendingRequest{id: id, owner: d})

	observability.RequestsInflight.Inc()
	observability.RequestsIssuedTotal.WithLabelValues("route").Inc()
	d.log.Debug("issued directions request", zap.Uint64("request_id", uint64(id)))
	return id
}

// RequestMapMatch issues a map-matching request, same lifecycle as
// RequestRoute with a map-match response shape.
func (d *RequestDispatcher) RequestMapMatch(options datastructure.MatchOptions, completion MatchCompletionHandler) engine.RequestID {
	session := MatchSession{Options: options, Credentials: d.creds}
	uri := options.MatchURI(d.creds)
	issuedAt := time.Now()

	d.issueMu.Lock()
	defer d.issueMu.Unlock()

	var id engine.RequestID
	id = d.engine.IssueDirectionsRequest(uri, func(payload []byte, derr *engine.DirectionsError) {
		d.issueMu.Lock()
		reqID := id
		d.issueMu.Unlock()
		d.finalizeMapMatch(reqID, issuedAt, session, completion, payload, derr)
	})
	d.registry.Register(id, &pendingRequest{id: id, owner: d})

	observability.RequestsInflight.Inc()
	observability.RequestsIssuedTotal.WithLabelValues("map_match").Inc()
	d.log.Debug("issued map-match request", zap.Uint64("request_id", uint64(id)))
	return id
}

// RefreshRoute re-requests live conditions for one route of an earlier
// directions response. Refreshing a response that did not originate from a
// directions request, or that carries no server-assigned identifier, is an
// irrecoverable caller bug: it panics before any engine call is made.
func (d *RequestDispatcher) RefreshRoute(indexed datastructure.IndexedRouteResponse, fromLegIndex int, completion RefreshCompletionHandler) engine.RequestID {
	util.AssertPanic(indexed.Origin == datastructure.OriginDirections,
		"route refresh requires a directions-originated response")
	util.AssertPanic(indexed.Response.ResponseIdentifier != "",
		"route refresh requires a server-assigned response identifier")
	route, ok := indexed.SelectedRoute()
	util.AssertPanic(ok, "route refresh index out of range")

	routeJSON, err := json.Marshal(route)
	util.AssertPanic(err == nil, "selected route failed to serialize")

	profile := NativeProfile(indexed.Response.Options.ProfileIdentifier)
	session := RouteSession{Options: indexed.Response.Options, Credentials: indexed.Response.Credentials}
	dctx := DecodingContext{
		RouteOptions:       &session.Options,
		Credentials:        session.Credentials,
		ResponseIdentifier: indexed.Response.ResponseIdentifier,
		RouteIndex:         indexed.RouteIndex,
		FromLegIndex:       fromLegIndex,
	}
	issuedAt := time.Now()

	d.issueMu.Lock()
	defer d.issueMu.Unlock()

	var id engine.RequestID
	id = d.engine.IssueRefreshRequest(indexed.Response.ResponseIdentifier, indexed.RouteIndex, fromLegIndex,
		profile, routeJSON, func(payload []byte, derr *engine.DirectionsError) {
			d.issueMu.Lock()
			reqID := id
			d.issueMu.Unlock()
			d.finalizeRefresh(reqID, issuedAt, session, dctx, completion, payload, derr)
		})
	d.registry.Register(id, &pendingRequest{id: id, owner: d})

	observability.RequestsInflight.Inc()
	observability.RequestsIssuedTotal.WithLabelValues("refresh").Inc()
	d.log.Debug("issued route refresh request",
		zap.Uint64("request_id", uint64(id)),
		zap.String("response_id", indexed.Response.ResponseIdentifier))
	return id
}

// Cancel asks the engine to abort the request and drops the registry entry.
// Fire and forget: the engine may already have a completion in flight, in
// which case the late callback is detected and discarded. Safe to call after
// completion and safe to call twice.
func (d *RequestDispatcher) Cancel(id engine.RequestID) {
	if !d.registry.Remove(id) {
		return
	}
	observability.RequestsInflight.Dec()
	observability.CancellationsTotal.Inc()
	d.engine.CancelRequest(id)
	d.log.Debug("cancelled request", zap.Uint64("request_id", uint64(id)))
}

// ActiveRequests returns the ids currently pending, for diagnostics.
func (d *RequestDispatcher) ActiveRequests() []engine.RequestID {
	return d.registry.Snapshot()
}

// Close stops the delivery goroutine. Completions arriving afterwards are
// dropped.
func (d *RequestDispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
}

func (d *RequestDispatcher) finalizeRoute(id engine.RequestID, issuedAt time.Time, session RouteSession,
	completion RouteCompletionHandler, payload []byte, derr *engine.DirectionsError) {
	if !d.claim(id) {
		return
	}

	var (
		resp *datastructure.RouteResponse
		err  error
	)
	if derr != nil {
		err = engineFailure(derr)
	} else {
		resp, err = d.decoder.DecodeRouteResponse(payload, DecodingContext{
			RouteOptions: &session.Options,
			Credentials:  session.Credentials,
		})
	}

	d.observeCompletion("route", issuedAt, err)
	d.deliver(func() {
		completion(session, resp, err)
	})
}

func (d *RequestDispatcher) finalizeMapMatch(id engine.RequestID, issuedAt time.Time, session MatchSession,
	completion MatchCompletionHandler, payload []byte, derr *engine.DirectionsError) {
	if !d.claim(id) {
		return
	}

	var (
		resp *datastructure.MapMatchResponse
		err  error
	)
	if derr != nil {
		err = engineFailure(derr)
	} else {
		resp, err = d.decoder.DecodeMapMatchResponse(payload, DecodingContext{
			MatchOptions: &session.Options,
			Credentials:  session.Credentials,
		})
	}

	d.observeCompletion("map_match", issuedAt, err)
	d.deliver(func() {
		completion(session, resp, err)
	})
}

func (d *RequestDispatcher) finalizeRefresh(id engine.RequestID, issuedAt time.Time, session RouteSession,
	dctx DecodingContext, completion RefreshCompletionHandler, payload []byte, derr *engine.DirectionsError) {
	if !d.claim(id) {
		return
	}

	var (
		resp *datastructure.RouteRefreshResponse
		err  error
	)
	if derr != nil {
		err = engineFailure(derr)
	} else {
		resp, err = d.decoder.DecodeRefreshResponse(payload, dctx)
	}

	d.observeCompletion("refresh", issuedAt, err)
	d.deliver(func() {
		completion(session, resp, err)
	})
}

// claim removes the registry entry, making this callback the request's one
// terminal transition. A false return means cancellation (or an earlier
// callback) won the race and this late callback must be dropped silently.
func (d *RequestDispatcher) claim(id engine.RequestID) bool {
	if !d.registry.Remove(id) {
		d.log.Debug("dropping callback for finalized request", zap.Uint64("request_id", uint64(id)))
		return false
	}
	observability.RequestsInflight.Dec()
	return true
}

func (d *RequestDispatcher) observeCompletion(kind string, issuedAt time.Time, err error) {
	observability.CompletionsTotal.WithLabelValues(kind, outcomeLabel(err)).Inc()
	observability.CompletionLatency.WithLabelValues(kind).Observe(time.Since(issuedAt).Seconds())
}

func (d *RequestDispatcher) deliver(fn func()) {
	select {
	case d.deliveries <- fn:
	case <-d.done:
	}
}

func (d *RequestDispatcher) deliverLoop() {
	for {
		select {
		case fn := <-d.deliveries:
			fn()
		case <-d.done:
			return
		}
	}
}

func engineFailure(derr *engine.DirectionsError) error {
	return util.WrapErrorf(derr, ErrEngine, "the routing engine failed the request: %v", derr)
}
