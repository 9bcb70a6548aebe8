package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wayfarer-nav/wayfarer/pkg/datastructure"
	"github.com/wayfarer-nav/wayfarer/pkg/engine"
	helper "github.com/wayfarer-nav/wayfarer/pkg/http/router/routerhelper"
	"github.com/wayfarer-nav/wayfarer/pkg/router"
	"github.com/wayfarer-nav/wayfarer/pkg/util"
	"go.uber.org/zap"
)

// fakeService completes every request synchronously with the canned
// response or error.
type fakeService struct {
	mu     sync.Mutex
	nextID engine.RequestID

	routeOptions []datastructure.RouteOptions
	matchOptions []datastructure.MatchOptions
	refreshed    []datastructure.IndexedRouteResponse
	cancelled    []engine.RequestID
	active       []engine.RequestID

	routeResp   *datastructure.RouteResponse
	matchResp   *datastructure.MapMatchResponse
	refreshResp *datastructure.RouteRefreshResponse
	err         error
}

func (f *fakeService) issue() engine.RequestID {
	f.nextID++
	return f.nextID
}

func (f *fakeService) RequestRoute(options datastructure.RouteOptions, completion router.RouteCompletionHandler) engine.RequestID {
	f.mu.Lock()
	f.routeOptions = append(f.routeOptions, options)
	id := f.issue()
	f.mu.Unlock()
	completion(router.RouteSession{Options: options}, f.routeResp, f.err)
	return id
}

func (f *fakeService) RequestMapMatch(options datastructure.MatchOptions, completion router.MatchCompletionHandler) engine.RequestID {
	f.mu.Lock()
	f.matchOptions = append(f.matchOptions, options)
	id := f.issue()
	f.mu.Unlock()
	completion(router.MatchSession{Options: options}, f.matchResp, f.err)
	return id
}

func (f *fakeService) RefreshRoute(indexed datastructure.IndexedRouteResponse, fromLegIndex int, completion router.RefreshCompletionHandler) engine.RequestID {
	f.mu.Lock()
	f.refreshed = append(f.refreshed, indexed)
	id := f.issue()
	f.mu.Unlock()
	completion(router.RouteSession{Options: indexed.Response.Options}, f.refreshResp, f.err)
	return id
}

func (f *fakeService) Cancel(id engine.RequestID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
}

func (f *fakeService) ActiveRequests() []engine.RequestID {
	return f.active
}

func testMux(service NavigationService) *httprouter.Router {
	rt := httprouter.New()
	api := New(service, zap.NewNop())
	api.Routes(helper.NewRouteGroup(rt, ""))
	return rt
}

func TestComputeRoutes(t *testing.T) {
	service := &fakeService{
		routeResp: &datastructure.RouteResponse{
			ResponseIdentifier: "resp-1",
			Code:               "Ok",
			Routes:             []datastructure.Route{{Distance: 1200.5}},
		},
	}
	mux := testMux(service)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/computeRoutes?origin_lat=-7.77&origin_lon=110.36&destination_lat=-7.78&destination_lon=110.37", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data datastructure.RouteResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "resp-1", body.Data.ResponseIdentifier)

	require.Len(t, service.routeOptions, 1)
	options := service.routeOptions[0]
	assert.Equal(t, router.ProfileIdentifierDriving, options.ProfileIdentifier, "profile defaults to driving")
	require.Len(t, options.Waypoints, 2)
	assert.Equal(t, -7.77, options.Waypoints[0].Lat())
	assert.Equal(t, 110.36, options.Waypoints[0].Lon())
}

func TestComputeRoutesMissingCoordinate(t *testing.T) {
	mux := testMux(&fakeService{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/computeRoutes?origin_lon=110.36&destination_lat=-7.78&destination_lon=110.37", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "origin_lat")
}

func TestComputeRoutesEngineFailureMapsToBadGateway(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"engine error", util.WrapErrorf(nil, router.ErrEngine, "engine rejected the request")},
		{"no data", util.WrapErrorf(nil, router.ErrNoData, "empty payload")},
		{"decode error", util.WrapErrorf(nil, router.ErrDecode, "malformed payload")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := testMux(&fakeService{err: tt.err})

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
				"/computeRoutes?origin_lat=-7.77&origin_lon=110.36&destination_lat=-7.78&destination_lon=110.37", nil))

			assert.Equal(t, http.StatusBadGateway, rec.Code)
		})
	}
}

func TestMapMatch(t *testing.T) {
	service := &fakeService{
		matchResp: &datastructure.MapMatchResponse{
			Code:      "Ok",
			Matchings: []datastructure.Route{{Distance: 310}},
		},
	}
	mux := testMux(service)

	body := `{"trace":[{"lat":-7.77,"lon":110.36},{"lat":-7.78,"lon":110.37}],"timestamps":[100,160]}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mapMatch", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, service.matchOptions, 1)
	assert.Len(t, service.matchOptions[0].TracePoints, 2)
	assert.Equal(t, []int64{100, 160}, service.matchOptions[0].Timestamps)
}

func TestMapMatchRejectsShortTrace(t *testing.T) {
	mux := testMux(&fakeService{})

	body := `{"trace":[{"lat":-7.77,"lon":110.36}]}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mapMatch", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshRoute(t *testing.T) {
	service := &fakeService{
		refreshResp: &datastructure.RouteRefreshResponse{
			ResponseIdentifier: "resp-1",
			Code:               "Ok",
			Route:              datastructure.Route{Distance: 1180, Legs: []datastructure.RouteLeg{{Distance: 1180}}},
		},
	}
	mux := testMux(service)

	body := `{
		"response": {"uuid": "resp-1", "code": "Ok", "routes": [{"distance": 1200.5, "legs": [{"distance": 1200.5}]}]},
		"route_index": 0,
		"from_leg_index": 1,
		"profile": "wayfarer/driving-traffic"
	}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/refreshRoute", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, service.refreshed, 1)
	indexed := service.refreshed[0]
	assert.Equal(t, datastructure.OriginDirections, indexed.Origin)
	assert.Equal(t, "resp-1", indexed.Response.ResponseIdentifier)
	assert.Equal(t, router.ProfileIdentifierDrivingTraffic, indexed.Response.Options.ProfileIdentifier)
}

func TestRefreshRouteRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing uuid",
			body: `{"response": {"code": "Ok", "routes": [{"distance": 1}]}, "route_index": 0}`,
		},
		{
			name: "route index out of range",
			body: `{"response": {"uuid": "resp-1", "code": "Ok", "routes": [{"distance": 1}]}, "route_index": 3}`,
		},
		{
			name: "malformed json",
			body: `{not json`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &fakeService{}
			mux := testMux(service)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/refreshRoute", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Empty(t, service.refreshed, "rejected refreshes must not reach the dispatcher")
		})
	}
}

func TestCancelRequest(t *testing.T) {
	service := &fakeService{}
	mux := testMux(service)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/requests/42", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []engine.RequestID{42}, service.cancelled)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/requests/not-a-number", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActiveRequests(t *testing.T) {
	service := &fakeService{active: []engine.RequestID{3, 7, 12}}
	mux := testMux(service)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/activeRequests", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data activeRequestsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []uint64{3, 7, 12}, body.Data.Requests)
}
