package router

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wayfarer-nav/wayfarer/pkg/datastructure"
	"github.com/wayfarer-nav/wayfarer/pkg/engine"
	"go.uber.org/zap"
)

type refreshCall struct {
	responseID string
	routeIndex int
	legIndex   int
	profile    engine.RoutingProfile
}

// mockEngine hands out sequential ids and lets the test fire the stored
// callbacks itself, from whatever goroutine and in whatever order it wants.
type mockEngine struct {
	mu        sync.Mutex
	nextID    engine.RequestID
	callbacks map[engine.RequestID]engine.DirectionsCallback
	cancelled map[engine.RequestID]int
	refreshes map[engine.RequestID]refreshCall
	issued    int
}

func newMockEngine(firstID engine.RequestID) *mockEngine {
	return &mockEngine{
		nextID:    firstID - 1,
		callbacks: make(map[engine.RequestID]engine.DirectionsCallback),
		cancelled: make(map[engine.RequestID]int),
		refreshes: make(map[engine.RequestID]refreshCall),
	}
}

func (m *mockEngine) IssueDirectionsRequest(uri string, cb engine.DirectionsCallback) engine.RequestID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.issued++
	m.callbacks[m.nextID] = cb
	return m.nextID
}

func (m *mockEngine) IssueRefreshRequest(responseID string, routeIndex, legIndex int,
	profile engine.RoutingProfile, routeJSON []byte, cb engine.DirectionsCallback) engine.RequestID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.issued++
	m.callbacks[m.nextID] = cb
	m.refreshes[m.nextID] = refreshCall{
		responseID: responseID,
		routeIndex: routeIndex,
		legIndex:   legIndex,
		profile:    profile,
	}
	return m.nextID
}

func (m *mockEngine) CancelRequest(id engine.RequestID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled[id]++
}

func (m *mockEngine) fire(id engine.RequestID, payload []byte, derr *engine.DirectionsError) {
	m.mu.Lock()
	cb := m.callbacks[id]
	m.mu.Unlock()
	cb(payload, derr)
}

func (m *mockEngine) cancelCount(id engine.RequestID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled[id]
}

func (m *mockEngine) issuedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issued
}

func testDispatcher(t *testing.T, eng engine.RouterInterface) *RequestDispatcher {
	t.Helper()
	d := NewRequestDispatcher(Config{
		Credentials: datastructure.Credentials{Host: "http://localhost:5000", AccessToken: "tok"},
	}, eng, zap.NewNop())
	t.Cleanup(d.Close)
	return d
}

func testRouteOptions() datastructure.RouteOptions {
	return datastructure.RouteOptions{
		ProfileIdentifier: ProfileIdentifierDrivingTraffic,
		Waypoints: []datastructure.Waypoint{
			datastructure.NewWaypoint(-7.77, 110.36, "origin"),
			datastructure.NewWaypoint(-7.78, 110.37, "destination"),
		},
	}
}

// flush issues a throwaway request and waits for its completion. The
// delivery goroutine runs completions in order, so once the flush lands
// every delivery queued before it has already run.
func flush(t *testing.T, d *RequestDispatcher, eng *mockEngine) {
	t.Helper()
	done := make(chan struct{})
	id := d.RequestRoute(testRouteOptions(), func(RouteSession, *datastructure.RouteResponse, error) {
		close(done)
	})
	eng.fire(id, []byte(routePayload), nil)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("delivery queue did not drain")
	}
}

func TestRequestRouteDeliversDecodedResponse(t *testing.T) {
	eng := newMockEngine(42)
	d := testDispatcher(t, eng)

	type outcome struct {
		session  RouteSession
		response *datastructure.RouteResponse
		err      error
	}
	out := make(chan outcome, 1)

	id := d.RequestRoute(testRouteOptions(), func(session RouteSession, response *datastructure.RouteResponse, err error) {
		out <- outcome{session, response, err}
	})
	require.Equal(t, engine.RequestID(42), id)
	require.Equal(t, []engine.RequestID{42}, d.ActiveRequests())

	eng.fire(id, []byte(routePayload), nil)

	select {
	case got := <-out:
		require.NoError(t, got.err)
		require.Equal(t, "resp-1", got.response.ResponseIdentifier)
		require.Equal(t, ProfileIdentifierDrivingTraffic, got.response.Options.ProfileIdentifier)
		require.Equal(t, "tok", got.session.Credentials.AccessToken)
	case <-time.After(5 * time.Second):
		t.Fatal("completion never delivered")
	}
	require.Empty(t, d.ActiveRequests())
}

func TestEngineFailureDeliversEngineError(t *testing.T) {
	eng := newMockEngine(1)
	d := testDispatcher(t, eng)

	out := make(chan error, 1)
	id := d.RequestRoute(testRouteOptions(), func(_ RouteSession, response *datastructure.RouteResponse, err error) {
		require.Nil(t, response)
		out <- err
	})
	eng.fire(id, nil, &engine.DirectionsError{Code: 503, Message: "engine unavailable"})

	select {
	case err := <-out:
		require.True(t, IsEngine(err), "expected engine error, got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("completion never delivered")
	}
}

func TestDuplicateCallbackDeliversOnce(t *testing.T) {
	eng := newMockEngine(1)
	d := testDispatcher(t, eng)

	var (
		mu          sync.Mutex
		completions int
	)
	id := d.RequestRoute(testRouteOptions(), func(RouteSession, *datastructure.RouteResponse, error) {
		mu.Lock()
		completions++
		mu.Unlock()
	})

	eng.fire(id, []byte(routePayload), nil)
	eng.fire(id, []byte(routePayload), nil)
	flush(t, d, eng)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, completions)
}

func TestCancelSuppressesCompletion(t *testing.T) {
	eng := newMockEngine(1)
	d := testDispatcher(t, eng)

	id := d.RequestRoute(testRouteOptions(), func(RouteSession, *datastructure.RouteResponse, error) {
		t.Error("completion delivered for a cancelled request")
	})
	d.Cancel(id)
	require.Equal(t, 1, eng.cancelCount(id))
	require.Empty(t, d.ActiveRequests())

	// late callback after cancellation is dropped silently
	eng.fire(id, []byte(routePayload), nil)
	flush(t, d, eng)
}

func TestCancelIsIdempotent(t *testing.T) {
	eng := newMockEngine(1)
	d := testDispatcher(t, eng)

	id := d.RequestRoute(testRouteOptions(), func(RouteSession, *datastructure.RouteResponse, error) {})
	d.Cancel(id)
	d.Cancel(id)
	require.Equal(t, 1, eng.cancelCount(id), "second cancel must not reach the engine")

	// cancelling unknown ids is a no-op too
	d.Cancel(engine.RequestID(9999))
	require.Equal(t, 0, eng.cancelCount(9999))
}

func TestCancelAfterCompletionIsNoOp(t *testing.T) {
	eng := newMockEngine(1)
	d := testDispatcher(t, eng)

	delivered := make(chan struct{})
	id := d.RequestRoute(testRouteOptions(), func(RouteSession, *datastructure.RouteResponse, error) {
		close(delivered)
	})
	eng.fire(id, []byte(routePayload), nil)
	<-delivered

	d.Cancel(id)
	require.Equal(t, 0, eng.cancelCount(id))
}

func TestRequestMapMatchDeliversDecodedResponse(t *testing.T) {
	eng := newMockEngine(1)
	d := testDispatcher(t, eng)

	options := datastructure.MatchOptions{
		ProfileIdentifier: ProfileIdentifierDriving,
		TracePoints: []datastructure.Waypoint{
			datastructure.NewWaypoint(-7.77, 110.36, ""),
			datastructure.NewWaypoint(-7.78, 110.37, ""),
		},
	}

	out := make(chan *datastructure.MapMatchResponse, 1)
	id := d.RequestMapMatch(options, func(_ MatchSession, response *datastructure.MapMatchResponse, err error) {
		require.NoError(t, err)
		out <- response
	})
	eng.fire(id, []byte(matchPayload), nil)

	select {
	case resp := <-out:
		require.Len(t, resp.Matchings, 1)
		require.Equal(t, ProfileIdentifierDriving, resp.Options.ProfileIdentifier)
	case <-time.After(5 * time.Second):
		t.Fatal("completion never delivered")
	}
}

func refreshableResponse() datastructure.RouteResponse {
	return datastructure.RouteResponse{
		ResponseIdentifier: "resp-1",
		Code:               "Ok",
		Routes: []datastructure.Route{
			{Distance: 1200.5, Duration: 240.2, Geometry: "_p~iF~ps|U_ulLnnqC",
				Legs: []datastructure.RouteLeg{{Distance: 1200.5, Duration: 240.2}}},
		},
		Options:     datastructure.RouteOptions{ProfileIdentifier: ProfileIdentifierDrivingTraffic},
		Credentials: datastructure.Credentials{Host: "http://localhost:5000", AccessToken: "tok"},
	}
}

func TestRefreshRouteDeliversRefreshedRoute(t *testing.T) {
	eng := newMockEngine(1)
	d := testDispatcher(t, eng)

	indexed := datastructure.NewIndexedRouteResponse(refreshableResponse(), 0)

	out := make(chan *datastructure.RouteRefreshResponse, 1)
	id := d.RefreshRoute(indexed, 1, func(_ RouteSession, response *datastructure.RouteRefreshResponse, err error) {
		require.NoError(t, err)
		out <- response
	})

	eng.mu.Lock()
	call := eng.refreshes[id]
	eng.mu.Unlock()
	require.Equal(t, "resp-1", call.responseID)
	require.Equal(t, 0, call.routeIndex)
	require.Equal(t, 1, call.legIndex)
	require.Equal(t, engine.ProfileDrivingTraffic, call.profile)

	eng.fire(id, []byte(refreshPayload), nil)

	select {
	case resp := <-out:
		require.Equal(t, "resp-1", resp.ResponseIdentifier)
		require.Equal(t, 0, resp.RouteIndex)
		require.Equal(t, 1, resp.FromLegIndex)
		require.NotEmpty(t, resp.Route.Legs)
	case <-time.After(5 * time.Second):
		t.Fatal("completion never delivered")
	}
}

func TestRefreshRoutePreconditionPanics(t *testing.T) {
	tests := []struct {
		name    string
		indexed datastructure.IndexedRouteResponse
	}{
		{
			name: "map-match origin",
			indexed: datastructure.NewIndexedMapMatchResponse(datastructure.MapMatchResponse{
				Code:      "Ok",
				Matchings: refreshableResponse().Routes,
			}, 0),
		},
		{
			name: "missing response identifier",
			indexed: func() datastructure.IndexedRouteResponse {
				resp := refreshableResponse()
				resp.ResponseIdentifier = ""
				return datastructure.NewIndexedRouteResponse(resp, 0)
			}(),
		},
		{
			name:    "route index out of range",
			indexed: datastructure.NewIndexedRouteResponse(refreshableResponse(), 5),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newMockEngine(1)
			d := testDispatcher(t, eng)

			require.Panics(t, func() {
				d.RefreshRoute(tt.indexed, 0, func(RouteSession, *datastructure.RouteRefreshResponse, error) {
					t.Error("completion delivered for a rejected refresh")
				})
			})
			require.Zero(t, eng.issuedCount(), "precondition failures must not reach the engine")
			require.Empty(t, d.ActiveRequests())
		})
	}
}

func TestConcurrentIssueCancelAndComplete(t *testing.T) {
	const requests = 120

	eng := newMockEngine(1)
	d := testDispatcher(t, eng)

	var (
		mu          sync.Mutex
		completions = make(map[engine.RequestID]int)
	)
	ids := make([]engine.RequestID, requests)

	var issue sync.WaitGroup
	for i := 0; i < requests; i++ {
		issue.Add(1)
		go func(i int) {
			defer issue.Done()
			name := fmt.Sprintf("wp-%d", i)
			options := testRouteOptions()
			options.Waypoints[0].Name = name
			var id engine.RequestID
			id = d.RequestRoute(options, func(RouteSession, *datastructure.RouteResponse, error) {
				mu.Lock()
				completions[id] = completions[id] + 1
				mu.Unlock()
			})
			ids[i] = id
		}(i)
	}
	issue.Wait()
	require.Len(t, d.ActiveRequests(), requests)

	// cancel every third request while every callback fires concurrently
	var race sync.WaitGroup
	for i, id := range ids {
		if i%3 == 0 {
			race.Add(1)
			go func(id engine.RequestID) {
				defer race.Done()
				d.Cancel(id)
			}(id)
		}
		race.Add(1)
		go func(id engine.RequestID) {
			defer race.Done()
			eng.fire(id, []byte(routePayload), nil)
		}(id)
	}
	race.Wait()
	flush(t, d, eng)

	require.Empty(t, d.ActiveRequests())

	mu.Lock()
	defer mu.Unlock()
	for i, id := range ids {
		if i%3 == 0 {
			// cancellation raced the callback, either may win, never both
			require.LessOrEqual(t, completions[id], 1, "request %d", id)
			if completions[id] == 1 {
				require.Zero(t, eng.cancelCount(id), "request %d completed yet reached engine cancel", id)
			}
		} else {
			require.Equal(t, 1, completions[id], "request %d", id)
		}
	}
}
