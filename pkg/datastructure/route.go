package datastructure

import (
	"github.com/wayfarer-nav/wayfarer/pkg/geo"
)

// Waypoint is a named point on a route. Location keeps the engine's wire
// order (lon, lat).
type Waypoint struct {
	Name     string     `json:"name,omitempty"`
	Location [2]float64 `json:"location"`
}

func NewWaypoint(lat, lon float64, name string) Waypoint {
	return Waypoint{
		Name:     name,
		Location: [2]float64{lon, lat},
	}
}

func (w Waypoint) Lat() float64 {
	return w.Location[1]
}

func (w Waypoint) Lon() float64 {
	return w.Location[0]
}

type Route struct {
	Distance float64    `json:"distance"`
	Duration float64    `json:"duration"`
	Geometry string     `json:"geometry"`
	Legs     []RouteLeg `json:"legs"`
}

// Coordinates decodes the route geometry polyline.
func (r Route) Coordinates() ([]geo.Coordinate, error) {
	return geo.CoordsFromPolyline(r.Geometry)
}

type RouteLeg struct {
	Distance   float64        `json:"distance"`
	Duration   float64        `json:"duration"`
	Summary    string         `json:"summary"`
	Annotation *LegAnnotation `json:"annotation,omitempty"`
}

type LegAnnotation struct {
	Duration   []float64 `json:"duration,omitempty"`
	Distance   []float64 `json:"distance,omitempty"`
	Congestion []string  `json:"congestion,omitempty"`
}

// ResponseOrigin records which request kind produced a route response.
// Only directions-originated responses are eligible for refresh.
type ResponseOrigin uint8

const (
	OriginDirections ResponseOrigin = iota
	OriginMapMatch
)

func (o ResponseOrigin) String() string {
	switch o {
	case OriginDirections:
		return "directions"
	case OriginMapMatch:
		return "map_match"
	}
	return "unknown"
}

// RouteResponse is the decoded payload of a directions request. Options and
// Credentials are the session context threaded in by the decoder, not part
// of the engine payload.
type RouteResponse struct {
	ResponseIdentifier string     `json:"uuid"`
	Code               string     `json:"code"`
	Message            string     `json:"message,omitempty"`
	Routes             []Route    `json:"routes"`
	Waypoints          []Waypoint `json:"waypoints"`

	Options     RouteOptions `json:"-"`
	Credentials Credentials  `json:"-"`
}

// TracePoint is a snapped input trace point of a map-matching response.
// Null entries in the payload mark trace points the engine discarded as
// outliers.
type TracePoint struct {
	Name           string     `json:"name,omitempty"`
	Location       [2]float64 `json:"location"`
	MatchingsIndex int        `json:"matchings_index"`
	WaypointIndex  int        `json:"waypoint_index"`
}

type MapMatchResponse struct {
	Code        string        `json:"code"`
	Message     string        `json:"message,omitempty"`
	Matchings   []Route       `json:"matchings"`
	TracePoints []*TracePoint `json:"tracepoints"`

	Options     MatchOptions `json:"-"`
	Credentials Credentials  `json:"-"`
}

// RouteRefreshResponse carries a full re-annotated route, not a diff.
type RouteRefreshResponse struct {
	ResponseIdentifier string `json:"uuid"`
	Code               string `json:"code"`
	Message            string `json:"message,omitempty"`
	Route              Route  `json:"route"`

	RouteIndex   int          `json:"-"`
	FromLegIndex int          `json:"-"`
	Options      RouteOptions `json:"-"`
	Credentials  Credentials  `json:"-"`
}

// IndexedRouteResponse selects one route out of a response, the unit a
// refresh request operates on.
type IndexedRouteResponse struct {
	Response   RouteResponse
	RouteIndex int
	Origin     ResponseOrigin
}

func NewIndexedRouteResponse(response RouteResponse, routeIndex int) IndexedRouteResponse {
	return IndexedRouteResponse{
		Response:   response,
		RouteIndex: routeIndex,
		Origin:     OriginDirections,
	}
}

// NewIndexedMapMatchResponse converts a map-matching result into route
// response form so it can drive turn-by-turn navigation. The converted
// response never carries a server-assigned identifier.
func NewIndexedMapMatchResponse(match MapMatchResponse, matchingIndex int) IndexedRouteResponse {
	resp := RouteResponse{
		Code:        match.Code,
		Routes:      match.Matchings,
		Credentials: match.Credentials,
	}
	return IndexedRouteResponse{
		Response:   resp,
		RouteIndex: matchingIndex,
		Origin:     OriginMapMatch,
	}
}

// SelectedRoute returns the route RouteIndex points at.
func (i IndexedRouteResponse) SelectedRoute() (Route, bool) {
	if i.RouteIndex < 0 || i.RouteIndex >= len(i.Response.Routes) {
		return Route{}, false
	}
	return i.Response.Routes[i.RouteIndex], true
}
