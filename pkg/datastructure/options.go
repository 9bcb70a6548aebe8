package datastructure

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wayfarer-nav/wayfarer/pkg/geo"
	"github.com/wayfarer-nav/wayfarer/pkg/util"
)

// Credentials identify the engine endpoint and the caller. Passed explicitly
// at construction time, never read from process-wide state.
type Credentials struct {
	Host        string
	AccessToken string
}

const minimumWaypointSeparationKM = 0.001

// RouteOptions describe one directions request.
type RouteOptions struct {
	Waypoints         []Waypoint
	ProfileIdentifier string
	Alternatives      bool
	Annotations       []string
	DepartAt          *time.Time
}

func (o RouteOptions) Validate() error {
	if len(o.Waypoints) < 2 {
		return util.WrapErrorf(nil, util.ErrBadParamInput, "a route needs at least 2 waypoints, got %d", len(o.Waypoints))
	}
	for i, w := range o.Waypoints {
		if w.Lat() < -90 || w.Lat() > 90 || w.Lon() < -180 || w.Lon() > 180 {
			return util.WrapErrorf(nil, util.ErrBadParamInput, "waypoint %d out of bounds: %f,%f", i, w.Lat(), w.Lon())
		}
	}
	for i := 1; i < len(o.Waypoints); i++ {
		prev, curr := o.Waypoints[i-1], o.Waypoints[i]
		if geo.CalculateHaversineDistance(prev.Lat(), prev.Lon(), curr.Lat(), curr.Lon()) < minimumWaypointSeparationKM {
			return util.WrapErrorf(nil, util.ErrBadParamInput, "waypoints %d and %d coincide", i-1, i)
		}
	}
	return nil
}

// DirectionsURI builds the engine request uri for these options.
func (o RouteOptions) DirectionsURI(cred Credentials) string {
	query := url.Values{}
	query.Set("overview", "full")
	query.Set("geometries", "polyline")
	if o.Alternatives {
		query.Set("alternatives", "true")
	}
	if len(o.Annotations) > 0 {
		query.Set("annotations", strings.Join(o.Annotations, ","))
	}
	if o.DepartAt != nil {
		query.Set("depart_at", o.DepartAt.Format(time.RFC3339))
	}
	if cred.AccessToken != "" {
		query.Set("access_token", cred.AccessToken)
	}

	return fmt.Sprintf("%s/route/v1/%s/%s?%s",
		strings.TrimSuffix(cred.Host, "/"),
		url.PathEscape(o.ProfileIdentifier),
		coordinatePath(o.Waypoints),
		query.Encode())
}

// MatchOptions describe one map-matching request.
type MatchOptions struct {
	TracePoints       []Waypoint
	Timestamps        []int64
	Radiuses          []float64
	ProfileIdentifier string
}

func (o MatchOptions) Validate() error {
	if len(o.TracePoints) < 2 {
		return util.WrapErrorf(nil, util.ErrBadParamInput, "a trace needs at least 2 points, got %d", len(o.TracePoints))
	}
	if len(o.Timestamps) > 0 && len(o.Timestamps) != len(o.TracePoints) {
		return util.WrapErrorf(nil, util.ErrBadParamInput, "timestamps must match trace points: %d vs %d", len(o.Timestamps), len(o.TracePoints))
	}
	if len(o.Radiuses) > 0 && len(o.Radiuses) != len(o.TracePoints) {
		return util.WrapErrorf(nil, util.ErrBadParamInput, "radiuses must match trace points: %d vs %d", len(o.Radiuses), len(o.TracePoints))
	}
	return nil
}

// MatchURI builds the engine request uri for these options.
func (o MatchOptions) MatchURI(cred Credentials) string {
	query := url.Values{}
	query.Set("overview", "full")
	query.Set("geometries", "polyline")
	if len(o.Timestamps) > 0 {
		ts := make([]string, len(o.Timestamps))
		for i, t := range o.Timestamps {
			ts[i] = strconv.FormatInt(t, 10)
		}
		query.Set("timestamps", strings.Join(ts, ";"))
	}
	if len(o.Radiuses) > 0 {
		rs := make([]string, len(o.Radiuses))
		for i, r := range o.Radiuses {
			rs[i] = strconv.FormatFloat(r, 'f', -1, 64)
		}
		query.Set("radiuses", strings.Join(rs, ";"))
	}
	if cred.AccessToken != "" {
		query.Set("access_token", cred.AccessToken)
	}

	return fmt.Sprintf("%s/match/v1/%s/%s?%s",
		strings.TrimSuffix(cred.Host, "/"),
		url.PathEscape(o.ProfileIdentifier),
		coordinatePath(o.TracePoints),
		query.Encode())
}

func coordinatePath(points []Waypoint) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf("%.6f,%.6f", p.Lon(), p.Lat())
	}
	return strings.Join(parts, ";")
}
