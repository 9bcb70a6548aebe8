package engine

import "fmt"

// RequestID is the handle the engine assigns when it accepts a request.
// Unique among currently pending requests, never reused while pending.
type RequestID uint64

// RouterSource selects where the engine resolves routes from.
type RouterSource uint8

const (
	SourceOnline RouterSource = iota
	SourceOffline
	SourceHybrid
)

func (s RouterSource) String() string {
	switch s {
	case SourceOnline:
		return "online"
	case SourceOffline:
		return "offline"
	case SourceHybrid:
		return "hybrid"
	}
	return "unknown"
}

// RoutingProfile is the engine's native travel profile.
type RoutingProfile uint8

const (
	ProfileDriving RoutingProfile = iota
	ProfileDrivingTraffic
	ProfileCycling
	ProfileWalking
)

func (p RoutingProfile) String() string {
	switch p {
	case ProfileDriving:
		return "driving"
	case ProfileDrivingTraffic:
		return "driving-traffic"
	case ProfileCycling:
		return "cycling"
	case ProfileWalking:
		return "walking"
	}
	return "driving"
}

// DirectionsError is the engine's diagnostic for a failed request, passed
// through to the caller as-is.
type DirectionsError struct {
	Code    int
	Message string
}

func (e *DirectionsError) Error() string {
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}

// DirectionsCallback delivers the raw engine payload. Invoked exactly once
// per accepted request unless the request is cancelled first, from a
// goroutine the caller does not control.
type DirectionsCallback func(payload []byte, derr *DirectionsError)

// RouterInterface is the narrow surface the request dispatcher consumes.
// IssueDirectionsRequest and IssueRefreshRequest return the assigned id
// synchronously; the result arrives later through the callback.
type RouterInterface interface {
	IssueDirectionsRequest(uri string, cb DirectionsCallback) RequestID
	IssueRefreshRequest(responseID string, routeIndex, legIndex int, profile RoutingProfile, routeJSON []byte, cb DirectionsCallback) RequestID
	CancelRequest(id RequestID)
}

// HistoryRecorder receives request lifecycle events for the navigation
// history file.
type HistoryRecorder interface {
	RecordEvent(event string, id RequestID, uri string)
	Close() error
}
