package router

import "github.com/wayfarer-nav/wayfarer/pkg/engine"

// RoutingSource is the caller-facing routing source preference.
type RoutingSource uint8

const (
	SourceOnline RoutingSource = iota
	SourceOffline
	SourceHybrid
)

func (s RoutingSource) String() string {
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

// NativeSource maps the logical source preference to the engine's source
// enum. Total over the enumerated domain, no fallback needed.
func NativeSource(s RoutingSource) engine.RouterSource {
	switch s {
	case SourceOffline:
		return engine.SourceOffline
	case SourceHybrid:
		return engine.SourceHybrid
	default:
		return engine.SourceOnline
	}
}
