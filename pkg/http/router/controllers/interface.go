package controllers

import (
	"github.com/wayfarer-nav/wayfarer/pkg/datastructure"
	"github.com/wayfarer-nav/wayfarer/pkg/engine"
	"github.com/wayfarer-nav/wayfarer/pkg/router"
)

// NavigationService is the request dispatcher surface the API consumes.
type NavigationService interface {
	RequestRoute(options datastructure.RouteOptions, completion router.RouteCompletionHandler) engine.RequestID
	RequestMapMatch(options datastructure.MatchOptions, completion router.MatchCompletionHandler) engine.RequestID
	RefreshRoute(indexed datastructure.IndexedRouteResponse, fromLegIndex int, completion router.RefreshCompletionHandler) engine.RequestID
	Cancel(id engine.RequestID)
	ActiveRequests() []engine.RequestID
}
