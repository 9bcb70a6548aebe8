package router

import "github.com/wayfarer-nav/wayfarer/pkg/engine"

// Profile identifiers callers put in route and match options.
const (
	ProfileIdentifierDriving        = "wayfarer/driving"
	ProfileIdentifierDrivingTraffic = "wayfarer/driving-traffic"
	ProfileIdentifierCycling        = "wayfarer/cycling"
	ProfileIdentifierWalking        = "wayfarer/walking"
)

// NativeProfile maps a profile identifier to the engine's routing profile.
// Unrecognized identifiers fall back to driving.
func NativeProfile(identifier string) engine.RoutingProfile {
	switch identifier {
	case ProfileIdentifierDrivingTraffic:
		return engine.ProfileDrivingTraffic
	case ProfileIdentifierCycling:
		return engine.ProfileCycling
	case ProfileIdentifierWalking:
		return engine.ProfileWalking
	default:
		return engine.ProfileDriving
	}
}
