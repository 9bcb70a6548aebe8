package controllers

import (
	"github.com/wayfarer-nav/wayfarer/pkg/datastructure"
)

type computeRoutesRequest struct {
	OriginLat      float64 `json:"origin_lat" validate:"required,min=-90,max=90"`
	OriginLon      float64 `json:"origin_lon" validate:"required,min=-180,max=180"`
	DestinationLat float64 `json:"destination_lat" validate:"required,min=-90,max=90"`
	DestinationLon float64 `json:"destination_lon" validate:"required,min=-180,max=180"`
}

type tracePointDTO struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lon float64 `json:"lon" validate:"min=-180,max=180"`
}

func (t tracePointDTO) toWaypoint() datastructure.Waypoint {
	return datastructure.NewWaypoint(t.Lat, t.Lon, "")
}

type mapMatchRequest struct {
	Trace      []tracePointDTO `json:"trace" validate:"required,min=2,dive"`
	Timestamps []int64         `json:"timestamps"`
	Radiuses   []float64       `json:"radiuses"`
	Profile    string          `json:"profile"`
}

type refreshRouteRequest struct {
	Response     datastructure.RouteResponse `json:"response" validate:"required"`
	RouteIndex   int                         `json:"route_index" validate:"min=0"`
	FromLegIndex int                         `json:"from_leg_index" validate:"min=0"`
	Profile      string                      `json:"profile"`
}

type activeRequestsResponse struct {
	Requests []uint64 `json:"requests"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
