package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/julienschmidt/httprouter"
	"github.com/wayfarer-nav/wayfarer/pkg/datastructure"
	"github.com/wayfarer-nav/wayfarer/pkg/engine"
	helper "github.com/wayfarer-nav/wayfarer/pkg/http/router/routerhelper"
	"github.com/wayfarer-nav/wayfarer/pkg/router"
	"go.uber.org/zap"
)

type navigationAPI struct {
	service NavigationService
	log     *zap.Logger
}

func New(service NavigationService, log *zap.Logger) *navigationAPI {
	return &navigationAPI{
		service: service,
		log:     log,
	}
}

func (api *navigationAPI) Routes(group *helper.RouteGroup) {
	group.GET("/computeRoutes", api.computeRoutes)
	group.POST("/mapMatch", api.mapMatch)
	group.POST("/refreshRoute", api.refreshRoute)
	group.GET("/activeRequests", api.activeRequests)
	group.DELETE("/requests/:id", api.cancelRequest)
}

type routeOutcome struct {
	resp *datastructure.RouteResponse
	err  error
}

func (api *navigationAPI) computeRoutes(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var (
		request computeRoutesRequest
		err     error
	)

	query := r.URL.Query()

	request.OriginLat, err = strconv.ParseFloat(query.Get("origin_lat"), 64)
	if err != nil {
		api.BadRequestResponse(w, r, errors.New("origin_lat is required and must be a valid float"))
		return
	}
	request.OriginLon, err = strconv.ParseFloat(query.Get("origin_lon"), 64)
	if err != nil {
		api.BadRequestResponse(w, r, errors.New("origin_lon is required and must be a valid float"))
		return
	}
	request.DestinationLat, err = strconv.ParseFloat(query.Get("destination_lat"), 64)
	if err != nil {
		api.BadRequestResponse(w, r, errors.New("destination_lat is required and must be a valid float"))
		return
	}
	request.DestinationLon, err = strconv.ParseFloat(query.Get("destination_lon"), 64)
	if err != nil {
		api.BadRequestResponse(w, r, errors.New("destination_lon is required and must be a valid float"))
		return
	}
	if err := api.validateRequest(w, r, request); err != nil {
		return
	}

	profile := query.Get("profile")
	if profile == "" {
		profile = router.ProfileIdentifierDriving
	}

	options := datastructure.RouteOptions{
		Waypoints: []datastructure.Waypoint{
			datastructure.NewWaypoint(request.OriginLat, request.OriginLon, "origin"),
			datastructure.NewWaypoint(request.DestinationLat, request.DestinationLon, "destination"),
		},
		ProfileIdentifier: profile,
		Alternatives:      query.Get("alternatives") == "true",
	}
	if err := options.Validate(); err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	done := make(chan routeOutcome, 1)
	id := api.service.RequestRoute(options, func(_ router.RouteSession, resp *datastructure.RouteResponse, err error) {
		done <- routeOutcome{resp: resp, err: err}
	})

	select {
	case out := <-done:
		if out.err != nil {
			api.getStatusCode(w, r, out.err)
			return
		}
		if err := api.writeJSON(w, http.StatusOK, envelope{"data": out.resp}, make(http.Header)); err != nil {
			api.ServerErrorResponse(w, r, err)
		}
	case <-r.Context().Done():
		api.service.Cancel(id)
	}
}

func (api *navigationAPI) mapMatch(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var request mapMatchRequest

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := r.Body.Close(); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
	if err := api.validateRequest(w, r, request); err != nil {
		return
	}

	profile := request.Profile
	if profile == "" {
		profile = router.ProfileIdentifierDriving
	}

	trace := make([]datastructure.Waypoint, len(request.Trace))
	for i, point := range request.Trace {
		trace[i] = point.toWaypoint()
	}
	options := datastructure.MatchOptions{
		TracePoints:       trace,
		Timestamps:        request.Timestamps,
		Radiuses:          request.Radiuses,
		ProfileIdentifier: profile,
	}
	if err := options.Validate(); err != nil {
		api.getStatusCode(w, r, err)
		return
	}

	type matchOutcome struct {
		resp *datastructure.MapMatchResponse
		err  error
	}
	done := make(chan matchOutcome, 1)
	id := api.service.RequestMapMatch(options, func(_ router.MatchSession, resp *datastructure.MapMatchResponse, err error) {
		done <- matchOutcome{resp: resp, err: err}
	})

	select {
	case out := <-done:
		if out.err != nil {
			api.getStatusCode(w, r, out.err)
			return
		}
		if err := api.writeJSON(w, http.StatusOK, envelope{"data": out.resp}, make(http.Header)); err != nil {
			api.ServerErrorResponse(w, r, err)
		}
	case <-r.Context().Done():
		api.service.Cancel(id)
	}
}

func (api *navigationAPI) refreshRoute(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	var request refreshRouteRequest

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := r.Body.Close(); err != nil {
		api.ServerErrorResponse(w, r, err)
		return
	}
	if err := api.validateRequest(w, r, request); err != nil {
		return
	}

	// the dispatcher treats these as fatal preconditions, reject them as
	// client errors before they reach it
	if request.Response.ResponseIdentifier == "" {
		api.BadRequestResponse(w, r, errors.New("response.uuid is required for a refresh"))
		return
	}
	if request.RouteIndex >= len(request.Response.Routes) {
		api.BadRequestResponse(w, r, fmt.Errorf("route_index %d out of range for %d routes", request.RouteIndex, len(request.Response.Routes)))
		return
	}
	if request.Profile != "" {
		request.Response.Options.ProfileIdentifier = request.Profile
	}

	indexed := datastructure.NewIndexedRouteResponse(request.Response, request.RouteIndex)

	type refreshOutcome struct {
		resp *datastructure.RouteRefreshResponse
		err  error
	}
	done := make(chan refreshOutcome, 1)
	id := api.service.RefreshRoute(indexed, request.FromLegIndex, func(_ router.RouteSession, resp *datastructure.RouteRefreshResponse, err error) {
		done <- refreshOutcome{resp: resp, err: err}
	})

	select {
	case out := <-done:
		if out.err != nil {
			api.getStatusCode(w, r, out.err)
			return
		}
		if err := api.writeJSON(w, http.StatusOK, envelope{"data": out.resp}, make(http.Header)); err != nil {
			api.ServerErrorResponse(w, r, err)
		}
	case <-r.Context().Done():
		api.service.Cancel(id)
	}
}

func (api *navigationAPI) activeRequests(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	ids := api.service.ActiveRequests()
	resp := activeRequestsResponse{Requests: make([]uint64, len(ids))}
	for i, id := range ids {
		resp.Requests[i] = uint64(id)
	}
	if err := api.writeJSON(w, http.StatusOK, envelope{"data": resp}, make(http.Header)); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

func (api *navigationAPI) cancelRequest(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	id, err := strconv.ParseUint(p.ByName("id"), 10, 64)
	if err != nil {
		api.BadRequestResponse(w, r, errors.New("id must be a valid request identifier"))
		return
	}

	api.service.Cancel(engine.RequestID(id))
	if err := api.writeJSON(w, http.StatusOK, envelope{"data": "cancelled"}, make(http.Header)); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

// validateRequest runs struct validation and writes the translated errors.
// A non-nil return means the response was already written.
func (api *navigationAPI) validateRequest(w http.ResponseWriter, r *http.Request, request interface{}) error {
	validate := validator.New()
	if err := validate.Struct(request); err != nil {
		english := en.New()
		uni := ut.New(english, english)
		trans, _ := uni.GetTranslator("en")
		_ = enTranslations.RegisterDefaultTranslations(validate, trans)
		vv := translateError(err, trans)
		vvString := []string{}
		for _, v := range vv {
			vvString = append(vvString, v.Error())
		}
		api.BadRequestResponse(w, r, fmt.Errorf("validation error: %v", vvString))
		return err
	}
	return nil
}
