package router

import (
	"bytes"
	"encoding/json"

	"github.com/wayfarer-nav/wayfarer/pkg/datastructure"
	"github.com/wayfarer-nav/wayfarer/pkg/util"
	"go.uber.org/zap"
)

// codeOK is the engine's in-band success marker.
const codeOK = "Ok"

// DecodingContext is the per-request metadata the decoder threads into the
// typed response: the originating options and credentials, plus the refresh
// identifiers for refresh decodes. Lives for a single decode call.
type DecodingContext struct {
	RouteOptions *datastructure.RouteOptions
	MatchOptions *datastructure.MatchOptions
	Credentials  datastructure.Credentials

	ResponseIdentifier string
	RouteIndex         int
	FromLegIndex       int
}

// ResponseDecoder turns raw engine payloads into typed responses. All three
// response shapes share the same empty-payload and malformed-payload policy.
type ResponseDecoder struct {
	log *zap.Logger
}

func NewResponseDecoder(log *zap.Logger) *ResponseDecoder {
	return &ResponseDecoder{log: log}
}

func decodePayload[T any](payload []byte) (*T, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, util.WrapErrorf(nil, ErrNoData, "the routing engine returned an empty payload")
	}
	out := new(T)
	if err := json.Unmarshal(payload, out); err != nil {
		return nil, util.WrapErrorf(err, ErrDecode, "malformed engine payload: %v", err)
	}
	return out, nil
}

func inBandFailure(code, message string) error {
	if code == "" || code == codeOK {
		return nil
	}
	return util.WrapErrorf(nil, ErrEngine, "engine rejected the request: %s %s", code, message)
}

func (d *ResponseDecoder) DecodeRouteResponse(payload []byte, dctx DecodingContext) (*datastructure.RouteResponse, error) {
	resp, err := decodePayload[datastructure.RouteResponse](payload)
	if err != nil {
		return nil, err
	}
	if err := inBandFailure(resp.Code, resp.Message); err != nil {
		return nil, err
	}
	if len(resp.Routes) == 0 {
		return nil, util.WrapErrorf(nil, ErrDecode, "route response carried no routes")
	}

	if dctx.RouteOptions != nil {
		resp.Options = *dctx.RouteOptions
	}
	resp.Credentials = dctx.Credentials
	return resp, nil
}

func (d *ResponseDecoder) DecodeMapMatchResponse(payload []byte, dctx DecodingContext) (*datastructure.MapMatchResponse, error) {
	resp, err := decodePayload[datastructure.MapMatchResponse](payload)
	if err != nil {
		return nil, err
	}
	if err := inBandFailure(resp.Code, resp.Message); err != nil {
		return nil, err
	}
	if len(resp.Matchings) == 0 {
		return nil, util.WrapErrorf(nil, ErrDecode, "map-match response carried no matchings")
	}

	if dctx.MatchOptions != nil {
		resp.Options = *dctx.MatchOptions
	}
	resp.Credentials = dctx.Credentials
	return resp, nil
}

// DecodeRefreshResponse decodes a full re-annotated route. The refresh
// identifiers come from the decoding context so the result correlates back
// to the original response even when the engine omits them.
func (d *ResponseDecoder) DecodeRefreshResponse(payload []byte, dctx DecodingContext) (*datastructure.RouteRefreshResponse, error) {
	resp, err := decodePayload[datastructure.RouteRefreshResponse](payload)
	if err != nil {
		return nil, err
	}
	if err := inBandFailure(resp.Code, resp.Message); err != nil {
		return nil, err
	}
	if len(resp.Route.Legs) == 0 {
		return nil, util.WrapErrorf(nil, ErrDecode, "refreshed route carried no legs")
	}

	if resp.ResponseIdentifier == "" {
		resp.ResponseIdentifier = dctx.ResponseIdentifier
	}
	resp.RouteIndex = dctx.RouteIndex
	resp.FromLegIndex = dctx.FromLegIndex
	if dctx.RouteOptions != nil {
		resp.Options = *dctx.RouteOptions
	}
	resp.Credentials = dctx.Credentials
	return resp, nil
}
