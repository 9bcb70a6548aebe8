package router

import (
	"errors"

	"github.com/wayfarer-nav/wayfarer/pkg/util"
)

// Sentinel codes for the recoverable completion errors. All of them travel
// through the completion result, never across the asynchronous boundary.
var (
	// ErrNoData marks an engine callback that carried no payload at all.
	ErrNoData = errors.New("no data returned from the routing engine")
	// ErrDecode marks a payload that did not match the expected response
	// schema. The wrapped error is the underlying parse failure.
	ErrDecode = errors.New("unable to decode the routing engine response")
	// ErrEngine marks a failure the engine itself reported for the request.
	ErrEngine = errors.New("the routing engine reported a failure")
)

func IsNoData(err error) bool {
	return util.ErrorCode(err) == ErrNoData
}

func IsDecode(err error) bool {
	return util.ErrorCode(err) == ErrDecode
}

func IsEngine(err error) bool {
	return util.ErrorCode(err) == ErrEngine
}

// outcomeLabel classifies a completion error for metrics.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsNoData(err):
		return "no_data"
	case IsDecode(err):
		return "decode_error"
	case IsEngine(err):
		return "engine_error"
	}
	return "error"
}
