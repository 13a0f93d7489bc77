package api

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/contiapp/conti-server/internal/http/response"
)

// EnvelopeVersion is the "v" field of every response body.
const EnvelopeVersion = response.Version

// EnvelopeTransformer wraps every huma response body in the shared envelope
// so typed routes and plain handlers look the same on the wire.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case response.Envelope, *response.Envelope:
		return v, nil
	case *APIError:
		return response.Failure(body.Code, body.Message, body.Details), nil
	case error:
		return response.Envelope{V: EnvelopeVersion, Error: body.Error()}, nil
	default:
		return response.OK(v), nil
	}
}
