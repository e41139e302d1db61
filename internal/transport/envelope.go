package transport

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/beyondnet/beyond/internal/berr"
)

func decodePayload(payload []byte, v any) error {
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return berr.Wrap(berr.InvalidArgument, component, "decodePayload", err)
	}
	return nil
}

func encodePayload(v any) ([]byte, error) {
	body, err := msgpack.Marshal(v)
	if err != nil {
		return nil, berr.Wrap(berr.InvalidArgument, component, "encodePayload", err)
	}
	return body, nil
}

// replyEnvelope wraps a method-specific response in an Envelope. The caller
// reuses the request's Method so the other side can demultiplex a reply
// without a separate correlation ID.
func replyEnvelope(method Method, resp any) Envelope {
	body, err := msgpack.Marshal(resp)
	if err != nil {
		return errorEnvelope(method)
	}
	return Envelope{Method: method, Payload: body}
}

// errorEnvelope is returned when a request cannot be decoded or
// authenticated; the caller inspects the accompanying error value returned
// alongside it rather than a payload field, since the failure happened
// before a method-specific response could be constructed.
func errorEnvelope(method Method) Envelope {
	return Envelope{Method: method}
}
