package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/gnb-controlplane/internal/pdu"
)

// ErrMalformedEnvelope is returned for payloads that do not carry a message
// type and a body.
var ErrMalformedEnvelope = errors.New("gateway: malformed envelope")

const (
	typeField = "message_type"
	bodyField = "body"
)

// Encode wraps msg in an envelope: its type name and its JSON form as a
// structured body. Integers above 2^53 lose precision in the body.
func Encode(msg pdu.Message) (*structpb.Struct, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformedEnvelope)
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode %s: %w", msg.MessageType(), err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("gateway: encode %s: %w", msg.MessageType(), err)
	}
	body, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode %s: %w", msg.MessageType(), err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		typeField: structpb.NewStringValue(msg.MessageType()),
		bodyField: structpb.NewStructValue(body),
	}}, nil
}

// Decode unwraps an envelope into a message built by reg.
func Decode(reg *pdu.Registry, env *structpb.Struct) (pdu.Message, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedEnvelope)
	}
	name := env.GetFields()[typeField].GetStringValue()
	if name == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedEnvelope, typeField)
	}
	body := env.GetFields()[bodyField].GetStructValue()
	if body == nil {
		return nil, fmt.Errorf("%w: %s has no %s", ErrMalformedEnvelope, name, bodyField)
	}
	msg, err := reg.New(name)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(body.AsMap())
	if err != nil {
		return nil, fmt.Errorf("gateway: decode %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedEnvelope, name, err)
	}
	return msg, nil
}
