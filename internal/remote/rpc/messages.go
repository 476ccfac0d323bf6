package rpc

import (
	"fmt"

	"github.com/dmitrijs2005/moodkeeper/internal/common"
	"github.com/dmitrijs2005/moodkeeper/internal/remote"
	"google.golang.org/protobuf/types/known/structpb"
)

// NewWriteRequest builds the Set/Push request for path and value.
func NewWriteRequest(path string, value map[string]any) (*structpb.Struct, error) {
	v, err := structpb.NewStruct(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"path":  structpb.NewStringValue(path),
		"value": structpb.NewStructValue(v),
	}}, nil
}

// ParseWriteRequest is the inverse of NewWriteRequest.
func ParseWriteRequest(req *structpb.Struct) (string, map[string]any, error) {
	f := req.GetFields()
	path := f["path"].GetStringValue()
	if path == "" {
		return "", nil, fmt.Errorf("%w: missing path", common.ErrValidation)
	}
	v := f["value"].GetStructValue()
	if v == nil {
		return "", nil, fmt.Errorf("%w: missing value", common.ErrValidation)
	}
	return path, v.AsMap(), nil
}

// NewEvent encodes a change event for the Watch stream.
func NewEvent(ev remote.ChangeEvent) (*structpb.Struct, error) {
	out := &structpb.Struct{Fields: map[string]*structpb.Value{
		"path": structpb.NewStringValue(ev.Path),
		"kind": structpb.NewStringValue(string(ev.Kind)),
	}}
	if ev.Value != nil {
		v, err := structpb.NewStruct(ev.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrValidation, err)
		}
		out.Fields["value"] = structpb.NewStructValue(v)
	}
	return out, nil
}

// ParseEvent decodes a Watch stream message. Numbers come back as float64.
func ParseEvent(m *structpb.Struct) (remote.ChangeEvent, error) {
	f := m.GetFields()
	ev := remote.ChangeEvent{
		Path: f["path"].GetStringValue(),
		Kind: remote.ChangeKind(f["kind"].GetStringValue()),
	}
	if ev.Path == "" {
		return remote.ChangeEvent{}, fmt.Errorf("%w: event without path", common.ErrValidation)
	}
	switch ev.Kind {
	case remote.ChangePut:
		v := f["value"].GetStructValue()
		if v == nil {
			return remote.ChangeEvent{}, fmt.Errorf("%w: put event without value", common.ErrValidation)
		}
		ev.Value = v.AsMap()
	case remote.ChangeDelete:
	default:
		return remote.ChangeEvent{}, fmt.Errorf("%w: unknown event kind %q", common.ErrValidation, ev.Kind)
	}
	return ev, nil
}
