package models

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var dataValidate = validator.New()

// InitialData is the payload of the placeholder node seeded into every new workflow.
type InitialData struct{}

// ManualTriggerData is the payload of a manually fired trigger.
type ManualTriggerData struct{}

// HTTPRequestData is the payload of an HTTP request task. All fields are
// optional because the editor creates the node before the user fills it in.
type HTTPRequestData struct {
	VariableName string `json:"variableName,omitempty" validate:"omitempty,max=64"`
	Endpoint     string `json:"endpoint,omitempty" validate:"omitempty,url"`
	Method       string `json:"method,omitempty" validate:"omitempty,oneof=GET POST PUT PATCH DELETE"`
	Body         string `json:"body,omitempty"`
}

// DecodeNodeData returns the typed payload for known node kinds. Unknown
// kinds come back as the opaque map so new editor node types keep working.
func DecodeNodeData(t NodeType, data NodeData) (any, error) {
	var target any
	switch t {
	case NodeTypeInitial:
		target = &InitialData{}
	case NodeTypeManualTrigger:
		target = &ManualTriggerData{}
	case NodeTypeHTTPRequest:
		target = &HTTPRequestData{}
	default:
		return data, nil
	}

	if len(data) > 0 {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s data: %w", t, err)
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, fmt.Errorf("decode %s data: %w", t, err)
		}
	}
	if err := dataValidate.Struct(target); err != nil {
		return nil, fmt.Errorf("invalid %s data: %w", t, err)
	}
	return target, nil
}
