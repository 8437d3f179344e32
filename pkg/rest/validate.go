package rest

import "fmt"

// ValidationSpec describes the expected shape of a decoded payload.
// One spec is constructed per resource type and applied immediately
// after a successful decode.
type ValidationSpec struct {
	// RequiredFields must all be present in the payload. Order matters:
	// a validation failure names the first missing field.
	RequiredFields []string
	// Defaults are merged under the payload for absent optional fields
	Defaults map[string]interface{}
}

// ValidateShape checks raw against spec and returns raw with defaults
// merged in. The merge is shallow and caller-provided fields win over
// defaults. A nil or non-object payload, or a missing required field,
// yields a response-kind failure.
func ValidateShape(raw interface{}, spec ValidationSpec) (map[string]interface{}, error) {
	obj, ok := raw.(map[string]interface{})
	if raw == nil || !ok {
		return nil, newResponseError(0, "response payload is not an object", raw)
	}

	for _, field := range spec.RequiredFields {
		if _, present := obj[field]; !present {
			return nil, newResponseError(0, fmt.Sprintf("response missing required field %q", field), obj)
		}
	}

	if len(spec.Defaults) == 0 {
		return obj, nil
	}
	merged := make(map[string]interface{}, len(obj)+len(spec.Defaults))
	for k, v := range spec.Defaults {
		merged[k] = v
	}
	for k, v := range obj {
		merged[k] = v
	}
	return merged, nil
}
