package rest

import "encoding/json"

// Metrics describes what one logical request cost, regardless of
// whether it succeeded.
type Metrics struct {
	// ResponseTimeMs is wall time from first attempt to final outcome
	ResponseTimeMs int64 `json:"response_time_ms"`
	// Retries is the zero-based index of the attempt that produced the outcome
	Retries int `json:"retries"`
	// Endpoint is the target URL of that attempt
	Endpoint string `json:"endpoint"`
}

// Response is the success half of a request outcome.
type Response struct {
	// Status is the HTTP status code of the winning attempt
	Status int
	// JSON holds the body when the server declared application/json.
	// An absent body (204 and friends) decodes as an empty object.
	JSON json.RawMessage
	// Text holds the body verbatim for any other content type
	Text    string
	Metrics Metrics
}

// IsJSON reports whether the response carried a JSON body
func (r *Response) IsJSON() bool { return r.JSON != nil }

// Decode unmarshals the JSON body into v. Decoding an empty or
// non-JSON response leaves v untouched.
func (r *Response) Decode(v interface{}) error {
	if len(r.JSON) == 0 {
		return nil
	}
	return json.Unmarshal(r.JSON, v)
}
