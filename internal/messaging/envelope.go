package messaging

import "encoding/json"

// Unwrap peels transport envelopes off a message body. Three shapes are
// accepted: a bare JSON payload, a payload nested under "Message" as an
// encoded string, and a payload nested under "detail" (object or encoded
// string) with an optional "detail-type" label. The label is returned so
// consumers can use it as an event-kind signal.
func Unwrap(body []byte) (payload json.RawMessage, detailType string, err error) {
	var env struct {
		Message    string          `json:"Message"`
		Detail     json.RawMessage `json:"detail"`
		DetailType string          `json:"detail-type"`
	}

	if jsonErr := json.Unmarshal(body, &env); jsonErr != nil {
		// Not a JSON object; hand the body through and let the payload
		// decode report it as malformed.
		return body, "", nil
	}

	if env.Message != "" {
		return json.RawMessage(env.Message), "", nil
	}

	if len(env.Detail) > 0 {
		if env.Detail[0] == '"' {
			var inner string
			if jsonErr := json.Unmarshal(env.Detail, &inner); jsonErr != nil {
				return nil, "", jsonErr
			}
			return json.RawMessage(inner), env.DetailType, nil
		}
		return env.Detail, env.DetailType, nil
	}

	return body, env.DetailType, nil
}
