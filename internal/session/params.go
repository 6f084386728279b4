package session

import (
	"net/url"
	"strings"
)

// Query parameter names of the provider callback.
const (
	ParamSessionID  = "session_id"
	ParamCode       = "code"
	ParamState      = "state"
	ParamDeviceType = "device_type"
)

// CallbackParams are the four values the identity provider hands back on
// its redirect. All are required and non-empty. A value is built once per
// callback and never mutated.
type CallbackParams struct {
	SessionID  string
	Code       string
	State      string
	DeviceType DeviceType
}

// Query re-encodes the parameters for the token exchange request.
func (p CallbackParams) Query() url.Values {
	v := url.Values{}
	v.Set(ParamSessionID, p.SessionID)
	v.Set(ParamCode, p.Code)
	v.Set(ParamState, p.State)
	v.Set(ParamDeviceType, string(p.DeviceType))
	return v
}

// ParseCallbackQuery parses a raw query string (with or without the leading
// "?") and validates it with ParseCallbackParams.
func ParseCallbackQuery(rawQuery string) (CallbackParams, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return CallbackParams{}, &ValidationError{Problems: []FieldProblem{{Field: "query", Reason: reasonMalformed}}}
	}
	return ParseCallbackParams(values)
}

// ParseCallbackParams validates the callback fields. It fails closed: every
// problem is collected into one *ValidationError and no partially filled
// CallbackParams is ever returned.
func ParseCallbackParams(values url.Values) (CallbackParams, error) {
	var problems []FieldProblem

	field := func(name string) string {
		v, reason := singleValue(values[name])
		if reason != "" {
			problems = append(problems, FieldProblem{Field: name, Reason: reason})
		}
		return v
	}

	p := CallbackParams{
		SessionID: field(ParamSessionID),
		Code:      field(ParamCode),
		State:     field(ParamState),
	}

	if raw := field(ParamDeviceType); raw != "" {
		dt, err := ParseDeviceType(raw)
		if err != nil {
			problems = append(problems, FieldProblem{Field: ParamDeviceType, Reason: reasonDeviceType})
		}
		p.DeviceType = dt
	}

	if len(problems) > 0 {
		return CallbackParams{}, &ValidationError{Problems: problems}
	}
	return p, nil
}

// singleValue returns the value of a parameter and, if it is unusable, the
// reason why. A parameter repeated with the same value is accepted.
func singleValue(vals []string) (string, string) {
	if len(vals) == 0 {
		return "", reasonMissing
	}
	first := vals[0]
	for _, v := range vals[1:] {
		if v != first {
			return "", reasonConflicting
		}
	}
	if first == "" {
		return "", reasonEmpty
	}
	return first, ""
}
