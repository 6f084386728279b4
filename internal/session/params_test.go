package session

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeviceType(t *testing.T) {
	tests := []struct {
		raw     string
		want    DeviceType
		wantErr bool
	}{
		{raw: "web", want: DeviceTypeWeb},
		{raw: "cli", want: DeviceTypeCLI},
		{raw: "WEB", wantErr: true},
		{raw: " web", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "mobile", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseDeviceType(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidDeviceType))
				var verr *ValidationError
				assert.True(t, errors.As(err, &verr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCallbackQuery(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		want        CallbackParams
		wantFields  []string
		wantDevType bool
	}{
		{
			name:  "valid web",
			query: "session_id=s1&code=c1&state=st1&device_type=web",
			want:  CallbackParams{SessionID: "s1", Code: "c1", State: "st1", DeviceType: DeviceTypeWeb},
		},
		{
			name:  "valid cli with leading question mark",
			query: "?session_id=s2&code=c2&state=st2&device_type=cli",
			want:  CallbackParams{SessionID: "s2", Code: "c2", State: "st2", DeviceType: DeviceTypeCLI},
		},
		{
			name:  "repeated with identical values",
			query: "session_id=s1&session_id=s1&code=c1&state=st1&device_type=web",
			want:  CallbackParams{SessionID: "s1", Code: "c1", State: "st1", DeviceType: DeviceTypeWeb},
		},
		{
			name:       "missing code",
			query:      "session_id=s1&state=st1&device_type=web",
			wantFields: []string{ParamCode},
		},
		{
			name:        "invalid device type",
			query:       "session_id=s1&code=c1&state=st1&device_type=tablet",
			wantFields:  []string{ParamDeviceType},
			wantDevType: true,
		},
		{
			name:       "empty state",
			query:      "session_id=s1&code=c1&state=&device_type=web",
			wantFields: []string{ParamState},
		},
		{
			name:       "conflicting session id",
			query:      "session_id=a&session_id=b&code=c1&state=st1&device_type=web",
			wantFields: []string{ParamSessionID},
		},
		{
			name:       "empty query reports every field",
			query:      "",
			wantFields: []string{ParamSessionID, ParamCode, ParamState, ParamDeviceType},
		},
		{
			name:       "malformed query",
			query:      "session_id=%zz",
			wantFields: []string{"query"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCallbackQuery(tt.query)
			if len(tt.wantFields) == 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}

			require.Error(t, err)
			assert.Equal(t, CallbackParams{}, got, "no partial params on failure")

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Len(t, verr.Problems, len(tt.wantFields))
			for _, f := range tt.wantFields {
				assert.True(t, verr.HasField(f), "expected problem for %s", f)
			}
			assert.Equal(t, tt.wantDevType, errors.Is(err, ErrInvalidDeviceType))
		})
	}
}

func TestParseCallbackParams_Idempotent(t *testing.T) {
	values := url.Values{
		ParamSessionID:  {"s1"},
		ParamCode:       {"c1"},
		ParamState:      {"st1"},
		ParamDeviceType: {"cli"},
	}

	first, err1 := ParseCallbackParams(values)
	second, err2 := ParseCallbackParams(values)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, first, second)

	bad := url.Values{ParamCode: {"c1"}}
	_, errA := ParseCallbackParams(bad)
	_, errB := ParseCallbackParams(bad)
	assert.Equal(t, errA, errB)
}

func TestCallbackParams_QueryRoundTrip(t *testing.T) {
	p := CallbackParams{SessionID: "s 1", Code: "c&1", State: "st=1", DeviceType: DeviceTypeWeb}

	got, err := ParseCallbackParams(p.Query())
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Problems: []FieldProblem{
		{Field: ParamCode, Reason: reasonMissing},
		{Field: ParamState, Reason: reasonEmpty},
	}}
	assert.Equal(t, "invalid callback parameters: code: missing; state: empty", err.Error())
	assert.False(t, errors.Is(err, ErrInvalidDeviceType))
}
