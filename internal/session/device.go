package session

// DeviceType classifies the client context that started a sign-in. It
// selects what happens once the handshake completes.
type DeviceType string

const (
	// DeviceTypeWeb is the browser flow: a successful callback navigates to
	// the dashboard.
	DeviceTypeWeb DeviceType = "web"
	// DeviceTypeCLI is the out-of-band flow: the callback page completes the
	// handshake and the terminal observes completion by polling.
	DeviceTypeCLI DeviceType = "cli"
)

// String implements fmt.Stringer.
func (d DeviceType) String() string {
	return string(d)
}

// Valid reports whether d is one of the known device types.
func (d DeviceType) Valid() bool {
	return d == DeviceTypeWeb || d == DeviceTypeCLI
}

// ParseDeviceType validates a raw value. Matching is exact; "WEB" or " web"
// are rejected the same way an unknown value is.
func ParseDeviceType(raw string) (DeviceType, error) {
	d := DeviceType(raw)
	if !d.Valid() {
		return "", &ValidationError{Problems: []FieldProblem{{Field: ParamDeviceType, Reason: reasonDeviceType}}}
	}
	return d, nil
}
