package minecraft

import "errors"

// Transport errors.
var (
	ErrTransportTimeout     = errors.New("server did not respond before the query timed out")
	ErrTransportClosedEmpty = errors.New("server failed to respond or denied the request")
	ErrDial                 = errors.New("could not open a connection to the server")
)

// Decoding errors.
var (
	ErrProtocolMismatch = errors.New("unexpected packet id")
	ErrMalformedJSON    = errors.New("JSON parser discarded packet (corrupt JSON)")
	ErrTruncated        = errors.New("response ended before the packet was complete")
)
