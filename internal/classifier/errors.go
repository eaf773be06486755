package classifier

import "errors"

var (
	// ErrGatewayUnavailable covers a missing credential, transport failures and non-success responses.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	// ErrVerdictUnparseable means no valid verdict could be extracted from the gateway output.
	ErrVerdictUnparseable = errors.New("unparseable response")
)
