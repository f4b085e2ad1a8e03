package weighment

import "context"

// Capturer produces an encoded still image captioned with the farmer name
// and vehicle plate. It returns an error wrapping ErrCaptureUnavailable
// when no frame can be taken.
type Capturer interface {
	Capture(ctx context.Context, farmerName, vehiclePlate string) ([]byte, error)
}
