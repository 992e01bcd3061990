package codec

import "errors"

// ErrInvalidPacket is returned when a leader or trailer buffer is
// malformed: too short, carrying the wrong magic prefix, or naming an
// unknown payload type.
var ErrInvalidPacket = errors.New("invalid packet")
