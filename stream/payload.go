package stream

import "time"

// PayloadKind mirrors codec.PayloadType for the logical Payload a consumer
// sees, decoupled from the wire encoding.
type PayloadKind int

const (
	PayloadKindImage PayloadKind = iota
	PayloadKindImageExtendedChunk
	PayloadKindChunk
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadKindImage:
		return "Image"
	case PayloadKindImageExtendedChunk:
		return "ImageExtendedChunk"
	case PayloadKindChunk:
		return "Chunk"
	default:
		return "Unknown"
	}
}

// ImageInfo describes the image carried by an Image or ImageExtendedChunk
// payload.
type ImageInfo struct {
	Width       uint32
	Height      uint32
	XOffset     uint32
	YOffset     uint32
	PixelFormat uint32
	ImageSize   uint64
}

// Payload is the logical, fully-reconstructed unit StreamingLoop emits.
// Bytes owns a reusable byte buffer; consumers that want to retain data
// beyond recycling the Payload back through BufferChannel must copy it.
type Payload struct {
	ID               uint64
	Kind             PayloadKind
	ImageInfo        *ImageInfo
	Bytes            []byte
	ValidPayloadSize uint64
	Timestamp        time.Duration
}
