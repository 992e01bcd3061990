package codec

import (
	"encoding/binary"
	"fmt"
)

// trailerMagic is the fixed 4-byte tag that opens every trailer. It is
// distinct from leaderMagic.
const trailerMagic uint32 = 0x58343353

// genericTrailerSize is the number of bytes the generic trailer consumes,
// including the valid_payload_size field shared by every payload kind;
// everything after it is the specific trailer's raw bytes.
const genericTrailerSize = 28

// Trailer is a borrowed view over a caller-owned buffer. It must not
// outlive the buffer it was parsed from.
type Trailer struct {
	trailerSize      uint16
	blockID          uint64
	payloadStatus    PayloadStatus
	validPayloadSize uint64
	rawSpecific      []byte
}

// ParseTrailer parses the generic trailer from buf. The specific trailer
// bytes are retained as an unparsed slice into buf; ParseTrailer never
// copies them.
func ParseTrailer(buf []byte) (Trailer, error) {
	if len(buf) < genericTrailerSize {
		return Trailer{}, fmt.Errorf("short read: need %d bytes, got %d: %w", genericTrailerSize, len(buf), ErrInvalidPacket)
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != trailerMagic {
		return Trailer{}, fmt.Errorf("invalid prefix magic: %w", ErrInvalidPacket)
	}

	// buf[4:6] reserved, discarded.
	trailerSize := binary.LittleEndian.Uint16(buf[6:8])
	blockID := binary.LittleEndian.Uint64(buf[8:16])
	// buf[16:18] reserved, discarded.
	payloadStatus := PayloadStatus(binary.LittleEndian.Uint16(buf[18:20]))
	validPayloadSize := binary.LittleEndian.Uint64(buf[20:28])

	return Trailer{
		trailerSize:      trailerSize,
		blockID:          blockID,
		payloadStatus:    payloadStatus,
		validPayloadSize: validPayloadSize,
		rawSpecific:      buf[genericTrailerSize:],
	}, nil
}

// TrailerSize is the total byte count of the generic plus specific trailer.
func (t Trailer) TrailerSize() uint16 { return t.trailerSize }

// BlockID is the device-assigned monotonic frame identifier, mirrored from
// the leader for cross-checking.
func (t Trailer) BlockID() uint64 { return t.blockID }

// PayloadStatus decodes the status field. Only StatusSuccess allows a
// payload to be built downstream.
func (t Trailer) PayloadStatus() PayloadStatus { return t.payloadStatus }

// ValidPayloadSize is the portion of the payload buffer that contains
// meaningful data for this frame.
func (t Trailer) ValidPayloadSize() uint64 { return t.validPayloadSize }

// SpecificTrailer decodes the type-specific portion of a trailer.
// Variants are ImageTrailer, ImageExtendedChunkTrailer and ChunkTrailer.
type SpecificTrailer interface {
	unmarshalTrailer(buf []byte) error
}

// SpecificTrailerAs decodes the specific trailer bytes into dst.
func (t Trailer) SpecificTrailerAs(dst SpecificTrailer) error {
	return dst.unmarshalTrailer(t.rawSpecific)
}

const imageTrailerSize = 4

// ImageTrailer is the specific trailer for Image payloads.
type ImageTrailer struct {
	ActualHeight uint32
}

func (t *ImageTrailer) unmarshalTrailer(buf []byte) error {
	if len(buf) < imageTrailerSize {
		return fmt.Errorf("short read: need %d bytes for image trailer, got %d: %w", imageTrailerSize, len(buf), ErrInvalidPacket)
	}
	t.ActualHeight = binary.LittleEndian.Uint32(buf[0:4])
	return nil
}

// ImageExtendedChunkTrailer is structurally identical to ImageTrailer.
type ImageExtendedChunkTrailer struct {
	ActualHeight uint32
}

func (t *ImageExtendedChunkTrailer) unmarshalTrailer(buf []byte) error {
	var it ImageTrailer
	if err := it.unmarshalTrailer(buf); err != nil {
		return err
	}
	*t = ImageExtendedChunkTrailer(it)
	return nil
}

// ChunkTrailer carries no specific fields.
type ChunkTrailer struct{}

func (t *ChunkTrailer) unmarshalTrailer(buf []byte) error { return nil }
