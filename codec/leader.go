package codec

import (
	"encoding/binary"
	"fmt"
)

// leaderMagic is the fixed 4-byte tag that opens every leader.
const leaderMagic uint32 = 0x4C563355

// genericLeaderSize is the number of bytes the generic leader consumes;
// everything after it is the specific leader's raw bytes.
const genericLeaderSize = 20

// Leader is a borrowed view over a caller-owned buffer. It must not
// outlive the buffer it was parsed from.
type Leader struct {
	leaderSize  uint16
	blockID     uint64
	payloadType PayloadType
	rawSpecific []byte
}

// ParseLeader parses the generic leader from buf. The specific leader
// bytes are retained as an unparsed slice into buf; ParseLeader never
// copies them.
func ParseLeader(buf []byte) (Leader, error) {
	if len(buf) < genericLeaderSize {
		return Leader{}, fmt.Errorf("short read: need %d bytes, got %d: %w", genericLeaderSize, len(buf), ErrInvalidPacket)
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != leaderMagic {
		return Leader{}, fmt.Errorf("invalid prefix magic: %w", ErrInvalidPacket)
	}

	// buf[4:6] reserved, discarded.
	leaderSize := binary.LittleEndian.Uint16(buf[6:8])
	blockID := binary.LittleEndian.Uint64(buf[8:16])
	// buf[16:18] reserved, discarded.
	payloadType, err := parsePayloadType(binary.LittleEndian.Uint16(buf[18:20]))
	if err != nil {
		return Leader{}, err
	}

	return Leader{
		leaderSize:  leaderSize,
		blockID:     blockID,
		payloadType: payloadType,
		rawSpecific: buf[genericLeaderSize:],
	}, nil
}

// LeaderSize is the total byte count of the generic plus specific leader.
func (l Leader) LeaderSize() uint16 { return l.leaderSize }

// BlockID is the device-assigned monotonic frame identifier.
func (l Leader) BlockID() uint64 { return l.blockID }

// PayloadType names the variant of the specific leader that follows.
func (l Leader) PayloadType() PayloadType { return l.payloadType }

// SpecificLeader decodes the type-specific portion of a leader. Variants
// are ImageLeader, ImageExtendedChunkLeader and ChunkLeader.
type SpecificLeader interface {
	unmarshalLeader(buf []byte) error
}

// SpecificLeaderAs decodes the specific leader bytes into dst. Choosing a
// variant inconsistent with PayloadType is the caller's responsibility;
// PayloadBuilder always picks the matching variant.
func (l Leader) SpecificLeaderAs(dst SpecificLeader) error {
	return dst.unmarshalLeader(l.rawSpecific)
}

const imageLeaderSize = 32

// ImageLeader is the specific leader for Image payloads.
type ImageLeader struct {
	TimestampNS uint64
	PixelFormat uint32
	Width       uint32
	Height      uint32
	XOffset     uint32
	YOffset     uint32
	XPadding    uint16
}

func (l *ImageLeader) unmarshalLeader(buf []byte) error {
	if len(buf) < imageLeaderSize {
		return fmt.Errorf("short read: need %d bytes for image leader, got %d: %w", imageLeaderSize, len(buf), ErrInvalidPacket)
	}
	l.TimestampNS = binary.LittleEndian.Uint64(buf[0:8])
	l.PixelFormat = binary.LittleEndian.Uint32(buf[8:12])
	l.Width = binary.LittleEndian.Uint32(buf[12:16])
	l.Height = binary.LittleEndian.Uint32(buf[16:20])
	l.XOffset = binary.LittleEndian.Uint32(buf[20:24])
	l.YOffset = binary.LittleEndian.Uint32(buf[24:28])
	l.XPadding = binary.LittleEndian.Uint16(buf[28:30])
	// buf[30:32] reserved, discarded.
	return nil
}

// ImageExtendedChunkLeader is structurally identical to ImageLeader.
type ImageExtendedChunkLeader struct {
	TimestampNS uint64
	PixelFormat uint32
	Width       uint32
	Height      uint32
	XOffset     uint32
	YOffset     uint32
	XPadding    uint16
}

func (l *ImageExtendedChunkLeader) unmarshalLeader(buf []byte) error {
	var il ImageLeader
	if err := il.unmarshalLeader(buf); err != nil {
		return err
	}
	*l = ImageExtendedChunkLeader(il)
	return nil
}

// ChunkLeader is the specific leader for Chunk-only payloads.
type ChunkLeader struct {
	TimestampNS uint64
}

func (l *ChunkLeader) unmarshalLeader(buf []byte) error {
	if len(buf) < 8 {
		return fmt.Errorf("short read: need 8 bytes for chunk leader, got %d: %w", len(buf), ErrInvalidPacket)
	}
	l.TimestampNS = binary.LittleEndian.Uint64(buf[0:8])
	return nil
}
