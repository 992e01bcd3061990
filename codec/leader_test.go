package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func genericLeaderBytes(payloadType PayloadType, specificSize uint16, blockID uint64) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, leaderMagic)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0)) // reserved
	_ = binary.Write(&buf, binary.LittleEndian, genericLeaderSize+specificSize)
	_ = binary.Write(&buf, binary.LittleEndian, blockID)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0)) // reserved
	_ = binary.Write(&buf, binary.LittleEndian, uint16(payloadType))
	return buf.Bytes()
}

func imageLeaderBytes(timestamp uint64, pixFmt, width, height, xOff, yOff uint32, xPad uint16) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, timestamp)
	_ = binary.Write(&buf, binary.LittleEndian, pixFmt)
	_ = binary.Write(&buf, binary.LittleEndian, width)
	_ = binary.Write(&buf, binary.LittleEndian, height)
	_ = binary.Write(&buf, binary.LittleEndian, xOff)
	_ = binary.Write(&buf, binary.LittleEndian, yOff)
	_ = binary.Write(&buf, binary.LittleEndian, xPad)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0)) // reserved
	return buf.Bytes()
}

// TestParseGenericLeader covers the literal scenario from spec.md §8.1.
func TestParseGenericLeader(t *testing.T) {
	buf := []byte{
		0x55, 0x33, 0x56, 0x4C, // magic
		0x00, 0x00, // reserved
		0x14, 0x00, // leader_size = 20
		0x33, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // block_id = 51
		0x00, 0x00, // reserved
		0x01, 0x00, // payload_type = Image
	}

	leader, err := ParseLeader(buf)
	if err != nil {
		t.Fatalf("ParseLeader: %v", err)
	}
	if leader.LeaderSize() != 20 {
		t.Errorf("leader_size = %d, want 20", leader.LeaderSize())
	}
	if leader.BlockID() != 51 {
		t.Errorf("block_id = %d, want 51", leader.BlockID())
	}
	if leader.PayloadType() != PayloadTypeImage {
		t.Errorf("payload_type = %v, want Image", leader.PayloadType())
	}
}

// TestParseGenericLeader_BadMagic covers scenario §8.2.
func TestParseGenericLeader_BadMagic(t *testing.T) {
	buf := []byte{
		0x56, 0x33, 0x56, 0x4C,
		0x00, 0x00, 0x14, 0x00,
		0x33, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x01, 0x00,
	}
	_, err := ParseLeader(buf)
	if !errors.Is(err, ErrInvalidPacket) {
		t.Fatalf("err = %v, want ErrInvalidPacket", err)
	}
}

// TestParseGenericLeader_UnknownPayloadType covers scenario §8.3.
func TestParseGenericLeader_UnknownPayloadType(t *testing.T) {
	buf := []byte{
		0x55, 0x33, 0x56, 0x4C,
		0x00, 0x00, 0x14, 0x00,
		0x33, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x02, 0x00,
	}
	_, err := ParseLeader(buf)
	if !errors.Is(err, ErrInvalidPacket) {
		t.Fatalf("err = %v, want ErrInvalidPacket", err)
	}
}

func TestParseLeader_ShortRead(t *testing.T) {
	_, err := ParseLeader(make([]byte, 19))
	if !errors.Is(err, ErrInvalidPacket) {
		t.Fatalf("err = %v, want ErrInvalidPacket", err)
	}
}

// TestParseLeader_AllPayloadTypes is P2: exactly {0x0001, 0x4001, 0x4000}
// are accepted; anything else fails.
func TestParseLeader_AllPayloadTypes(t *testing.T) {
	ok := []uint16{0x0001, 0x4001, 0x4000}
	for _, v := range ok {
		buf := genericLeaderBytes(PayloadType(v), 0, 1)
		if _, err := ParseLeader(buf); err != nil {
			t.Errorf("payload type 0x%04x: unexpected error: %v", v, err)
		}
	}

	bad := []uint16{0x0000, 0x0002, 0x4002, 0xFFFF}
	for _, v := range bad {
		buf := genericLeaderBytes(PayloadType(v), 0, 1)
		if _, err := ParseLeader(buf); !errors.Is(err, ErrInvalidPacket) {
			t.Errorf("payload type 0x%04x: err = %v, want ErrInvalidPacket", v, err)
		}
	}
}

// TestParseLeader_SingleByteMagicMutation is the P1 property: any single
// byte mutation to the magic prefix must fail parsing.
func TestParseLeader_SingleByteMagicMutation(t *testing.T) {
	good := genericLeaderBytes(PayloadTypeImage, 0, 1)
	for i := 0; i < 4; i++ {
		mutated := append([]byte(nil), good...)
		mutated[i] ^= 0xFF
		if _, err := ParseLeader(mutated); !errors.Is(err, ErrInvalidPacket) {
			t.Errorf("byte %d mutated: err = %v, want ErrInvalidPacket", i, err)
		}
	}
}

func TestImageLeader_RoundTrip(t *testing.T) {
	generic := genericLeaderBytes(PayloadTypeImage, imageLeaderSize, 51)
	specific := imageLeaderBytes(100, 0x01080001, 3840, 2160, 0, 0, 0)
	buf := append(generic, specific...)

	leader, err := ParseLeader(buf)
	if err != nil {
		t.Fatalf("ParseLeader: %v", err)
	}
	if leader.PayloadType() != PayloadTypeImage {
		t.Fatalf("payload_type = %v, want Image", leader.PayloadType())
	}

	var il ImageLeader
	if err := leader.SpecificLeaderAs(&il); err != nil {
		t.Fatalf("SpecificLeaderAs: %v", err)
	}
	if il.TimestampNS != 100 {
		t.Errorf("timestamp = %d, want 100", il.TimestampNS)
	}
	if il.Width != 3840 || il.Height != 2160 {
		t.Errorf("dimensions = %dx%d, want 3840x2160", il.Width, il.Height)
	}
	if il.XOffset != 0 || il.YOffset != 0 || il.XPadding != 0 {
		t.Errorf("unexpected offsets/padding: %+v", il)
	}
}

func TestSpecificLeaderAs_ShortBuffer(t *testing.T) {
	generic := genericLeaderBytes(PayloadTypeImage, 4, 1)
	buf := append(generic, []byte{0, 0, 0, 0}...)

	leader, err := ParseLeader(buf)
	if err != nil {
		t.Fatalf("ParseLeader: %v", err)
	}
	var il ImageLeader
	if err := leader.SpecificLeaderAs(&il); !errors.Is(err, ErrInvalidPacket) {
		t.Fatalf("err = %v, want ErrInvalidPacket", err)
	}
}

func TestChunkLeader_RoundTrip(t *testing.T) {
	generic := genericLeaderBytes(PayloadTypeChunk, 8, 7)
	var specific bytes.Buffer
	_ = binary.Write(&specific, binary.LittleEndian, uint64(42))
	buf := append(generic, specific.Bytes()...)

	leader, err := ParseLeader(buf)
	if err != nil {
		t.Fatalf("ParseLeader: %v", err)
	}
	var cl ChunkLeader
	if err := leader.SpecificLeaderAs(&cl); err != nil {
		t.Fatalf("SpecificLeaderAs: %v", err)
	}
	if cl.TimestampNS != 42 {
		t.Errorf("timestamp = %d, want 42", cl.TimestampNS)
	}
}
