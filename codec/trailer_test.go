package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func genericTrailerBytes(status PayloadStatus, validPayloadSize uint64, specificSize uint16, blockID uint64) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, trailerMagic)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0)) // reserved
	_ = binary.Write(&buf, binary.LittleEndian, genericTrailerSize+specificSize)
	_ = binary.Write(&buf, binary.LittleEndian, blockID)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0)) // reserved
	_ = binary.Write(&buf, binary.LittleEndian, uint16(status))
	_ = binary.Write(&buf, binary.LittleEndian, validPayloadSize)
	return buf.Bytes()
}

func TestParseTrailer_RoundTrip(t *testing.T) {
	generic := genericTrailerBytes(StatusSuccess, 8294400, 4, 51)
	var specific bytes.Buffer
	_ = binary.Write(&specific, binary.LittleEndian, uint32(2160))
	buf := append(generic, specific.Bytes()...)

	trailer, err := ParseTrailer(buf)
	if err != nil {
		t.Fatalf("ParseTrailer: %v", err)
	}
	if trailer.PayloadStatus() != StatusSuccess {
		t.Errorf("payload_status = %v, want Success", trailer.PayloadStatus())
	}
	if trailer.ValidPayloadSize() != 8294400 {
		t.Errorf("valid_payload_size = %d, want 8294400", trailer.ValidPayloadSize())
	}

	var it ImageTrailer
	if err := trailer.SpecificTrailerAs(&it); err != nil {
		t.Fatalf("SpecificTrailerAs: %v", err)
	}
	if it.ActualHeight != 2160 {
		t.Errorf("actual_height = %d, want 2160", it.ActualHeight)
	}
}

func TestParseTrailer_BadMagic(t *testing.T) {
	buf := genericTrailerBytes(StatusSuccess, 0, 0, 1)
	buf[0] ^= 0xFF
	if _, err := ParseTrailer(buf); !errors.Is(err, ErrInvalidPacket) {
		t.Fatalf("err = %v, want ErrInvalidPacket", err)
	}
}

func TestParseTrailer_ShortRead(t *testing.T) {
	_, err := ParseTrailer(make([]byte, genericTrailerSize-1))
	if !errors.Is(err, ErrInvalidPacket) {
		t.Fatalf("err = %v, want ErrInvalidPacket", err)
	}
}

func TestParseTrailer_NonZeroStatus(t *testing.T) {
	buf := genericTrailerBytes(PayloadStatus(0x8001), 0, 0, 1)
	trailer, err := ParseTrailer(buf)
	if err != nil {
		t.Fatalf("ParseTrailer: %v", err)
	}
	if trailer.PayloadStatus() == StatusSuccess {
		t.Fatalf("expected non-success status")
	}
}
