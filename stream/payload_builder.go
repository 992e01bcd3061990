package stream

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/kstaniek/go-u3v-stream/codec"
)

// chunkIDLen and chunkSizeLen are the two fixed-width fields that close
// out every chunk record in an ImageExtendedChunk payload's tail.
const (
	chunkIDLen   = 4
	chunkSizeLen = 4
)

// BuildPayload converts a parsed (leader, payload bytes, trailer) triple
// into a logical Payload. payload aliases the caller's buffer; BuildPayload
// never copies it.
func BuildPayload(leader codec.Leader, payload []byte, trailer codec.Trailer) (Payload, error) {
	if trailer.PayloadStatus() != codec.StatusSuccess {
		return Payload{}, fmt.Errorf("trailer status indicates error: %v: %w", trailer.PayloadStatus(), ErrInvalidPayload)
	}

	switch leader.PayloadType() {
	case codec.PayloadTypeImage:
		return buildImagePayload(leader, payload, trailer)
	case codec.PayloadTypeImageExtendedChunk:
		return buildImageExtendedChunkPayload(leader, payload, trailer)
	case codec.PayloadTypeChunk:
		return buildChunkPayload(leader, payload, trailer)
	default:
		// ParseLeader never returns an unrecognized PayloadType; this path
		// only guards against internal misuse.
		return Payload{}, fmt.Errorf("unhandled payload type %v: %w", leader.PayloadType(), ErrInvalidPayload)
	}
}

func buildImagePayload(leader codec.Leader, payload []byte, trailer codec.Trailer) (Payload, error) {
	var il codec.ImageLeader
	if err := leader.SpecificLeaderAs(&il); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", err, ErrInvalidPayload)
	}
	var it codec.ImageTrailer
	if err := trailer.SpecificTrailerAs(&it); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", err, ErrInvalidPayload)
	}

	validPayloadSize := trailer.ValidPayloadSize()
	return Payload{
		ID:   leader.BlockID(),
		Kind: PayloadKindImage,
		ImageInfo: &ImageInfo{
			Width:       il.Width,
			Height:      it.ActualHeight,
			XOffset:     il.XOffset,
			YOffset:     il.YOffset,
			PixelFormat: il.PixelFormat,
			ImageSize:   validPayloadSize,
		},
		Bytes:            payload,
		ValidPayloadSize: validPayloadSize,
		Timestamp:        time.Duration(il.TimestampNS) * time.Nanosecond,
	}, nil
}

func buildImageExtendedChunkPayload(leader codec.Leader, payload []byte, trailer codec.Trailer) (Payload, error) {
	var il codec.ImageExtendedChunkLeader
	if err := leader.SpecificLeaderAs(&il); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", err, ErrInvalidPayload)
	}
	var it codec.ImageExtendedChunkTrailer
	if err := trailer.SpecificTrailerAs(&it); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", err, ErrInvalidPayload)
	}

	validPayloadSize := trailer.ValidPayloadSize()
	imageSize, err := walkChunkTail(payload, validPayloadSize)
	if err != nil {
		return Payload{}, err
	}

	return Payload{
		ID:   leader.BlockID(),
		Kind: PayloadKindImageExtendedChunk,
		ImageInfo: &ImageInfo{
			Width:       il.Width,
			Height:      it.ActualHeight,
			XOffset:     il.XOffset,
			YOffset:     il.YOffset,
			PixelFormat: il.PixelFormat,
			ImageSize:   imageSize,
		},
		Bytes:            payload,
		ValidPayloadSize: validPayloadSize,
		Timestamp:        time.Duration(il.TimestampNS) * time.Nanosecond,
	}, nil
}

func buildChunkPayload(leader codec.Leader, payload []byte, trailer codec.Trailer) (Payload, error) {
	var cl codec.ChunkLeader
	if err := leader.SpecificLeaderAs(&cl); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", err, ErrInvalidPayload)
	}
	var ct codec.ChunkTrailer
	if err := trailer.SpecificTrailerAs(&ct); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", err, ErrInvalidPayload)
	}

	return Payload{
		ID:               leader.BlockID(),
		Kind:             PayloadKindChunk,
		ImageInfo:        nil,
		Bytes:            payload,
		ValidPayloadSize: trailer.ValidPayloadSize(),
		Timestamp:        time.Duration(cl.TimestampNS) * time.Nanosecond,
	}, nil
}

// walkChunkTail locates the first chunk's data size by parsing the chunk
// layout backward from offset validPayloadSize. Each chunk record is
// data, then a 4-byte big-endian chunk id, then a 4-byte big-endian chunk
// size. The walk repeatedly subtracts the size field, then the id field
// plus the data it names, until the running offset reaches exactly zero;
// the size read at that point belongs to the first chunk in the payload
// (the last one the reverse walk visits), which is the image payload size.
func walkChunkTail(payload []byte, validPayloadSize uint64) (uint64, error) {
	offset := validPayloadSize
	for {
		if offset < chunkSizeLen {
			return 0, fmt.Errorf("failed to parse chunk data: size field missing: %w", ErrInvalidPayload)
		}
		offset -= chunkSizeLen
		if offset+chunkSizeLen > uint64(len(payload)) {
			return 0, fmt.Errorf("failed to parse chunk data: size field out of range: %w", ErrInvalidPayload)
		}
		dataSize := uint64(binary.BigEndian.Uint32(payload[offset : offset+chunkSizeLen]))

		if offset < chunkIDLen+dataSize {
			return 0, fmt.Errorf("failed to parse chunk data: chunk data size is smaller than specified size: %w", ErrInvalidPayload)
		}
		offset -= chunkIDLen + dataSize

		if offset == 0 {
			return dataSize, nil
		}
	}
}
