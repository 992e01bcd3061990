package stream

import (
	"github.com/kstaniek/go-u3v-stream/codec"
	"github.com/kstaniek/go-u3v-stream/internal/metrics"
)

// runStreamingLoop implements the per-iteration protocol: acquire a
// payload buffer, read leader/payload/trailer, assemble a Payload, emit it.
// It returns when cancel is closed. The caller (Handle.runWorker) holds the
// transport mutex for the loop's entire lifetime.
func runStreamingLoop(t Transport, params Params, bc *BufferChannel, cancel <-chan struct{}) {
	maxPayload := params.MaximumPayloadSize()
	leaderBuf := make([]byte, params.LeaderSize)
	trailerBuf := make([]byte, params.TrailerSize)

	var buf Payload
	haveBuf := false

	for {
		select {
		case <-cancel:
			return
		default:
		}

		if !haveBuf {
			buf = acquireBuffer(bc, maxPayload)
			haveBuf = true
		}

		if _, err := t.Recv(leaderBuf, params.Timeout); err != nil {
			// Leader-stage errors (including idle timeouts) are the common
			// case on a stream with no frames in flight; stay silent and
			// keep the buffer for the next attempt.
			continue
		}
		leader, err := codec.ParseLeader(leaderBuf)
		if err != nil {
			// A malformed leader is as uninformative as a failed recv —
			// same silent-continue treatment, to avoid flooding logs and
			// the consumer with garbage read off a desynced link.
			continue
		}

		n, err := readPayloadSegments(t, params, buf.Bytes)
		if err != nil {
			metrics.IncPayloadError(metrics.StagePayload)
			bc.trySend(Result{Err: err})
			continue
		}

		if _, err := t.Recv(trailerBuf, params.Timeout); err != nil {
			metrics.IncPayloadError(metrics.StageTrailer)
			bc.trySend(Result{Err: err})
			continue
		}

		trailer, err := codec.ParseTrailer(trailerBuf)
		if err != nil {
			metrics.IncPayloadError(metrics.StageTrailer)
			bc.trySend(Result{Err: err})
			continue
		}

		payload, err := BuildPayload(leader, buf.Bytes[:n], trailer)
		if err != nil {
			metrics.IncPayloadError(metrics.StageBuild)
			bc.trySend(Result{Err: err})
			haveBuf = false // builder took ownership; discard on failure too
			continue
		}

		metrics.IncPayloadEmitted(metricsKindLabel(payload.Kind))
		bc.trySend(Result{Payload: payload})
		haveBuf = false
	}
}

// acquireBuffer prefers a recycled buffer, resizing it with zero-fill if it
// doesn't match maxPayload, falling back to a fresh zero-initialised
// allocation.
func acquireBuffer(bc *BufferChannel, maxPayload uint) Payload {
	if p, ok := bc.tryRecvRecycled(); ok {
		if uint(len(p.Bytes)) != maxPayload {
			p.Bytes = make([]byte, maxPayload)
		}
		metrics.IncBufferPoolRecycle()
		return p
	}
	metrics.IncBufferPoolAlloc()
	return Payload{Bytes: make([]byte, maxPayload)}
}

// readPayloadSegments reads payload_count fixed-size chunks followed by the
// two final transfers into consecutive regions of dst, skipping any segment
// of length zero. It returns the total bytes written.
func readPayloadSegments(t Transport, params Params, dst []byte) (uint, error) {
	offset := uint(0)

	for i := uint(0); i < params.PayloadCount; i++ {
		if params.PayloadSize == 0 {
			continue
		}
		if _, err := t.Recv(dst[offset:offset+params.PayloadSize], params.Timeout); err != nil {
			return 0, err
		}
		offset += params.PayloadSize
	}

	if params.PayloadFinal1Size > 0 {
		if _, err := t.Recv(dst[offset:offset+params.PayloadFinal1Size], params.Timeout); err != nil {
			return 0, err
		}
		offset += params.PayloadFinal1Size
	}

	if params.PayloadFinal2Size > 0 {
		if _, err := t.Recv(dst[offset:offset+params.PayloadFinal2Size], params.Timeout); err != nil {
			return 0, err
		}
		offset += params.PayloadFinal2Size
	}

	return offset, nil
}

func metricsKindLabel(k PayloadKind) string {
	switch k {
	case PayloadKindImage:
		return metrics.KindImage
	case PayloadKindImageExtendedChunk:
		return metrics.KindImageExtendedChunk
	case PayloadKindChunk:
		return metrics.KindChunk
	default:
		return "unknown"
	}
}
