package stream

import "time"

// Params carries the strongly-typed sizing parameters the streaming loop
// needs to issue correctly-sized reads against the transport. Neither
// Handle nor StreamingLoop validate these values; degenerate fields
// (zero leader/trailer size, zero maximum payload size) simply cause
// downstream reads to fail naturally.
type Params struct {
	LeaderSize        uint
	TrailerSize       uint
	PayloadSize       uint
	PayloadCount      uint
	PayloadFinal1Size uint
	PayloadFinal2Size uint
	Timeout           time.Duration
}

// MaximumPayloadSize is the upper bound of payload size calculated from
// the current Params values. The camera's actual per-frame payload may be
// smaller for variable-size streams; Trailer.ValidPayloadSize carries the
// real count.
func (p Params) MaximumPayloadSize() uint {
	return p.PayloadSize*p.PayloadCount + p.PayloadFinal1Size + p.PayloadFinal2Size
}

// DeviceRegisters models the six register reads and one timeout read that
// populate Params from a device's control channel (the Streaming Interface
// Register Map). The core does not implement this interface; it is the
// boundary a higher-level control-channel layer satisfies.
type DeviceRegisters interface {
	MaximumLeaderSize() (uint, error)
	MaximumTrailerSize() (uint, error)
	PayloadTransferSize() (uint, error)
	PayloadTransferCount() (uint, error)
	PayloadFinalTransfer1Size() (uint, error)
	PayloadFinalTransfer2Size() (uint, error)
	MaximumDeviceResponseTime() (time.Duration, error)
}

// ParamsFromDevice constructs Params by reading the device's register set.
// It is thin boundary glue: no invariant on the resulting values is
// enforced here, matching Params' own contract.
func ParamsFromDevice(d DeviceRegisters) (Params, error) {
	leaderSize, err := d.MaximumLeaderSize()
	if err != nil {
		return Params{}, err
	}
	trailerSize, err := d.MaximumTrailerSize()
	if err != nil {
		return Params{}, err
	}
	payloadSize, err := d.PayloadTransferSize()
	if err != nil {
		return Params{}, err
	}
	payloadCount, err := d.PayloadTransferCount()
	if err != nil {
		return Params{}, err
	}
	final1, err := d.PayloadFinalTransfer1Size()
	if err != nil {
		return Params{}, err
	}
	final2, err := d.PayloadFinalTransfer2Size()
	if err != nil {
		return Params{}, err
	}
	timeout, err := d.MaximumDeviceResponseTime()
	if err != nil {
		return Params{}, err
	}

	return Params{
		LeaderSize:        leaderSize,
		TrailerSize:       trailerSize,
		PayloadSize:       payloadSize,
		PayloadCount:      payloadCount,
		PayloadFinal1Size: final1,
		PayloadFinal2Size: final2,
		Timeout:           timeout,
	}, nil
}
