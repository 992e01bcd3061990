package serialtransport

import (
	"errors"
	"testing"
	"time"
)

// fakePort feeds reads back in caller-specified chunks, simulating a serial
// driver that returns short reads bounded by its own ReadTimeout.
type fakePort struct {
	chunks [][]byte
	err    error
	closed bool
}

func (f *fakePort) Read(p []byte) (int, error) {
	if len(f.chunks) == 0 {
		if f.err != nil {
			return 0, f.err
		}
		return 0, nil
	}
	chunk := f.chunks[0]
	f.chunks = f.chunks[1:]
	n := copy(p, chunk)
	return n, nil
}

func (f *fakePort) Write(p []byte) (int, error) { return len(p), nil }

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

func withFakePort(t *testing.T, p *fakePort) *Transport {
	t.Helper()
	orig := openFunc
	openFunc = func(name string, baud int, readTimeout time.Duration) (port, error) {
		return p, nil
	}
	t.Cleanup(func() { openFunc = orig })

	tr := New("/dev/fake0", 115200)
	if err := tr.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return tr
}

func TestTransport_Recv_AccumulatesPartialReads(t *testing.T) {
	fp := &fakePort{chunks: [][]byte{{1, 2}, {3}, {4, 5}}}
	tr := withFakePort(t, fp)

	buf := make([]byte, 5)
	n, err := tr.Recv(buf, time.Second)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if n != 5 {
		t.Fatalf("n = %d, want 5", n)
	}
	want := []byte{1, 2, 3, 4, 5}
	for i, b := range want {
		if buf[i] != b {
			t.Fatalf("buf[%d] = %d, want %d", i, buf[i], b)
		}
	}
}

func TestTransport_Recv_TimesOutOnShortData(t *testing.T) {
	fp := &fakePort{chunks: [][]byte{{1}}}
	tr := withFakePort(t, fp)

	buf := make([]byte, 4)
	_, err := tr.Recv(buf, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestTransport_Recv_PropagatesReadError(t *testing.T) {
	fp := &fakePort{err: errors.New("broken pipe")}
	tr := withFakePort(t, fp)

	buf := make([]byte, 4)
	_, err := tr.Recv(buf, time.Second)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestTransport_Recv_ZeroLengthIsNoOp(t *testing.T) {
	fp := &fakePort{}
	tr := withFakePort(t, fp)

	n, err := tr.Recv(nil, time.Second)
	if err != nil || n != 0 {
		t.Fatalf("Recv(nil) = (%d, %v), want (0, nil)", n, err)
	}
}

func TestTransport_OpenClose_Idempotent(t *testing.T) {
	fp := &fakePort{}
	tr := withFakePort(t, fp)

	if err := tr.Open(); err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fp.closed {
		t.Fatal("expected underlying port to be closed")
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
