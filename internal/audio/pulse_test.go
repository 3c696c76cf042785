package audio

import (
	"context"
	"io"
	"reflect"
	"sync"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	blocks [][]int16
}

func (s *recordingSink) Offer(samples []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, append([]int16(nil), samples...))
}

func (s *recordingSink) snapshot() [][]int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]int16(nil), s.blocks...)
}

func TestSelectDeviceFromList(t *testing.T) {
	headset := Device{ID: "alsa_input.usb-jabra", Description: "Jabra Evolve2 Mono", Available: true, Default: true}
	webcam := Device{ID: "alsa_input.usb-c920", Description: "HD Pro Webcam C920", Available: true}
	mutedHeadset := headset
	mutedHeadset.Muted = true

	cases := []struct {
		name       string
		devices    []Device
		input      string
		fallback   string
		wantID     string
		wantWarn   string
		wantErr    string
		wantUsedFB bool
	}{
		{name: "default source", devices: []Device{headset, webcam}, input: "default", fallback: "default", wantID: headset.ID},
		{name: "match by description", devices: []Device{headset, webcam}, input: "c920", fallback: "default", wantID: webcam.ID},
		{name: "muted input falls back", devices: []Device{mutedHeadset, webcam}, input: "jabra", fallback: "webcam", wantID: webcam.ID, wantWarn: "muted", wantUsedFB: true},
		{name: "muted without usable fallback", devices: []Device{mutedHeadset}, input: "default", fallback: "default", wantErr: "muted"},
		{name: "unknown input", devices: []Device{headset}, input: "missing", fallback: "default", wantErr: "did not match"},
		{name: "no devices", wantErr: "no audio input devices"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			selection, err := selectDeviceFromList(tc.devices, tc.input, tc.fallback)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantID, selection.Device.ID)
			require.Equal(t, tc.wantUsedFB, selection.Fallback)
			if tc.wantWarn == "" {
				require.Empty(t, selection.Warning)
			} else {
				require.Contains(t, selection.Warning, tc.wantWarn)
			}
		})
	}
}

func TestDeviceMatchesByIDAndDescription(t *testing.T) {
	dev := Device{ID: "alsa_input.usb-jabra", Description: "Jabra Evolve2 Mono"}
	require.True(t, deviceMatches(dev, "jabra"))
	require.True(t, deviceMatches(dev, "evolve2"))
	require.False(t, deviceMatches(dev, "missing"))
}

func TestListDevicesFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := ListDevices(context.Background())
	require.Error(t, err)
}

func TestSourceStateString(t *testing.T) {
	require.Equal(t, "running", sourceStateString(0))
	require.Equal(t, "idle", sourceStateString(1))
	require.Equal(t, "suspended", sourceStateString(2))
	require.Equal(t, "unknown(99)", sourceStateString(99))
}

func TestSourceAvailable(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{}))

	available := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, available, []sourcePort{{name: "mic", available: 2}})
	require.True(t, sourceAvailable(available))

	notAvailable := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, notAvailable, []sourcePort{{name: "mic", available: 1}})
	require.False(t, sourceAvailable(notAvailable))
}

func TestCaptureOnPCMEmitsBlocksAndStopFlushesPending(t *testing.T) {
	sink := &recordingSink{}
	capture := newCapture(Device{ID: "mic"}, sink, 4)

	// 4 samples per block = 8 bytes; 11 bytes leaves 3 pending (one whole sample).
	input := []byte{1, 0, 2, 0, 3, 0, 4, 0, 5, 0, 6}
	n, err := capture.onPCM(input)
	require.NoError(t, err)
	require.Equal(t, len(input), n)
	require.Equal(t, int64(len(input)), capture.BytesCaptured())
	require.Equal(t, [][]int16{{1, 2, 3, 4}}, sink.snapshot())

	require.NoError(t, capture.Stop())
	require.Equal(t, [][]int16{{1, 2, 3, 4}, {5}}, sink.snapshot())

	require.NoError(t, capture.Stop())
	require.Len(t, sink.snapshot(), 2)
}

func TestCaptureOnPCMReturnsEOFWhenStopped(t *testing.T) {
	sink := &recordingSink{}
	capture := newCapture(Device{}, sink, 4)
	close(capture.stopCh)

	n, err := capture.onPCM([]byte{1, 2, 3})
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, int64(0), capture.BytesCaptured())
	require.Empty(t, sink.snapshot())
}

func TestCaptureFeedsBufferInArrivalOrder(t *testing.T) {
	buffer := NewBuffer(CaptureSampleRate, 16)
	capture := newCapture(Device{ID: "mic"}, buffer, 2)

	buffer.Begin()
	_, err := capture.onPCM([]byte{1, 0, 2, 0, 3, 0})
	require.NoError(t, err)
	_, err = capture.onPCM([]byte{4, 0})
	require.NoError(t, err)

	utterance := buffer.Seal()
	require.Equal(t, []int16{1, 2, 3, 4}, utterance.Samples())
}

func TestStartCaptureRejectsNilSink(t *testing.T) {
	_, err := StartCapture(context.Background(), Device{ID: "mic"}, nil, 0)
	require.Error(t, err)
}

func TestWriterFuncDelegatesWrite(t *testing.T) {
	writer := writerFunc(func(b []byte) (int, error) {
		require.Equal(t, []byte{1, 2, 3}, b)
		return len(b), nil
	})

	n, err := writer.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

type sourcePort struct {
	name      string
	available uint32
}

func setSourcePorts(t *testing.T, reply *pulseproto.GetSourceInfoReply, ports []sourcePort) {
	t.Helper()

	sliceType := reflect.TypeOf(reply.Ports)
	sliceValue := reflect.MakeSlice(sliceType, len(ports), len(ports))

	for i, port := range ports {
		item := sliceValue.Index(i)
		item.FieldByName("Name").SetString(port.name)
		item.FieldByName("Available").SetUint(uint64(port.available))
	}

	reflect.ValueOf(reply).Elem().FieldByName("Ports").Set(sliceValue)
}
