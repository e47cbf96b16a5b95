package mock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"pipelined.dev/livehost/device"
	"pipelined.dev/livehost/midi"
	"pipelined.dev/livehost/mock"
	"pipelined.dev/livehost/plugin"
	"pipelined.dev/livehost/queue"
)

var (
	_ plugin.Plugin = (*mock.Plugin)(nil)
	_ device.Device = (*mock.Device)(nil)
	_ midi.Input    = (*mock.Input)(nil)
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPlugin(t *testing.T) {
	p := &mock.Plugin{
		Outputs: 2,
		Value: func(call, channel, frame int) float32 {
			return float32(call*100 + channel*10 + frame)
		},
	}
	out := [][]float32{make([]float32, 2), make([]float32, 2)}
	assert.Nil(t, p.ProcessEvents([]midi.Event{midi.Translate(midi.Message{0x90, 60, 1})}))
	assert.Nil(t, p.Process(nil, out))
	assert.Equal(t, [][]float32{{100, 101}, {110, 111}}, out)
	assert.Equal(t, 1, p.Calls())
	assert.Equal(t, []mock.Received{
		{Call: 1, Event: midi.Translate(midi.Message{0x90, 60, 1})},
	}, p.Received())

	testErr := errors.New("test")
	p = &mock.Plugin{ErrorOnProcess: testErr, ErrorOnEvents: testErr}
	assert.Equal(t, testErr, p.Process(nil, out))
	assert.Equal(t, testErr, p.ProcessEvents(nil))

	p = &mock.Plugin{PanicOnCall: 1}
	assert.Panics(t, func() { p.Process(nil, out) })
}

func TestDevice(t *testing.T) {
	d := &mock.Device{
		DeviceFormat:    device.Format{Name: "mock", SampleRate: 44100, Channels: 2},
		FramesPerBuffer: 4,
		Capture:         6,
	}
	q := queue.New(16)
	for i := 0; i < 16; i++ {
		assert.Nil(t, q.Push(context.Background(), float32(i)))
	}
	q.Close()
	assert.Nil(t, d.Start(device.NewCallback(q, device.UnderrunBlock, 2)))
	<-d.Full()
	assert.Nil(t, d.Stop())
	assert.Nil(t, d.Close())
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5}, d.Captured())
	assert.True(t, d.Started)
	assert.True(t, d.Stopped)
	assert.True(t, d.Closed)
}

func TestInput(t *testing.T) {
	in := &mock.Input{PortNames: []string{"a", "b"}}
	assert.Equal(t, mock.ErrNotListening, in.Send([]byte{0x90, 1, 1}))
	_, err := in.Listen(2, func([]byte) {})
	assert.True(t, errors.Is(err, midi.ErrNoPort))

	var got []byte
	stop, err := in.Listen(1, func(b []byte) { got = b })
	assert.Nil(t, err)
	assert.Equal(t, 1, in.Port())
	assert.Nil(t, in.Send([]byte{0x90, 60, 100}))
	assert.Equal(t, []byte{0x90, 60, 100}, got)
	stop()
	assert.True(t, in.Stopped)
	assert.Equal(t, mock.ErrNotListening, in.Send([]byte{0x80, 60, 0}))
}
