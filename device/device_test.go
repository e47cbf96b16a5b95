package device_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"pipelined.dev/livehost/device"
	"pipelined.dev/livehost/queue"
	"pipelined.dev/livehost/sample"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func push(t *testing.T, q *queue.Queue, samples ...float32) {
	t.Helper()
	for _, s := range samples {
		assert.Nil(t, q.Push(context.Background(), s))
	}
}

func TestFill(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1}
	t.Run("f32", func(t *testing.T) {
		q := queue.New(len(samples))
		push(t, q, samples...)
		out := make([]float32, len(samples))
		device.NewCallback(q, device.UnderrunBlock, 1).FillFloat32(out)
		assert.Equal(t, samples, out)
	})
	t.Run("i16", func(t *testing.T) {
		q := queue.New(len(samples))
		push(t, q, samples...)
		out := make([]int16, len(samples))
		device.NewCallback(q, device.UnderrunBlock, 1).FillInt16(out)
		assert.Equal(t, []int16{0, 16383, -16383, 32767}, out)
	})
	t.Run("u16", func(t *testing.T) {
		q := queue.New(len(samples))
		push(t, q, samples...)
		out := make([]uint16, len(samples))
		device.NewCallback(q, device.UnderrunBlock, 1).FillUint16(out)
		assert.Equal(t, []uint16{32768, 49151, 16385, 65535}, out)
	})
}

func TestFillInterleaved(t *testing.T) {
	// two device buffers of two stereo frames each
	q := queue.New(8)
	push(t, q, 0.1, -0.1, 0.2, -0.2, 0.3, -0.3, 0.4, -0.4)
	cb := device.NewCallback(q, device.UnderrunBlock, 2)
	first := make([]float32, 4)
	second := make([]float32, 4)
	cb.FillFloat32(first)
	cb.FillFloat32(second)
	assert.Equal(t, []float32{0.1, -0.1, 0.2, -0.2}, first)
	assert.Equal(t, []float32{0.3, -0.3, 0.4, -0.4}, second)
	assert.Equal(t, 0, q.Len())
}

func TestUnderrunBlock(t *testing.T) {
	q := queue.New(4)
	cb := device.NewCallback(q, device.UnderrunBlock, 1)
	filled := make(chan []float32)
	go func() {
		out := make([]float32, 2)
		cb.FillFloat32(out)
		filled <- out
	}()
	push(t, q, 0.5)
	select {
	case <-filled:
		t.Fatal("callback returned before buffer was filled")
	case <-time.After(50 * time.Millisecond):
	}
	push(t, q, 0.25)
	assert.Equal(t, []float32{0.5, 0.25}, <-filled)
	assert.Equal(t, int64(0), cb.Underruns())
}

func TestUnderrunSilence(t *testing.T) {
	t.Run("mono", func(t *testing.T) {
		q := queue.New(4)
		push(t, q, 0.5)
		cb := device.NewCallback(q, device.UnderrunSilence, 1)
		out := make([]int16, 4)
		cb.FillInt16(out)
		assert.Equal(t, []int16{16383, 0, 0, 0}, out)
		assert.Equal(t, int64(1), cb.Underruns())

		u16 := make([]uint16, 2)
		cb.FillUint16(u16)
		assert.Equal(t, []uint16{32768, 32768}, u16)
		assert.Equal(t, int64(2), cb.Underruns())
	})
	t.Run("stereo", func(t *testing.T) {
		const left, right = 1, 2
		q := queue.New(8)
		cb := device.NewCallback(q, device.UnderrunSilence, 2)

		// incomplete frame is not played
		push(t, q, left)
		out := make([]float32, 4)
		cb.FillFloat32(out)
		assert.Equal(t, []float32{0, 0, 0, 0}, out)
		assert.Equal(t, int64(1), cb.Underruns())

		push(t, q, right, left, right)
		cb.FillFloat32(out)
		assert.Equal(t, []float32{left, right, left, right}, out)
		assert.Equal(t, int64(1), cb.Underruns())

		// frame that arrives in the middle of buffer keeps its slots
		push(t, q, left, right)
		out = make([]float32, 6)
		cb.FillFloat32(out)
		assert.Equal(t, []float32{left, right, 0, 0, 0, 0}, out)
		assert.Equal(t, int64(2), cb.Underruns())
	})
}

func TestClosedQueue(t *testing.T) {
	for _, policy := range []device.Underrun{device.UnderrunBlock, device.UnderrunSilence} {
		t.Run(policy.String(), func(t *testing.T) {
			q := queue.New(2)
			push(t, q, 0.5)
			q.Close()
			cb := device.NewCallback(q, policy, 1)
			out := make([]float32, 3)
			cb.FillFloat32(out)
			assert.Equal(t, []float32{0.5, 0, 0}, out)
			// silence after close is not an underrun
			assert.Equal(t, int64(0), cb.Underruns())
		})
	}
}

func TestParseUnderrun(t *testing.T) {
	u, err := device.ParseUnderrun("silence")
	assert.Nil(t, err)
	assert.Equal(t, device.UnderrunSilence, u)
	u, err = device.ParseUnderrun("Block")
	assert.Nil(t, err)
	assert.Equal(t, device.UnderrunBlock, u)
	_, err = device.ParseUnderrun("skip")
	assert.NotNil(t, err)
}

func TestFormatValidate(t *testing.T) {
	assert.Nil(t, device.Format{Name: "test", SampleRate: 44100, Channels: 2, Sample: sample.Int16}.Validate())
	err := device.Format{SampleRate: 0, Channels: 2}.Validate()
	assert.True(t, errors.Is(err, device.ErrUnsupportedFormat))
	err = device.Format{SampleRate: 48000, Channels: 2, Sample: sample.Format(9)}.Validate()
	assert.True(t, errors.Is(err, sample.ErrUnknownFormat))
	assert.Equal(t, "test: 44100Hz 2ch i16", device.Format{Name: "test", SampleRate: 44100, Channels: 2, Sample: sample.Int16}.String())
}
