// Package metric exposes livehost counters through expvar.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"pipelined.dev/signal"
)

const componentsLabel = "livehost.components"

const (
	// BlockCounter measures number of processed blocks.
	BlockCounter = "Blocks"
	// FrameCounter measures number of processed frames.
	FrameCounter = "Frames"
	// LatencyCounter measures latency between processing calls.
	LatencyCounter = "Latency"
	// DurationCounter counts what's the duration of signal.
	DurationCounter = "Duration"
	// EventCounter counts delivered MIDI events.
	EventCounter = "Events"
	// DroppedCounter counts MIDI events lost on overflow.
	DroppedCounter = "Dropped"
	// UnderrunCounter counts device buffers filled with substituted silence.
	UnderrunCounter = "Underruns"
	// ComponentCounter counts number of metered components.
	ComponentCounter = "Components"
)

var (
	components = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		BlockCounter,
		FrameCounter,
		LatencyCounter,
		DurationCounter,
		EventCounter,
		DroppedCounter,
		UnderrunCounter,
		ComponentCounter,
	}
)

// Get metrics values for provided component type.
func Get(component interface{}) map[string]string {
	return getCounters(getType(component))
}

// GetAll returns counters for all measured components.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	components.Lock()
	defer components.Unlock()
	for component := range components.m {
		m[component] = getCounters(component)
	}
	return m
}

func getCounters(componentType string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(componentType, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// ResetFunc returns new Measure closure. This closure is needed to postpone metrics
// capture until component is actually running.
type ResetFunc func() MeasureFunc

// MeasureFunc captures metrics when block is processed.
type MeasureFunc func(frames int64)

// Meter creates new meter closure to capture component counters.
func Meter(component interface{}, sampleRate int) ResetFunc {
	metric := components.get(getType(component))
	metric.components.Add(1)
	return func() MeasureFunc {
		calledAt := time.Now()
		var (
			blockSize     int64
			blockDuration time.Duration
		)
		return func(frames int64) {
			metric.latency.set(time.Since(calledAt))
			metric.blocks.Add(1)
			metric.frames.Add(frames)
			// recalculate block duration only when block size has changed
			if blockSize != frames {
				blockSize = frames
				blockDuration = durationOf(sampleRate, frames)
			}
			metric.duration.add(blockDuration)
			calledAt = time.Now()
		}
	}
}

// Counter returns a closure that increments named counter of the
// component. It doesn't allocate and is safe to call from the device
// callback.
func Counter(component interface{}, counter string) func(int64) {
	metric := components.get(getType(component))
	switch counter {
	case EventCounter:
		return metric.events.Add
	case DroppedCounter:
		return metric.dropped.Add
	case UnderrunCounter:
		return metric.underruns.Add
	case BlockCounter:
		return metric.blocks.Add
	case FrameCounter:
		return metric.frames.Add
	}
	panic(fmt.Sprintf("metric: %s is not a counter", counter))
}

func durationOf(sampleRate int, frames int64) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return signal.Frequency(sampleRate).Duration(int(frames))
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(componentType string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[componentType]; ok {
		// return existing metric if available
		return metric
	}
	// create new metric
	metric := newMetric(componentType)
	m.m[componentType] = metric
	return metric
}

type metric struct {
	components *expvar.Int
	blocks     *expvar.Int
	frames     *expvar.Int
	events     *expvar.Int
	dropped    *expvar.Int
	underruns  *expvar.Int
	latency    *duration
	duration   *duration
}

func newMetric(componentType string) metric {
	m := metric{
		components: expvar.NewInt(key(componentType, ComponentCounter)),
		blocks:     expvar.NewInt(key(componentType, BlockCounter)),
		frames:     expvar.NewInt(key(componentType, FrameCounter)),
		events:     expvar.NewInt(key(componentType, EventCounter)),
		dropped:    expvar.NewInt(key(componentType, DroppedCounter)),
		underruns:  expvar.NewInt(key(componentType, UnderrunCounter)),
		latency:    &duration{},
		duration:   &duration{},
	}
	expvar.Publish(key(componentType, LatencyCounter), m.latency)
	expvar.Publish(key(componentType, DurationCounter), m.duration)
	return m
}

func key(componentType, counter string) string {
	return fmt.Sprintf("%s.%s.%s", componentsLabel, componentType, counter)
}

func getType(component interface{}) string {
	rv := reflect.ValueOf(component)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(atomic.LoadInt64(&v.d)))
}

func (v *duration) add(delta time.Duration) {
	atomic.AddInt64(&v.d, int64(delta))
}

func (v *duration) set(value time.Duration) {
	atomic.StoreInt64(&v.d, int64(value))
}
