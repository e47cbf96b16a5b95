// Package midi translates raw MIDI messages into plugin events and hands
// them off from the MIDI callback thread to the processing loop.
package midi

import (
	"errors"
	"fmt"
)

// ErrNoPort is returned when requested MIDI input port doesn't exist.
var ErrNoPort = errors.New("midi port not found")

// Input is a source of raw MIDI messages.
type Input interface {
	// Ports returns names of available input ports.
	Ports() ([]string, error)
	// Listen connects to the port and calls fn for every received
	// message. fn is called on the driver's thread. Returned function
	// disconnects the port.
	Listen(port int, fn func([]byte)) (func(), error)
	// Close releases the driver.
	Close() error
}

// Message is a raw MIDI message: status, data1 and data2 bytes.
type Message [3]byte

// Status bytes.
const (
	NoteOff       byte = 0x80
	NoteOn        byte = 0x90
	ControlChange byte = 0xB0
)

// FromBytes captures the first three bytes of raw message. Shorter
// messages are padded with zeros.
func FromBytes(b []byte) Message {
	var m Message
	copy(m[:], b)
	return m
}

// Status returns message type without channel bits.
func (m Message) Status() byte {
	return m[0] & 0xF0
}

// Channel returns zero-based channel of the message.
func (m Message) Channel() uint8 {
	return m[0] & 0x0F
}

// IsNoteOn returns true for note-on messages with non-zero velocity.
func (m Message) IsNoteOn() bool {
	return m.Status() == NoteOn && m[2] > 0
}

// IsNoteOff returns true for note-off messages and note-on messages
// with zero velocity.
func (m Message) IsNoteOff() bool {
	return m.Status() == NoteOff || (m.Status() == NoteOn && m[2] == 0)
}

func (m Message) String() string {
	return fmt.Sprintf("[%02X %02X %02X]", m[0], m[1], m[2])
}

// Event is a MIDI message with plugin scheduling metadata.
type Event struct {
	Message
	DeltaFrames     int32 // offset within the block.
	Live            bool  // event is played live, not from a sequence.
	NoteLength      int32
	NoteOffset      int32
	Detune          int8
	NoteOffVelocity uint8
}

// Translate returns an event that should be played immediately. Frame
// accurate scheduling is not supported, so delta is always zero.
func Translate(m Message) Event {
	return Event{
		Message: m,
		Live:    true,
	}
}

// Translator receives raw messages from the input driver and pushes
// translated events into the queue.
type Translator struct {
	queue *Queue
}

// NewTranslator returns translator bound to the queue.
func NewTranslator(q *Queue) *Translator {
	return &Translator{queue: q}
}

// Receive is called on the MIDI driver thread. Empty messages are ignored.
func (t *Translator) Receive(b []byte) {
	if len(b) == 0 {
		return
	}
	t.queue.Push(Translate(FromBytes(b)))
}
