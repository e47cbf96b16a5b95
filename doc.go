/*
Package livehost hosts an audio plugin, feeds it live MIDI events and
streams its output to an audio device in real time.

Concept

The host glues together three independently clocked threads:

    MIDI callback - captures raw messages and hands them off;
    Processing loop - drives the plugin in fixed-size blocks;
    Device callback - fills hardware buffers on the audio thread.

Every hand-off between them is a single-producer/single-consumer queue:

    midi.Queue - unbounded by default, never drops a note;
    queue.Queue - bounded, blocks the loop when the device is behind.

Events collected while a block is processed are delivered to the plugin
after the process call and take effect on the next block. This one block
lag can be removed with DeliverBeforeProcess option.

Lifecycle

Host owns the plugin and the device:

    h, err := livehost.New(plugin, device, input)
    err = h.Run(ctx)
    err = h.Close()

Run initializes the plugin, connects MIDI input, starts the device stream
and processes blocks until context is done or plugin fails. Close stops the
stream first and unloads the plugin after that.
*/
package livehost
