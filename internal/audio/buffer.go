package audio

import (
	"sync/atomic"
	"time"
)

const defaultQueueFrames = 512

// Frame is one fixed-size block of mono PCM samples tagged with its arrival order.
type Frame struct {
	Seq     uint64
	Samples []int16
}

// Utterance is the ordered frame sequence captured between one start and stop edge.
type Utterance struct {
	Frames     []Frame
	SampleRate int
}

// Empty reports whether the utterance holds no frames.
func (u Utterance) Empty() bool {
	return len(u.Frames) == 0
}

// SampleCount returns the total number of samples across all frames.
func (u Utterance) SampleCount() int {
	total := 0
	for _, frame := range u.Frames {
		total += len(frame.Samples)
	}
	return total
}

// Samples concatenates frame samples in arrival order.
func (u Utterance) Samples() []int16 {
	out := make([]int16, 0, u.SampleCount())
	for _, frame := range u.Frames {
		out = append(out, frame.Samples...)
	}
	return out
}

// Duration is the playback length implied by the sample count and rate.
func (u Utterance) Duration() time.Duration {
	if u.SampleRate <= 0 {
		return 0
	}
	return time.Duration(u.SampleCount()) * time.Second / time.Duration(u.SampleRate)
}

type taggedFrame struct {
	generation uint64
	frame      Frame
}

// Buffer hands frames from the audio-device goroutine to the polling loop.
//
// Offer is the only method the device side may call. Begin, Drain and Seal
// belong to the polling loop. Frames travel through a bounded channel and are
// tagged with the utterance generation that was current when they were
// offered, so a late frame can never leak into a later utterance.
type Buffer struct {
	sampleRate int
	queue      chan taggedFrame

	active     atomic.Bool
	generation atomic.Uint64
	seq        atomic.Uint64
	dropped    atomic.Int64

	current []Frame
}

// NewBuffer creates a buffer with room for queueFrames undrained frames.
func NewBuffer(sampleRate int, queueFrames int) *Buffer {
	if queueFrames <= 0 {
		queueFrames = defaultQueueFrames
	}
	return &Buffer{
		sampleRate: sampleRate,
		queue:      make(chan taggedFrame, queueFrames),
	}
}

// Offer enqueues one frame when capture is active. It never blocks; a full
// queue drops the frame and counts it.
func (b *Buffer) Offer(samples []int16) {
	if len(samples) == 0 {
		return
	}
	generation := b.generation.Load()
	if !b.active.Load() {
		return
	}

	frame := Frame{
		Seq:     b.seq.Add(1),
		Samples: append([]int16(nil), samples...),
	}
	select {
	case b.queue <- taggedFrame{generation: generation, frame: frame}:
	default:
		b.dropped.Add(1)
	}
}

// Begin starts a new utterance, discarding anything still queued.
func (b *Buffer) Begin() {
	b.active.Store(false)
	b.generation.Add(1)
	b.discardQueued()
	b.current = make([]Frame, 0, 64)
	b.active.Store(true)
}

// Drain folds queued frames of the current utterance into it and returns how
// many were taken.
func (b *Buffer) Drain() int {
	generation := b.generation.Load()
	taken := 0
	for {
		select {
		case tagged := <-b.queue:
			if tagged.generation != generation || b.current == nil {
				continue
			}
			b.current = append(b.current, tagged.frame)
			taken++
		default:
			return taken
		}
	}
}

// Seal stops accepting frames and returns the finished utterance.
func (b *Buffer) Seal() Utterance {
	b.active.Store(false)
	b.Drain()

	frames := b.current
	b.current = nil
	return Utterance{Frames: frames, SampleRate: b.sampleRate}
}

// Active reports whether frames are currently being accepted.
func (b *Buffer) Active() bool {
	return b.active.Load()
}

// Dropped reports frames lost to a full queue since construction.
func (b *Buffer) Dropped() int64 {
	return b.dropped.Load()
}

// SampleRate returns the capture rate recorded on sealed utterances.
func (b *Buffer) SampleRate() int {
	return b.sampleRate
}

func (b *Buffer) discardQueued() {
	for {
		select {
		case <-b.queue:
		default:
			return
		}
	}
}
