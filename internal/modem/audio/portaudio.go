package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioBackend is a Backend built on gordonklaus/portaudio's blocking
// I/O mode, the pure-Go replacement for the teacher's ALSA cgo bridge.
type PortAudioBackend struct {
	stream *portaudio.Stream
	in     []int16
	out    []int16

	mu sync.Mutex
}

// framesPerBuffer matches the teacher's calcbufsize rounding to whole
// kilobytes at 8kHz mono 16-bit: roughly a 100ms callback period.
const framesPerBuffer = 800

// OpenPortAudio initialises the PortAudio library (idempotent per process)
// and opens the default input/output devices at SampleRate.
func OpenPortAudio() (*PortAudioBackend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audio: portaudio init: %w", err)
	}
	b := &PortAudioBackend{
		in:  make([]int16, framesPerBuffer),
		out: make([]int16, framesPerBuffer),
	}
	stream, err := portaudio.OpenDefaultStream(1, 1, float64(SampleRate), framesPerBuffer, b.in, b.out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audio: open default stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("audio: start stream: %w", err)
	}
	b.stream = stream
	return b, nil
}

func (b *PortAudioBackend) ReadSamples(ctx context.Context, buf []int16) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.stream.Read(); err != nil {
		return 0, fmt.Errorf("audio: read: %w", err)
	}
	n := copy(buf, b.in)
	return n, nil
}

func (b *PortAudioBackend) WriteSamples(ctx context.Context, buf []int16) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(buf) > 0 {
		n := copy(b.out, buf)
		for i := n; i < len(b.out); i++ {
			b.out[i] = 0
		}
		if err := b.stream.Write(); err != nil {
			return fmt.Errorf("audio: write: %w", err)
		}
		buf = buf[n:]
	}
	return nil
}

func (b *PortAudioBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}
