package audio

import (
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// DeviceError wraps a persistent audio hardware failure.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string { return fmt.Sprintf("audio: device error: %v", e.Err) }
func (e *DeviceError) Unwrap() error { return e.Err }

// byteRing is a lock-free single-producer single-consumer ring buffer of
// PCM16 bytes, the Recorder's analog of the teacher's float32 ringBuffer.
type byteRing struct {
	buf  []byte
	head atomic.Uint64
	tail atomic.Uint64
}

func newByteRing(size int) *byteRing {
	return &byteRing{buf: make([]byte, size)}
}

func (r *byteRing) push(data []byte) int {
	n := len(r.buf)
	head := r.head.Load()
	tail := r.tail.Load()
	available := n - int(head-tail)
	toWrite := len(data)
	if toWrite > available {
		toWrite = available
	}
	for i := 0; i < toWrite; i++ {
		r.buf[(int(head)+i)%n] = data[i]
	}
	r.head.Add(uint64(toWrite))
	return toWrite
}

func (r *byteRing) available() int {
	return int(r.head.Load() - r.tail.Load())
}

func (r *byteRing) pop(out []byte) int {
	n := len(r.buf)
	head := r.head.Load()
	tail := r.tail.Load()
	toRead := len(out)
	if avail := int(head - tail); toRead > avail {
		toRead = avail
	}
	for i := 0; i < toRead; i++ {
		out[i] = r.buf[(int(tail)+i)%n]
	}
	r.tail.Add(uint64(toRead))
	return toRead
}

func (r *byteRing) clear() {
	r.tail.Store(r.head.Load())
}

// Recorder captures mono PCM16 @ a fixed sample rate from a malgo input
// device, applies software gain, and exposes a blocking framed byte read.
// Structurally this is the teacher's Capturer (ring buffer + malgo callback)
// generalized from a float32-sample-callback pipeline to a PCM16-byte
// blocking-read one, per spec §4.8.
type Recorder struct {
	ctx              *malgo.AllocatedContext
	device           *malgo.Device
	sampleRate       uint32
	deviceSampleRate uint32

	ring      *byteRing
	resampler *PolyphaseResampler

	listening atomic.Bool // half-duplex mute switch (SetListen)
	stopChan  chan struct{}
	wg        sync.WaitGroup

	mu      sync.Mutex
	gainDB  float64
	agc     bool
	targetDBFS float64
	maxGainDB  float64

	notEmpty chan struct{}
}

// Config configures a Recorder.
type Config struct {
	SampleRate int
	GainDB     float64
	AGC        bool
	TargetDBFS float64
	MaxGainDB  float64
}

const ringBytes = 1 << 20 // 1 MiB: about 32 seconds of 16kHz mono PCM16

// Open opens a raw input stream at cfg.SampleRate, mono.
func Open(cfg Config) (*Recorder, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: init context: %w", err)
	}

	r := &Recorder{
		ctx:        ctx,
		sampleRate: uint32(cfg.SampleRate),
		ring:       newByteRing(ringBytes),
		stopChan:   make(chan struct{}),
		gainDB:     cfg.GainDB,
		agc:        cfg.AGC,
		targetDBFS: cfg.TargetDBFS,
		maxGainDB:  cfg.MaxGainDB,
		notEmpty:   make(chan struct{}, 1),
	}
	r.listening.Store(true)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = r.sampleRate
	deviceConfig.PeriodSizeInMilliseconds = 32

	probe, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{})
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("audio: probe capture device: %w", err)
	}
	r.deviceSampleRate = probe.SampleRate()
	probe.Uninit()

	if r.deviceSampleRate != r.sampleRate && r.deviceSampleRate > r.sampleRate {
		r.resampler = NewPolyphaseResampler(int(r.deviceSampleRate), int(r.sampleRate))
		log.Printf("🔄 Audio resampling: %d Hz -> %d Hz (polyphase anti-aliasing)", r.deviceSampleRate, r.sampleRate)
	}

	onRecv := func(_, input []byte, framecount uint32) {
		if !r.listening.Load() {
			return
		}
		data := input
		if r.resampler != nil || r.deviceSampleRate != r.sampleRate {
			samples := bytesS16ToFloat32(input)
			if r.resampler != nil {
				samples = r.resampler.Resample(samples)
			} else {
				samples = ResampleInPlace(samples, int(r.deviceSampleRate), int(r.sampleRate))
			}
			data = float32ToBytesS16(samples)
		}
		if r.ring.push(data) > 0 {
			select {
			case r.notEmpty <- struct{}{}:
			default:
			}
		}
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onRecv})
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("audio: init capture device: %w", err)
	}
	r.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return nil, &DeviceError{Err: err}
	}

	return r, nil
}

// SetListen is the half-duplex mute switch: when false, captured frames are
// dropped at the callback instead of being buffered.
func (r *Recorder) SetListen(v bool) {
	r.listening.Store(v)
}

// ReadBytes blocks until exactly n bytes of PCM16 LE are available, or the
// Recorder is closed.
func (r *Recorder) ReadBytes(n int) ([]byte, error) {
	out := make([]byte, n)
	filled := 0
	for filled < n {
		got := r.ring.pop(out[filled:])
		filled += got
		if filled >= n {
			break
		}
		select {
		case <-r.stopChan:
			return nil, fmt.Errorf("audio: recorder closed")
		case <-r.notEmpty:
		case <-time.After(20 * time.Millisecond):
		}
	}
	return out, nil
}

// ReadFloat32 reads n samples and applies software gain 10^(gain_db/20),
// optionally adjusting gain via AGC toward TargetDBFS first.
func (r *Recorder) ReadFloat32(n int) ([]float32, error) {
	raw, err := r.ReadBytes(n * 2)
	if err != nil {
		return nil, err
	}
	samples := bytesS16ToFloat32(raw)

	r.mu.Lock()
	if r.agc {
		r.adjustGainLocked(samples)
	}
	gainLinear := math.Pow(10, r.gainDB/20)
	r.mu.Unlock()

	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(float64(s) * gainLinear)
	}
	return out, nil
}

// adjustGainLocked measures this frame's dBFS and nudges gainDB toward the
// value that would put it at TargetDBFS, bounded by MaxGainDB.
func (r *Recorder) adjustGainLocked(samples []float32) {
	if len(samples) == 0 {
		return
	}
	var sumSq float64
	for _, s := range samples {
		sumSq += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	if rms <= 0 {
		return
	}
	dbfs := 20*math.Log10(rms) + r.gainDB // level after the current gain
	errDB := r.targetDBFS - dbfs
	const stepFraction = 0.1
	r.gainDB += errDB * stepFraction
	if r.gainDB > r.maxGainDB {
		r.gainDB = r.maxGainDB
	}
	if r.gainDB < -r.maxGainDB {
		r.gainDB = -r.maxGainDB
	}
}

// Flush discards any queued frames.
func (r *Recorder) Flush() {
	r.ring.clear()
}

// Close releases the input stream.
func (r *Recorder) Close() {
	select {
	case <-r.stopChan:
	default:
		close(r.stopChan)
	}
	if r.device != nil {
		r.device.Stop()
		r.device.Uninit()
		r.device = nil
	}
	if r.ctx != nil {
		_ = r.ctx.Uninit()
		r.ctx.Free()
		r.ctx = nil
	}
}

func bytesS16ToFloat32(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(v) / 32768.0
	}
	return out
}

func float32ToBytesS16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(clampF(float64(s)*32768.0, -32768, 32767))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
