package gpio

import (
	"errors"
	"sync"
	"time"
)

// FakeInput is a test double that returns scripted raw levels.
type FakeInput struct {
	mu sync.Mutex

	// Samples contains scripted raw values to return.
	// Each call to ReadDigital() consumes the next sample.
	Samples []int

	// index tracks current position in Samples
	index int

	// Reads counts calls to ReadDigital.
	Reads int

	// ReadError, if set, will be returned by ReadDigital()
	ReadError error
}

// NewFakeInput creates a FakeInput with the given raw samples.
func NewFakeInput(samples ...int) *FakeInput {
	return &FakeInput{Samples: samples}
}

// ReadDigital returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeInput) ReadDigital() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Reads++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	if len(f.Samples) == 0 {
		return 0, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}

// Set replaces the script with a single repeating level.
func (f *FakeInput) Set(level int) {
	f.mu.Lock()
	f.Samples = []int{level}
	f.index = 0
	f.mu.Unlock()
}

// Reset resets the input to the beginning of samples.
func (f *FakeInput) Reset() {
	f.mu.Lock()
	f.index = 0
	f.Reads = 0
	f.mu.Unlock()
}

// FakeOutput records every level written.
type FakeOutput struct {
	mu     sync.Mutex
	Values []int
	Times  []time.Time

	// WriteError, if set, will be returned by WriteDigital()
	WriteError error
}

// NewFakeOutput creates an empty FakeOutput.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// WriteDigital records v.
func (f *FakeOutput) WriteDigital(v int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Values = append(f.Values, v)
	f.Times = append(f.Times, time.Now())
	return nil
}

// Written returns a copy of the recorded levels.
func (f *FakeOutput) Written() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.Values...)
}

// PulseWrite is one recorded PWM write.
type PulseWrite struct {
	Nanos int64
	At    time.Time
}

// FakePWM records pulse-width writes. Safe for concurrent use.
type FakePWM struct {
	mu     sync.Mutex
	Hz     int
	Writes []PulseWrite

	// WriteError, if set, will be returned by SetPulseWidth()
	WriteError error
}

// NewFakePWM creates a FakePWM running at ServoHz.
func NewFakePWM() *FakePWM {
	return &FakePWM{Hz: ServoHz}
}

// SetFrequency records the frequency.
func (f *FakePWM) SetFrequency(hz int) error {
	f.mu.Lock()
	f.Hz = hz
	f.mu.Unlock()
	return nil
}

// SetPulseWidth records the pulse width.
func (f *FakePWM) SetPulseWidth(ns int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, PulseWrite{Nanos: ns, At: time.Now()})
	return nil
}

// Pulses returns the recorded widths in write order.
func (f *FakePWM) Pulses() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(f.Writes))
	for i, w := range f.Writes {
		out[i] = w.Nanos
	}
	return out
}

// Recorded returns a copy of the recorded writes.
func (f *FakePWM) Recorded() []PulseWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PulseWrite(nil), f.Writes...)
}

// Reset clears recorded writes.
func (f *FakePWM) Reset() {
	f.mu.Lock()
	f.Writes = nil
	f.WriteError = nil
	f.mu.Unlock()
}
