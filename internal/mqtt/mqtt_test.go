package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/points-servo/internal/demand"
)

func TestFormatPayload(t *testing.T) {
	event := Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Actuator:  2,
		From:      demand.Off,
		To:        demand.On,
		Elapsed:   1500 * time.Millisecond,
		Source:    "switches",
	}

	payload, err := FormatPayload(event)
	require.NoError(t, err)

	expected := `{"points":{"timestamp":"2026-02-02T22:18:12Z","event":"TRANSITION","actuator":2,"from":"OFF","to":"ON","elapsed_ms":1500,"source":"switches"}}`
	assert.Equal(t, expected, string(payload))
}

func TestFormatPayloadFromUnknown(t *testing.T) {
	payload, err := FormatPayload(Event{Actuator: 0, From: demand.Unset, To: demand.Off})
	require.NoError(t, err)

	var parsed Payload
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.Equal(t, "UNKNOWN", parsed.Points.From)
	assert.Equal(t, "OFF", parsed.Points.To)
	assert.NotContains(t, string(payload), "source")
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	payload, err := FormatPayload(Event{Timestamp: time.Date(2026, 2, 3, 3, 0, 0, 0, loc)})
	require.NoError(t, err)

	var parsed Payload
	require.NoError(t, json.Unmarshal(payload, &parsed))
	assert.Equal(t, "2026-02-02T22:00:00Z", parsed.Points.Timestamp)
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "railway/points/events", Topic)
	assert.Equal(t, "railway/points/system", TopicSystem)
}

func TestFormatSystemPayload(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`, string(payload))
}

func TestFormatSystemPayloadOmitsEmptyReason(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, time.UTC),
		Event:     "RECONNECTED",
	})
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(payload), "reason"))
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"status":{"event":"STARTUP"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "STARTUP", RawPayload: raw})
	require.NoError(t, err)
	assert.Equal(t, raw, payload)
}

func TestFakePublisher(t *testing.T) {
	pub := NewFakePublisher()
	require.NoError(t, pub.Publish(Event{Actuator: 1, To: demand.On}))
	require.NoError(t, pub.Publish(Event{Actuator: 2, To: demand.Off}))
	require.NoError(t, pub.PublishSystem(SystemEvent{Event: "HEARTBEAT", Retained: true}))

	events := pub.Recorded()
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Actuator)
	assert.Equal(t, 2, events[1].Actuator)
	assert.Len(t, pub.Payloads, 2)

	sys := pub.RecordedSystem()
	require.Len(t, sys, 1)
	assert.True(t, sys[0].Retained)
	assert.Equal(t, 3, pub.Calls)
}

func TestFakePublisherErrors(t *testing.T) {
	pub := NewFakePublisher()
	pub.PublishError = errors.New("broker down")
	pub.PublishSystemError = errors.New("broker down")

	assert.Error(t, pub.Publish(Event{}))
	assert.Error(t, pub.PublishSystem(SystemEvent{}))
	assert.Empty(t, pub.Recorded())
	assert.Empty(t, pub.RecordedSystem())
	assert.Equal(t, 2, pub.Calls)
}

func TestFakePublisherReset(t *testing.T) {
	pub := NewFakePublisher()
	pub.Connected = true
	require.NoError(t, pub.Publish(Event{}))
	require.NoError(t, pub.Close())
	assert.True(t, pub.Closed)

	pub.Reset()
	assert.Empty(t, pub.Recorded())
	assert.False(t, pub.Closed)
	assert.False(t, pub.IsConnected())
	assert.Equal(t, 0, pub.Calls)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(Event{}))
	assert.NoError(t, p.PublishSystem(SystemEvent{}))
	assert.NoError(t, p.Close())
}

func TestBreakerPassesThrough(t *testing.T) {
	inner := NewFakePublisher()
	inner.Connected = true
	b := NewBreakerPublisher(inner, BreakerConfig{})

	require.NoError(t, b.Publish(Event{Actuator: 4}))
	require.NoError(t, b.PublishSystem(SystemEvent{Event: "STARTUP"}))
	assert.Len(t, inner.Recorded(), 1)
	assert.Len(t, inner.RecordedSystem(), 1)
	assert.True(t, b.IsConnected())
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	inner := NewFakePublisher()
	inner.PublishError = errors.New("publish timeout")
	b := NewBreakerPublisher(inner, BreakerConfig{MaxFailures: 3, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		err := b.Publish(Event{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "publish timeout")
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	err := b.Publish(Event{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, inner.Calls, "open circuit must not reach the broker")

	err = b.PublishSystem(SystemEvent{Event: "HEARTBEAT"})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerRecovers(t *testing.T) {
	inner := NewFakePublisher()
	inner.PublishError = errors.New("down")
	b := NewBreakerPublisher(inner, BreakerConfig{MaxFailures: 1, Timeout: 50 * time.Millisecond})

	require.Error(t, b.Publish(Event{}))
	assert.Equal(t, gobreaker.StateOpen, b.State())

	time.Sleep(80 * time.Millisecond)
	inner.Reset()
	require.NoError(t, b.Publish(Event{Actuator: 9}))
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Len(t, inner.Recorded(), 1)
}

func TestBreakerClose(t *testing.T) {
	inner := NewFakePublisher()
	b := NewBreakerPublisher(inner, BreakerConfig{})
	require.NoError(t, b.Close())
	assert.True(t, inner.Closed)
}

func TestBreakerIsConnectedWithoutStatus(t *testing.T) {
	b := NewBreakerPublisher(NopPublisher{}, BreakerConfig{})
	assert.False(t, b.IsConnected())
}

func TestClientIDPrefix(t *testing.T) {
	assert.True(t, strings.HasPrefix(ClientID(), AppID))
}
