package status

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/points-servo/internal/demand"
)

func testConfig() Config {
	return Config{
		PollMs:      100,
		DebounceMs:  20,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":80",
		Layout:      "/etc/points-servo/layout.yaml",
		Summary:     "3 actuators, 2 switches, 50Hz, 100 steps",
	}
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	tr := NewTracker(start, testConfig())
	snap := tr.Snapshot()

	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Baselined {
		t.Error("expected Baselined=false initially")
	}
	if len(snap.Actuators) != 0 {
		t.Errorf("expected no actuators, got %d", len(snap.Actuators))
	}
	if snap.Config.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("Config.Broker: got %q", snap.Config.Broker)
	}
}

func TestActuatorsSortedAndUpdated(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	tr.AddActuator(2, "down main", "semaphore")
	tr.AddActuator(0, "yard throat", "linear")

	tr.UpdateActuators(
		map[int]demand.State{0: demand.On, 2: demand.Off},
		map[int]int64{0: 2_000_000, 2: 1_000_000},
	)
	snap := tr.Snapshot()

	if len(snap.Actuators) != 2 {
		t.Fatalf("expected 2 actuators, got %d", len(snap.Actuators))
	}
	a0, a2 := snap.Actuators[0], snap.Actuators[1]
	if a0.ID != 0 || a2.ID != 2 {
		t.Fatalf("actuators not sorted: %d, %d", a0.ID, a2.ID)
	}
	if a0.State != demand.On || a0.Position != 2_000_000 || a0.Name != "yard throat" {
		t.Errorf("actuator 0: %+v", a0)
	}
	if a2.State != demand.Off || a2.Profile != "semaphore" {
		t.Errorf("actuator 2: %+v", a2)
	}
}

func TestRecordMove(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	at := time.Date(2026, 1, 15, 10, 5, 0, 0, time.UTC)
	tr.RecordMove(1, demand.On, at)
	tr.RecordMove(1, demand.Off, at.Add(time.Minute))

	snap := tr.Snapshot()
	if len(snap.Actuators) != 1 {
		t.Fatalf("expected unregistered actuator to be added, got %d", len(snap.Actuators))
	}
	a := snap.Actuators[0]
	if a.Moves != 2 {
		t.Errorf("Moves: got %d, want 2", a.Moves)
	}
	if a.State != demand.Off {
		t.Errorf("State: got %s, want OFF", a.State)
	}
	if !a.LastMove.Equal(at.Add(time.Minute)) {
		t.Errorf("LastMove: got %v", a.LastMove)
	}
}

func TestUpdateSwitchesAndQueue(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	tr.UpdateSwitches(demand.SwitchStates{17: demand.Off, 16: demand.On}, true, demand.EventCounts{16: {On: 3, Off: 2}})
	tr.SetQueue(1, 4)
	tr.SetMQTTConnected(true)

	snap := tr.Snapshot()
	if !snap.Baselined {
		t.Error("expected Baselined=true")
	}
	if got := snap.SwitchPins(); len(got) != 2 || got[0] != 16 || got[1] != 17 {
		t.Errorf("SwitchPins: got %v", got)
	}
	if snap.Counts[16].On != 3 {
		t.Errorf("Counts[16].On: got %d", snap.Counts[16].On)
	}
	if snap.QueueLen != 1 || snap.QueueCap != 4 {
		t.Errorf("queue: got %d/%d", snap.QueueLen, snap.QueueCap)
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Now().Add(-5 * time.Minute)
	snap := NewTracker(start, testConfig()).Snapshot()

	uptime := snap.Uptime()
	if uptime < 5*time.Minute || uptime > 5*time.Minute+time.Second {
		t.Errorf("Uptime: got %v, want ~5m", uptime)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	states := demand.SwitchStates{16: demand.On}
	tr.UpdateSwitches(states, true, demand.EventCounts{16: {On: 1}})
	tr.AddActuator(0, "", "linear")

	snap := tr.Snapshot()
	snap.Switches[16] = demand.Off
	snap.Counts[16] = demand.SwitchCounts{On: 99}
	snap.Actuators[0].Moves = 42

	again := tr.Snapshot()
	if again.Switches[16] != demand.On {
		t.Error("Switches shared with snapshot")
	}
	if again.Counts[16].On != 1 {
		t.Error("Counts shared with snapshot")
	}
	if again.Actuators[0].Moves != 0 {
		t.Error("Actuators shared with snapshot")
	}
}

func sampleSnapshot() Snapshot {
	start := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	return Snapshot{
		Actuators: []Actuator{
			{ID: 0, Name: "yard throat", Profile: "linear", State: demand.On, Position: 2_000_000, Moves: 4,
				LastMove: time.Date(2026, 2, 1, 12, 30, 0, 0, time.UTC)},
			{ID: 1, Profile: "semaphore", State: demand.Unset},
		},
		Switches:      demand.SwitchStates{17: demand.Off, 16: demand.On},
		Baselined:     true,
		Counts:        demand.EventCounts{16: {On: 2, Off: 1}},
		QueueLen:      0,
		QueueCap:      4,
		StartTime:     start,
		Now:           start.Add(90*time.Minute + 500*time.Millisecond),
		MQTTConnected: true,
		Config:        testConfig(),
	}
}

func TestFormatJSON(t *testing.T) {
	data := FormatJSON(sampleSnapshot())

	var sj StatusJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := sj.Status

	if s.Event != "" || s.Reason != "" {
		t.Errorf("web JSON should carry no event, got %q/%q", s.Event, s.Reason)
	}
	if !s.Ready {
		t.Error("expected ready=true")
	}
	if s.UptimeSeconds != 5400 {
		t.Errorf("uptime_seconds: got %d, want 5400", s.UptimeSeconds)
	}
	if s.StartTime != "2026-02-01T12:00:00Z" {
		t.Errorf("start_time: got %s", s.StartTime)
	}
	if len(s.Actuators) != 2 {
		t.Fatalf("actuators: got %d", len(s.Actuators))
	}
	if a := s.Actuators[0]; a.State != "ON" || a.PositionNs != 2_000_000 || a.LastMove != "2026-02-01T12:30:00Z" {
		t.Errorf("actuator 0: %+v", a)
	}
	if a := s.Actuators[1]; a.State != "UNKNOWN" || a.LastMove != "" {
		t.Errorf("actuator 1: %+v", a)
	}
	if len(s.Switches) != 2 || s.Switches[0].Pin != 16 || s.Switches[1].Pin != 17 {
		t.Fatalf("switches: %+v", s.Switches)
	}
	if s.Switches[0].State != "ON" || s.Switches[0].On != 2 || s.Switches[0].Off != 1 {
		t.Errorf("switch 16: %+v", s.Switches[0])
	}
	if s.Queue.Capacity != 4 {
		t.Errorf("queue capacity: got %d", s.Queue.Capacity)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("mqtt: %+v", s.MQTT)
	}
	if s.Config.Summary == "" || s.Config.PollMs != 100 {
		t.Errorf("config: %+v", s.Config)
	}
}

func TestFormatJSONEmptyListsNotNull(t *testing.T) {
	data := FormatJSON(Snapshot{})
	if !strings.Contains(string(data), `"actuators": []`) {
		t.Errorf("expected empty actuators array:\n%s", data)
	}
	if !strings.Contains(string(data), `"switches": []`) {
		t.Errorf("expected empty switches array:\n%s", data)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	data := FormatStatusEvent(sampleSnapshot(), "SHUTDOWN", "SIGTERM")

	if strings.Contains(string(data), "\n") {
		t.Error("MQTT payload should be compact")
	}
	var sj StatusJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if sj.Status.Event != "SHUTDOWN" || sj.Status.Reason != "SIGTERM" {
		t.Errorf("event/reason: got %q/%q", sj.Status.Event, sj.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	data := FormatStatusEvent(sampleSnapshot(), "HEARTBEAT", "")
	if strings.Contains(string(data), `"reason"`) {
		t.Errorf("expected reason to be omitted: %s", data)
	}
	if !strings.Contains(string(data), `"event":"HEARTBEAT"`) {
		t.Errorf("expected HEARTBEAT event: %s", data)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.UpdateSwitches(demand.SwitchStates{16: demand.StateOf(j % 2)}, true, demand.EventCounts{16: {On: j}})
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.RecordMove(i, demand.On, time.Now())
				tr.SetQueue(j%4, 4)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = FormatJSON(tr.Snapshot())
			}
		}()
	}
	wg.Wait()

	snap := tr.Snapshot()
	if len(snap.Actuators) != 10 {
		t.Errorf("expected 10 actuators, got %d", len(snap.Actuators))
	}
	for _, a := range snap.Actuators {
		if a.Moves != 100 {
			t.Errorf("actuator %d: Moves %d, want 100", a.ID, a.Moves)
		}
	}
}
