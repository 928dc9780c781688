// Package config loads the layout file describing servos, relays and the
// switches that drive them.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/points-servo/internal/demand"
	"github.com/sweeney/points-servo/internal/gpio"
	"github.com/sweeney/points-servo/internal/motion"
	"github.com/sweeney/points-servo/internal/servo"
)

// Fallbacks applied when a value is missing or unusable.
const (
	DefaultTransition = time.Second
	DefaultSettle     = 500 * time.Millisecond
)

// File is the on-disk layout. Field names are shared by the JSON and YAML
// forms.
type File struct {
	PWMFrequencyHz int             `json:"pwm_frequency_hz" yaml:"pwm_frequency_hz"`
	Steps          int             `json:"steps" yaml:"steps"`
	SettleSeconds  float64         `json:"settle_seconds" yaml:"settle_seconds"`
	Actuators      []ActuatorEntry `json:"actuators" yaml:"actuators"`
	Switches       []SwitchEntry   `json:"switches" yaml:"switches"`
}

// ActuatorEntry describes one servo.
type ActuatorEntry struct {
	ID                int     `json:"id" yaml:"id"`
	Pin               int     `json:"pin" yaml:"pin"`
	RelayPin          *int    `json:"relay_pin,omitempty" yaml:"relay_pin,omitempty"`
	OffDegrees        float64 `json:"off_degrees" yaml:"off_degrees"`
	OnDegrees         float64 `json:"on_degrees" yaml:"on_degrees"`
	TransitionSeconds float64 `json:"transition_seconds" yaml:"transition_seconds"`
	Profile           string  `json:"profile" yaml:"profile"`
	Initial           string  `json:"initial" yaml:"initial"`
	Name              string  `json:"name,omitempty" yaml:"name,omitempty"`
	Steps             *int    `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// SwitchEntry binds one switch input to the servos it drives.
type SwitchEntry struct {
	Pin       int   `json:"pin" yaml:"pin"`
	Actuators []int `json:"actuators" yaml:"actuators"`
}

// Actuator is a resolved servo description.
type Actuator struct {
	Settings servo.Settings
	Name     string
	Pin      int
	RelayPin int // -1 if none
	Initial  demand.State
}

// Config is the resolved, validated layout. It is immutable after Resolve.
type Config struct {
	Hz        int
	Steps     int
	Settle    time.Duration
	Actuators []Actuator
	Switches  demand.SwitchMap
}

// Load reads and resolves the layout at path. Files ending in .yaml or .yml
// are parsed as YAML, anything else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	f, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return Resolve(f)
}

// Parse decodes data according to ext (".yaml", ".yml" or anything else
// for JSON).
func Parse(data []byte, ext string) (*File, error) {
	var f File
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	return &f, nil
}

// Resolve validates f and converts it to a Config. Unusable values fall back
// to defaults with a warning; structural problems are errors.
func Resolve(f *File) (*Config, error) {
	if len(f.Actuators) == 0 {
		return nil, errors.New("config: no actuators")
	}

	cfg := &Config{
		Hz:       f.PWMFrequencyHz,
		Steps:    f.Steps,
		Settle:   time.Duration(f.SettleSeconds * float64(time.Second)),
		Switches: make(demand.SwitchMap, len(f.Switches)),
	}
	if cfg.Hz <= 0 {
		if f.PWMFrequencyHz != 0 {
			glog.Warningf("config: pwm_frequency_hz %d invalid, using %d", f.PWMFrequencyHz, gpio.ServoHz)
		}
		cfg.Hz = gpio.ServoHz
	}
	if cfg.Steps <= 0 {
		if f.Steps != 0 {
			glog.Warningf("config: steps %d invalid, using %d", f.Steps, servo.DefaultSteps)
		}
		cfg.Steps = servo.DefaultSteps
	}
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}

	ids := make(map[int]bool, len(f.Actuators))
	pins := make(map[int]int)
	for _, e := range f.Actuators {
		if ids[e.ID] {
			return nil, fmt.Errorf("config: duplicate actuator id %d", e.ID)
		}
		ids[e.ID] = true
		if other, used := pins[e.Pin]; used {
			return nil, fmt.Errorf("config: actuator %d: pin %d already used by actuator %d", e.ID, e.Pin, other)
		}
		pins[e.Pin] = e.ID

		a, err := resolveActuator(e, cfg)
		if err != nil {
			return nil, err
		}
		cfg.Actuators = append(cfg.Actuators, a)
	}
	sort.Slice(cfg.Actuators, func(i, j int) bool {
		return cfg.Actuators[i].Settings.ID < cfg.Actuators[j].Settings.ID
	})

	for _, s := range f.Switches {
		if _, dup := cfg.Switches[s.Pin]; dup {
			return nil, fmt.Errorf("config: duplicate switch pin %d", s.Pin)
		}
		for _, id := range s.Actuators {
			if !ids[id] {
				return nil, fmt.Errorf("config: switch %d: unknown actuator %d", s.Pin, id)
			}
		}
		cfg.Switches[s.Pin] = append([]int(nil), s.Actuators...)
	}
	for id, sw := range demand.Conflicts(cfg.Switches) {
		glog.Warningf("config: actuator %d bound to switches %v; highest switch wins", id, sw)
	}
	return cfg, nil
}

func resolveActuator(e ActuatorEntry, cfg *Config) (Actuator, error) {
	off, ok := servo.PulseWidth(e.OffDegrees)
	if !ok {
		glog.Warningf("config: actuator %d: off_degrees %v out of range, using %v", e.ID, e.OffDegrees, servo.DegreesCenter)
	}
	on, ok := servo.PulseWidth(e.OnDegrees)
	if !ok {
		glog.Warningf("config: actuator %d: on_degrees %v out of range, using %v", e.ID, e.OnDegrees, servo.DegreesCenter)
	}

	transition := time.Duration(e.TransitionSeconds * float64(time.Second))
	if transition <= 0 {
		glog.Warningf("config: actuator %d: transition_seconds %v invalid, using %v", e.ID, e.TransitionSeconds, DefaultTransition)
		transition = DefaultTransition
	}

	profile := motion.Linear
	if e.Profile != "" {
		p, ok := motion.Parse(e.Profile)
		if !ok {
			glog.Warningf("config: actuator %d: unknown profile %q, using %s", e.ID, e.Profile, motion.Linear)
		}
		profile = p
	}

	steps := cfg.Steps
	if e.Steps != nil {
		if *e.Steps > 0 {
			steps = *e.Steps
		} else {
			glog.Warningf("config: actuator %d: steps %d invalid, using %d", e.ID, *e.Steps, cfg.Steps)
		}
	}

	initial := demand.Off
	if e.Initial != "" {
		s, err := demand.ParseState(e.Initial)
		if err != nil {
			return Actuator{}, fmt.Errorf("config: actuator %d: initial: %w", e.ID, err)
		}
		initial = s
	}

	relay := -1
	if e.RelayPin != nil {
		relay = *e.RelayPin
	}

	return Actuator{
		Settings: servo.Settings{
			ID:         e.ID,
			OffPulse:   off,
			OnPulse:    on,
			Transition: transition,
			Steps:      steps,
			Profile:    profile,
			Hz:         cfg.Hz,
		},
		Name:     e.Name,
		Pin:      e.Pin,
		RelayPin: relay,
		Initial:  initial,
	}, nil
}

// InitialStates returns the start-up state of every actuator.
func (c *Config) InitialStates() map[int]demand.State {
	out := make(map[int]demand.State, len(c.Actuators))
	for _, a := range c.Actuators {
		out[a.Settings.ID] = a.Initial
	}
	return out
}

// SwitchPins returns the configured switch pins in ascending order.
func (c *Config) SwitchPins() []int {
	pins := make([]int, 0, len(c.Switches))
	for p := range c.Switches {
		pins = append(pins, p)
	}
	sort.Ints(pins)
	return pins
}

// Summary returns a short human-readable description for logs and the
// status page.
func (c *Config) Summary() string {
	return fmt.Sprintf("%d actuators, %d switches, %dHz, %d steps", len(c.Actuators), len(c.Switches), c.Hz, c.Steps)
}
