// Package console provides an interactive shell for commissioning a layout.
// Its switch command queues observations exactly as a toggle switch would.
package console

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/sweeney/points-servo/internal/buffer"
	"github.com/sweeney/points-servo/internal/demand"
	"github.com/sweeney/points-servo/internal/motion"
	"github.com/sweeney/points-servo/internal/status"
)

// Source marks observations queued from the console.
const Source = "console"

const prompt = "points> "

// Console is an ishell shell bound to the demand queue.
type Console struct {
	Shell *ishell.Shell

	queue    *buffer.Channel[demand.Observation]
	tracker  *status.Tracker
	bindings demand.SwitchMap
	now      func() time.Time
}

// New creates a Console. tracker may be nil.
func New(queue *buffer.Channel[demand.Observation], bindings demand.SwitchMap, tracker *status.Tracker) *Console {
	c := newConsole(queue, bindings, tracker)
	c.Shell = ishell.New()
	c.Shell.SetPrompt(prompt)
	for _, cmd := range c.commands() {
		c.Shell.AddCmd(cmd)
	}
	return c
}

func newConsole(queue *buffer.Channel[demand.Observation], bindings demand.SwitchMap, tracker *status.Tracker) *Console {
	return &Console{
		queue:    queue,
		tracker:  tracker,
		bindings: bindings,
		now:      time.Now,
	}
}

// Run starts the interactive shell. It returns when the user exits.
func (c *Console) Run() {
	c.Shell.Run()
}

// Close stops the shell.
func (c *Console) Close() {
	c.Shell.Close()
}

func (c *Console) commands() []*ishell.Cmd {
	return []*ishell.Cmd{
		{
			Name:    "switch",
			Aliases: []string{"sw"},
			Help:    "PIN on|off",
			Func:    c.wrap(c.Switch),
		},
		{
			Name:    "status",
			Aliases: []string{"st"},
			Help:    "show servo and switch states",
			Func:    c.wrap(func([]string) (string, error) { return c.Status(), nil }),
		},
		{
			Name:    "queue",
			Aliases: []string{"q"},
			Help:    "show demand queue",
			Func:    c.wrap(func([]string) (string, error) { return c.Queue(), nil }),
		},
		{
			Name: "profiles",
			Help: "list motion profiles",
			Func: c.wrap(func([]string) (string, error) { return Profiles(), nil }),
		},
	}
}

func (c *Console) wrap(fn func(args []string) (string, error)) func(*ishell.Context) {
	return func(ctx *ishell.Context) {
		out, err := fn(ctx.Args)
		if err != nil {
			ctx.Err(err)
			return
		}
		if out != "" {
			ctx.Print(out)
		}
	}
}

// Switch queues an observation setting one switch. Args are PIN and
// on|off. It blocks while the queue is full.
func (c *Console) Switch(args []string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("usage: switch PIN on|off")
	}
	pin, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("invalid PIN: %v", err)
	}
	if _, ok := c.bindings[pin]; !ok {
		return "", fmt.Errorf("switch %d is not configured", pin)
	}
	state, err := demand.ParseState(args[1])
	if err != nil {
		return "", err
	}

	c.queue.Put(demand.Observation{
		Time:     c.now(),
		Source:   Source,
		Switches: demand.SwitchStates{pin: state},
	})
	return fmt.Sprintf("switch %d %s queued (servos %v)\n", pin, state, c.bindings[pin]), nil
}

// Status renders the tracker snapshot.
func (c *Console) Status() string {
	if c.tracker == nil {
		return "no status available\n"
	}
	snap := c.tracker.Snapshot()

	var w bytes.Buffer
	fmt.Fprintf(&w, "uptime %v, mqtt connected: %v\n", snap.Uptime().Truncate(time.Second), snap.MQTTConnected)
	for _, a := range snap.Actuators {
		fmt.Fprintf(&w, "servo %-3d %-7s %7dns %-9s moves=%d", a.ID, a.State, a.Position, a.Profile, a.Moves)
		if a.Name != "" {
			fmt.Fprintf(&w, " %s", a.Name)
		}
		w.WriteByte('\n')
	}
	for _, pin := range snap.SwitchPins() {
		fmt.Fprintf(&w, "switch %-3d %s\n", pin, snap.Switches[pin])
	}
	return w.String()
}

// Queue renders the demand queue contents, oldest first.
func (c *Console) Queue() string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "%s\n", c.queue)
	for i, obs := range c.queue.Items() {
		if obs.Stop {
			fmt.Fprintf(&w, "%d: stop\n", i)
			continue
		}
		fmt.Fprintf(&w, "%d: %s %v\n", i, obs.Source, obs.Switches)
	}
	return w.String()
}

// Profiles lists the motion profile names.
func Profiles() string {
	var w bytes.Buffer
	for _, p := range motion.Profiles() {
		fmt.Fprintln(&w, p)
	}
	return w.String()
}
