// Command points-servo drives model railway point servos from toggle
// switches and reports each move over MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/sweeney/points-servo/internal/config"
	"github.com/sweeney/points-servo/internal/console"
	"github.com/sweeney/points-servo/internal/mqtt"
	"github.com/sweeney/points-servo/internal/status"
	"github.com/sweeney/points-servo/internal/switches"
	"github.com/sweeney/points-servo/internal/web"
)

func main() {
	var o options
	flag.StringVar(&o.layout, "config", "/etc/points-servo/layout.yaml", "Layout file (YAML or JSON)")
	flag.DurationVar(&o.poll, "poll", 50*time.Millisecond, "Switch polling interval")
	flag.DurationVar(&o.debounce, "debounce", switches.DefaultWindow, "Window the debounce samples are spread over")
	flag.IntVar(&o.samples, "samples", switches.DefaultSamples, "Samples per debounced switch read")
	flag.StringVar(&o.broker, "broker", "", "MQTT broker address (empty to disable)")
	flag.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	flag.StringVar(&o.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	flag.IntVar(&o.queue, "queue", 4, "Demand queue capacity")
	flag.StringVar(&o.chip, "chip", "gpiochip0", "GPIO character device")
	flag.BoolVar(&o.mdns, "mdns", false, "Advertise the HTTP status page over mDNS")
	flag.BoolVar(&o.console, "console", false, "Start the interactive console")
	flag.BoolVar(&o.dryRun, "dry-run", false, "Drive simulated hardware instead of GPIO")
	flag.Parse()
	defer glog.Flush()

	if err := run(o); err != nil {
		glog.Exitf("fatal: %v", err)
	}
}

func run(o options) error {
	cfg, err := config.Load(o.layout)
	if err != nil {
		return err
	}
	glog.Infof("layout %s: %s", o.layout, cfg.Summary())

	var hw hardware
	if o.dryRun {
		hw = newSimHardware()
	} else {
		chip, err := openRealHardware(o.chip)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		hw = chip
	}
	defer func() {
		if err := hw.Close(); err != nil {
			glog.Warningf("close hardware: %v", err)
		}
	}()

	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	if o.broker != "" {
		client, err := mqtt.NewRealPublisher(o.broker, mqtt.DefaultBacklog)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher = mqtt.NewBreakerPublisher(client, mqtt.BreakerConfig{})
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      o.poll.Milliseconds(),
		DebounceMs:  o.debounce.Milliseconds(),
		HeartbeatMs: o.heartbeat.Milliseconds(),
		Broker:      o.broker,
		HTTPAddr:    o.httpAddr,
		Layout:      o.layout,
		Summary:     cfg.Summary(),
	})

	d, err := newDaemon(cfg, hw, publisher, tracker, o)
	if err != nil {
		return err
	}
	d.start()

	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				glog.Errorf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		glog.Infof("http status server listening on %s", o.httpAddr)

		if o.mdns {
			host, _ := os.Hostname()
			ad, err := web.Advertise(mqtt.AppID+" "+host, o.httpAddr, map[string]string{
				"path":    "/",
				"summary": cfg.Summary(),
			})
			if err != nil {
				glog.Warningf("mdns: %v", err)
			} else {
				defer ad.Shutdown()
			}
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if o.console {
		c := console.New(d.queue, cfg.Switches, tracker)
		go func() {
			c.Run()
			glog.Infof("console closed")
		}()
		defer c.Close()
	}

	glog.Infof("started: poll=%v debounce=%v/%d queue=%d broker=%q heartbeat=%v",
		o.poll, o.debounce, o.samples, o.queue, o.broker, o.heartbeat)
	return d.serve(sigCh)
}
