package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/icco/urack/internal/audio"
	"github.com/icco/urack/internal/config"
	"github.com/icco/urack/internal/midi"
	"github.com/icco/urack/internal/processor"
	"github.com/icco/urack/internal/transport"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	recordPath    string
	recordBPM     float64
	audition      bool
	waveName      string
	volume        float64
	statsInterval time.Duration
	forceBLE      bool
	forceUSB      bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Route MIDI without the settings screen and log what arrives",
	Long: `Route MIDI from the enabled transports to the outputs and log every event.

Transports come up enabled or disabled as stored in the settings file unless
--ble or --usb is given; overrides are not saved. Traffic counters and output
values are logged periodically.

Example:
  urack monitor --record take.mid --audition --wave saw
`,
	RunE: runMonitor,
}

func init() {
	f := monitorCmd.Flags()
	f.StringVarP(&recordPath, "record", "r", "", "write routed events to this Standard MIDI File on exit")
	f.Float64Var(&recordBPM, "bpm", 120, "tempo of the recording")
	f.BoolVarP(&audition, "audition", "a", false, "play routed notes on the default audio device")
	f.StringVar(&waveName, "wave", "sine", "audition oscillator: sine, square, saw or triangle")
	f.Float64Var(&volume, "volume", 0.3, "audition volume, 0 to 1")
	f.DurationVar(&statsInterval, "stats-interval", 5*time.Second, "how often to log traffic counters")
	f.BoolVar(&forceBLE, "ble", false, "override the stored Bluetooth enable flag for this run")
	f.BoolVar(&forceUSB, "usb", false, "override the stored USB enable flag for this run")
	rootCmd.AddCommand(monitorCmd)
}

// eventLog logs every event reaching the processor.
type eventLog struct {
	log logrus.FieldLogger
}

func (e eventLog) Event(ev midi.Event) {
	e.log.Info(ev.String())
}

func runMonitor(cmd *cobra.Command, args []string) error {
	log, closeLog, err := newLogger(false)
	if err != nil {
		return err
	}
	defer closeLog()

	opts := []processor.Option{processor.WithTap(eventLog{log: log})}

	var rec *processor.Recorder
	if recordPath != "" {
		rec = processor.NewRecorder(recordBPM)
		opts = append(opts, processor.WithTap(rec))
	}

	if audition {
		wave, err := audio.ParseWave(waveName)
		if err != nil {
			return err
		}
		synth, err := audio.NewSynth(wave, volume)
		if err != nil {
			return err
		}
		defer synth.Close()
		opts = append(opts, processor.WithVoice(synth))
	}

	r, err := newRack(log, opts...)
	if err != nil {
		return err
	}
	r.start()
	defer r.close()
	if cmd.Flags().Changed("ble") {
		r.gate.SetEnabled(transport.BLE, forceBLE)
	}
	if cmd.Flags().Changed("usb") {
		r.gate.SetEnabled(transport.USB, forceUSB)
	}

	for _, k := range []transport.Kind{transport.BLE, transport.USB} {
		log.WithFields(logrus.Fields{
			"transport": k,
			"enabled":   r.gate.IsEnabled(k),
		}).Info("transport state")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t := time.NewTicker(statsInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				r.logStats()
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	r.logStats()

	if rec != nil {
		if err := rec.WriteFile(recordPath); err != nil {
			return err
		}
		log.WithField("events", rec.Len()).Infof("wrote %s", recordPath)
	}
	return nil
}

func (r *rack) logStats() {
	for _, k := range []transport.Kind{transport.BLE, transport.USB} {
		st := r.router.Stats(k)
		r.log.WithFields(logrus.Fields{
			"transport": k,
			"connected": r.gate.IsConnected(k),
			"routed":    st.Routed,
			"dropped":   st.Dropped,
			"invalid":   st.Invalid,
		}).Info("traffic")
	}
	for i, o := range r.proc.Snapshot() {
		if o.Type == config.OutNone {
			continue
		}
		r.log.WithFields(logrus.Fields{
			"output":  i + 1,
			"type":    o.Type,
			"channel": o.Channel,
			"value":   o.Value,
		}).Debug("output")
	}
}
