package pipeline

import (
	"context"
	"fmt"
	"log"
	"strconv"
)

// Reporter receives each estimate consumed by the driver.
type Reporter interface {
	Report(r Report)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(r Report)

func (f ReporterFunc) Report(r Report) { f(r) }

// Driver requests N samples and consumes exactly N estimates.
type Driver struct {
	control   Pusher
	estimates Puller
	count     int
	reporter  Reporter
	settings  Settings
}

// NewDriver creates a driver that will request count samples.
func NewDriver(control Pusher, estimates Puller, count int, reporter Reporter, settings Settings) *Driver {
	return &Driver{
		control:   control,
		estimates: estimates,
		count:     count,
		reporter:  reporter,
		settings:  settings.withDefaults(),
	}
}

func (d *Driver) Kind() Kind { return KindDriver }
func (d *Driver) role()      {}

// Run sends the sample count and returns after the last estimate. Unlike the
// other roles it reports cancellation as an error, since it did not finish.
func (d *Driver) Run(ctx context.Context) error {
	if d.count <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSampleCount, d.count)
	}

	if err := d.control.Push(ctx, strconv.Itoa(d.count)); err != nil {
		return fmt.Errorf("failed to send sample count: %w", err)
	}
	logEvent(KindDriver, d.settings.Instance, "run_requested", map[string]interface{}{
		"count": d.count,
	})

	for i := 0; i < d.count; i++ {
		frames, err := d.estimates.Pull(ctx)
		if err != nil {
			return fmt.Errorf("failed to receive estimate %d of %d: %w", i+1, d.count, err)
		}

		report, err := ParseEstimate(frames)
		if err != nil {
			return err
		}
		if d.reporter != nil {
			d.reporter.Report(report)
		}
		d.settings.Sink.IncrCounterWithLabels(MetricDriverReports, 1, d.settings.labels())
	}

	log.Printf("[Driver] Received %d estimates", d.count)
	return nil
}
