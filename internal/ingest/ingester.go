package ingest

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/jpalmerr/gnos/internal/facts"
	"github.com/jpalmerr/gnos/internal/model"
)

// Store names written by the ingester.
const (
	PrimaryStore = "primary"
	AlertsStore  = "alerts"
)

// DeviceSubject returns the subject under which a device's facts are stored.
func DeviceSubject(addr string) string {
	return "devices:" + addr
}

// FactModel is the part of the fact model the ingester writes to.
type FactModel interface {
	Update(store string, fn model.UpdateFunc, payload string) bool
}

// SampleModel is the part of the sample model the ingester writes to.
type SampleModel interface {
	AddSample(owner, name string, value float64, capacity int) bool
}

// Ingester turns modeler reports into fact updates and samples.
type Ingester struct {
	facts    FactModel
	samples  SampleModel
	capacity int
	logger   *slog.Logger
	now      func() time.Time
}

// NewIngester creates an ingester. capacity is the size of every sample set
// it creates.
func NewIngester(f FactModel, s SampleModel, capacity int, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{
		facts:    f,
		samples:  s,
		capacity: capacity,
		logger:   logger,
		now:      time.Now,
	}
}

// Ingest applies one report received from source.
//
// A malformed report is logged and dropped as a whole. The returned error is
// informational: callers relaying reports from modelers do not pass it on.
func (i *Ingester) Ingest(source string, body []byte) error {
	report, err := ParseReport(body)
	if err != nil {
		i.logger.Warn("dropping malformed report", "source", source, "error", err)
		return fmt.Errorf("report from %s: %w", source, err)
	}

	if len(report.Devices) > 0 {
		i.facts.Update(PrimaryStore, i.updateDevices(report.Devices), source)
	}
	if len(report.Alerts) > 0 {
		i.facts.Update(AlertsStore, i.updateAlerts(report.Alerts), source)
	}

	added := 0
	for _, addr := range slices.Sorted(maps.Keys(report.Devices)) {
		d := report.Devices[addr]
		for _, name := range slices.Sorted(maps.Keys(d.Samples)) {
			i.samples.AddSample(addr, name, d.Samples[name], i.capacity)
			added++
		}
	}

	i.logger.Debug("report ingested",
		"source", source,
		"devices", len(report.Devices),
		"alerts", len(report.Alerts),
		"samples", added,
	)
	return nil
}

// updateDevices replaces each reported fact, so replaying a report leaves the
// store unchanged.
func (i *Ingester) updateDevices(devices map[string]Device) model.UpdateFunc {
	return func(s *facts.Store, source string) bool {
		changed := false
		for _, addr := range slices.Sorted(maps.Keys(devices)) {
			subject := DeviceSubject(addr)
			d := devices[addr]
			for _, key := range slices.Sorted(maps.Keys(d.Facts)) {
				if s.Replace(subject, "snmp:"+key, d.Facts[key]) {
					changed = true
				}
			}
		}
		if changed {
			i.logger.Debug("device facts changed", "source", source, "store", s.Name())
		}
		return changed
	}
}

func (i *Ingester) updateAlerts(alerts []AlertReport) model.UpdateFunc {
	return func(s *facts.Store, source string) bool {
		now := i.now()
		changed := false
		for _, a := range alerts {
			device := DeviceSubject(a.Device)
			if a.Open {
				changed = facts.OpenAlert(s, facts.Alert{
					Device:     device,
					ID:         a.ID,
					Level:      a.Level,
					Mesg:       a.Mesg,
					Resolution: a.Resolution,
				}, now) || changed
			} else {
				changed = facts.CloseAlert(s, device, a.ID, now) || changed
			}
		}
		if changed {
			i.logger.Debug("alerts changed", "source", source)
		}
		return changed
	}
}
