package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jpalmerr/gnos/internal/facts"
)

// Report is a validated modeler report.
type Report struct {
	// Devices is keyed by device address.
	Devices map[string]Device
	Alerts  []AlertReport
}

// Device is what a modeler knows about one device.
type Device struct {
	Facts   map[string]facts.Value
	Samples map[string]float64
}

// AlertReport opens or closes one alert.
type AlertReport struct {
	Device     string
	ID         string
	Level      facts.Level
	Mesg       string
	Resolution string
	Open       bool
}

type wireReport struct {
	Devices map[string]wireDevice `json:"devices"`
	Alerts  []wireAlert           `json:"alerts"`
}

type wireDevice struct {
	Facts   map[string]any `json:"facts"`
	Samples map[string]any `json:"samples"`
}

type wireAlert struct {
	Device     string `json:"device"`
	ID         string `json:"id"`
	Level      string `json:"level"`
	Mesg       string `json:"mesg"`
	Resolution string `json:"resolution"`
	State      string `json:"state"`
}

// ParseReport decodes and validates a report. Every problem found is
// reported, not just the first.
func ParseReport(data []byte) (*Report, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var w wireReport
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("malformed report: %w", err)
	}

	var errs []error
	report := &Report{Devices: make(map[string]Device, len(w.Devices))}

	for addr, wd := range w.Devices {
		if addr == "" {
			errs = append(errs, errors.New("device with empty address"))
			continue
		}
		d := Device{
			Facts:   make(map[string]facts.Value, len(wd.Facts)),
			Samples: make(map[string]float64, len(wd.Samples)),
		}
		for key, raw := range wd.Facts {
			v, err := factValue(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("device %s fact %q: %w", addr, key, err))
				continue
			}
			d.Facts[key] = v
		}
		for name, raw := range wd.Samples {
			n, ok := raw.(json.Number)
			if !ok {
				errs = append(errs, fmt.Errorf("device %s sample %q: not a number", addr, name))
				continue
			}
			f, err := n.Float64()
			if err != nil {
				errs = append(errs, fmt.Errorf("device %s sample %q: %w", addr, name, err))
				continue
			}
			d.Samples[name] = f
		}
		report.Devices[addr] = d
	}

	for i, wa := range w.Alerts {
		a, err := alertReport(wa)
		if err != nil {
			errs = append(errs, fmt.Errorf("alert %d: %w", i, err))
			continue
		}
		report.Alerts = append(report.Alerts, a)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return report, nil
}

func factValue(raw any) (facts.Value, error) {
	switch t := raw.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return facts.Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return facts.Value{}, err
		}
		return facts.FromNative(f)
	case string, bool:
		return facts.FromNative(t)
	default:
		return facts.Value{}, fmt.Errorf("unsupported value of type %T", raw)
	}
}

func alertReport(wa wireAlert) (AlertReport, error) {
	if wa.Device == "" || wa.ID == "" {
		return AlertReport{}, errors.New("device and id are required")
	}

	a := AlertReport{
		Device:     wa.Device,
		ID:         wa.ID,
		Mesg:       wa.Mesg,
		Resolution: wa.Resolution,
	}
	switch wa.State {
	case "open", "":
		a.Open = true
	case "closed":
	default:
		return AlertReport{}, fmt.Errorf("unknown state %q", wa.State)
	}

	// the level only matters for opening
	if a.Open {
		level, err := facts.ParseLevel(wa.Level)
		if err != nil {
			return AlertReport{}, err
		}
		a.Level = level
	}
	return a, nil
}
