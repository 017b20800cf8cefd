package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// IntakeSnapshot is a point-in-time read of the intake counters, served to the
// back office.
type IntakeSnapshot struct {
	Registrations  map[string]float64 `json:"registrations"`
	EventsOK       float64            `json:"eventsOk"`
	EventsFailed   float64            `json:"eventsFailed"`
	MeanLatencySec float64            `json:"meanLatencySeconds"`
}

// SnapshotIntake reads the intake families from gatherer. Missing families
// read as zero.
func SnapshotIntake(gatherer prometheus.Gatherer) IntakeSnapshot {
	snap := IntakeSnapshot{Registrations: map[string]float64{}}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return snap
	}

	var (
		latencySum   float64
		latencyCount uint64
	)
	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case "kazdocs_intake_registrations_total":
			for _, metric := range mf.Metric {
				snap.Registrations[labelValue(metric, "outcome")] += metric.GetCounter().GetValue()
			}
		case "kazdocs_intake_events_published_total":
			for _, metric := range mf.Metric {
				if labelValue(metric, "status") == "ok" {
					snap.EventsOK += metric.GetCounter().GetValue()
				} else {
					snap.EventsFailed += metric.GetCounter().GetValue()
				}
			}
		case "kazdocs_intake_registration_latency_seconds":
			for _, metric := range mf.Metric {
				h := metric.GetHistogram()
				latencySum += h.GetSampleSum()
				latencyCount += h.GetSampleCount()
			}
		}
	}
	if latencyCount > 0 {
		snap.MeanLatencySec = latencySum / float64(latencyCount)
	}
	return snap
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
