// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for estimation runs and the read API.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	StageDuration *prometheus.HistogramVec
	Runs          *prometheus.CounterVec
	WorstRhat     *prometheus.GaugeVec
	NationalShare *prometheus.GaugeVec
	Acceptance    *prometheus.GaugeVec
	CacheLookups  *prometheus.CounterVec
}

// New registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mrpcast_stage_duration_seconds",
			Help:    "Duration of pipeline stages (ingest, fit, poststratify, validate, store)",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"stage"}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mrpcast_runs_total",
			Help: "Estimation runs by variant and outcome",
		}, []string{"variant", "status"}),
		WorstRhat: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mrpcast_worst_rhat",
			Help: "Largest split R-hat of the latest fit",
		}, []string{"variant"}),
		NationalShare: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mrpcast_national_share",
			Help: "Post-stratified national vote share of the latest run",
		}, []string{"variant"}),
		Acceptance: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mrpcast_sampler_acceptance_ratio",
			Help: "Metropolis acceptance rate of the latest fit by parameter block",
		}, []string{"block"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mrpcast_cache_lookups_total",
			Help: "Run snapshot cache lookups by result (hit, miss, error)",
		}, []string{"result"}),
	}
}

// ObserveStage records a stage duration.
// Call with time.Now() at the start of the stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// RecordRun counts a finished run; status is "ok" or the failure class.
func (m *Metrics) RecordRun(variant, status string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(variant, status).Inc()
}

func (m *Metrics) SetWorstRhat(variant string, rhat float64) {
	if m == nil {
		return
	}
	m.WorstRhat.WithLabelValues(variant).Set(rhat)
}

func (m *Metrics) SetNationalShare(variant string, share float64) {
	if m == nil {
		return
	}
	m.NationalShare.WithLabelValues(variant).Set(share)
}

// SetAcceptance records sampler acceptance rates keyed by block.
func (m *Metrics) SetAcceptance(rates map[string]float64) {
	if m == nil {
		return
	}
	for block, r := range rates {
		m.Acceptance.WithLabelValues(block).Set(r)
	}
}

func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
