// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package driver

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/usbarmory/armory-hashcrypt/api"
)

// Stats represents driver counters.
type Stats struct {
	BlocksFed      int
	BlocksDrained  int
	Completed      int
	Failed         int
	HardwareFaults int
}

type metrics struct {
	stats Stats

	blocksFed      prometheus.Counter
	blocksDrained  prometheus.Counter
	replies        *prometheus.CounterVec
	hardwareFaults prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		blocksFed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "hashcrypt",
				Name:      "blocks_fed_total",
				Help:      "Number of plaintext blocks written to the engine",
			},
		),
		blocksDrained: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "hashcrypt",
				Name:      "blocks_drained_total",
				Help:      "Number of ciphertext blocks written back to callers",
			},
		),
		replies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hashcrypt",
				Name:      "replies_total",
				Help:      "Number of replies by response code",
			},
			[]string{"code"},
		),
		hardwareFaults: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "hashcrypt",
				Name:      "hardware_faults_total",
				Help:      "Number of engine error interrupts",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.blocksFed, m.blocksDrained, m.replies, m.hardwareFaults)
	}

	return m
}

func (m *metrics) fed() {
	m.stats.BlocksFed++
	m.blocksFed.Inc()
}

func (m *metrics) drained() {
	m.stats.BlocksDrained++
	m.blocksDrained.Inc()
}

func (m *metrics) reply(rc api.ResponseCode) {
	if rc == api.Success {
		m.stats.Completed++
	} else {
		m.stats.Failed++
	}

	m.replies.WithLabelValues(rc.String()).Inc()
}

func (m *metrics) fault() {
	m.stats.HardwareFaults++
	m.hardwareFaults.Inc()
}
