package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestCounterVecReusesRegistered(t *testing.T) {
	opts := prometheus.CounterOpts{Namespace: Namespace, Subsystem: "test", Name: "reuse_total", Help: "test"}
	first := CounterVec(prometheus.NewCounterVec(opts, []string{"k"}))
	second := CounterVec(prometheus.NewCounterVec(opts, []string{"k"}))
	assert.Same(t, first, second)
}
