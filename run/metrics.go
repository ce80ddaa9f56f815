package run

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/relex/udpc-agent/base"
)

type reloadMetrics struct {
	successCounter prometheus.Counter
	failureCounter prometheus.Counter
}

func newReloadMetrics(factory *base.MetricFactory) reloadMetrics {
	vec := factory.AddOrGetCounterVec("reloads_total", "Numbers of config reloads", []string{"status"}, nil)
	return reloadMetrics{
		successCounter: vec.WithLabelValues("success"),
		failureCounter: vec.WithLabelValues("failure"),
	}
}
