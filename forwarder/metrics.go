package forwarder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/relex/udpc-agent/base"
	"github.com/relex/udpc-agent/util"
)

// forwarderMetrics defines the metrics of producer and sender sides
type forwarderMetrics struct {
	submittedRecordsTotal   prometheus.Counter
	truncatedRecordsTotal   prometheus.Counter
	overwrittenRecordsTotal prometheus.Counter
	bufferedRecords         prometheus.Gauge
	drainCyclesTotal        prometheus.Counter
	forwardedRecordsTotal   prometheus.Counter
	forwardedBytesTotal     prometheus.Counter
	networkErrorsTotal      prometheus.Counter
	nonNetworkErrorsTotal   prometheus.Counter
	reconfigSuccessTotal    prometheus.Counter
	reconfigFailureTotal    prometheus.Counter
}

func newForwarderMetrics(metricFactory *base.MetricFactory) forwarderMetrics {
	errors := metricFactory.AddOrGetCounterVec("send_errors_total", "Numbers of failed record sending", []string{"class"}, nil)
	reconfigs := metricFactory.AddOrGetCounterVec("reconfigurations_total", "Numbers of destination changes", []string{"status"}, nil)

	metrics := forwarderMetrics{
		submittedRecordsTotal:   metricFactory.AddOrGetCounter("submitted_records_total", "Numbers of records submitted by log sources", nil, nil),
		truncatedRecordsTotal:   metricFactory.AddOrGetCounter("truncated_records_total", "Numbers of oversized records truncated on submission", nil, nil),
		overwrittenRecordsTotal: metricFactory.AddOrGetCounter("overwritten_records_total", "Numbers of unsent records dropped for new records when buffer is full", nil, nil),
		bufferedRecords:         metricFactory.AddOrGetGauge("buffered_records", "Numbers of records in buffer at the end of last drain", nil, nil),
		drainCyclesTotal:        metricFactory.AddOrGetCounter("drain_cycles_total", "Numbers of drain cycles by sender", nil, nil),
		forwardedRecordsTotal:   metricFactory.AddOrGetCounter("forwarded_records_total", "Numbers of records sent to destination", nil, nil),
		forwardedBytesTotal:     metricFactory.AddOrGetCounter("forwarded_bytes_total", "Total length in bytes of records sent to destination", nil, nil),
		networkErrorsTotal:      errors.WithLabelValues("network"),
		nonNetworkErrorsTotal:   errors.WithLabelValues("other"),
		reconfigSuccessTotal:    reconfigs.WithLabelValues("success"),
		reconfigFailureTotal:    reconfigs.WithLabelValues("failure"),
	}
	metrics.bufferedRecords.Set(0)
	return metrics
}

func (metrics *forwarderMetrics) OnSubmitted(truncated bool, overwritten bool) {
	metrics.submittedRecordsTotal.Inc()
	if truncated {
		metrics.truncatedRecordsTotal.Inc()
	}
	if overwritten {
		metrics.overwrittenRecordsTotal.Inc()
	}
}

func (metrics *forwarderMetrics) OnForwarded(length int) {
	metrics.forwardedRecordsTotal.Inc()
	metrics.forwardedBytesTotal.Add(float64(length))
}

func (metrics *forwarderMetrics) OnError(err error) {
	if util.IsNetworkError(err) {
		metrics.networkErrorsTotal.Inc()
	} else {
		metrics.nonNetworkErrorsTotal.Inc()
	}
}

func (metrics *forwarderMetrics) OnDrained(remaining int) {
	metrics.drainCyclesTotal.Inc()
	metrics.bufferedRecords.Set(float64(remaining))
}

func (metrics *forwarderMetrics) OnReconfigured(err error) {
	if err != nil {
		metrics.reconfigFailureTotal.Inc()
	} else {
		metrics.reconfigSuccessTotal.Inc()
	}
}
