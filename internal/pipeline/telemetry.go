package pipeline

import (
	"time"

	"github.com/hashicorp/go-metrics"
)

var (
	MetricSamplerPublished     = []string{"pisim", "sampler", "published"}
	MetricClassifierDecisions  = []string{"pisim", "classifier", "decisions"}
	MetricClassifierOracleTime = []string{"pisim", "classifier", "oracle", "ms"}
	MetricOracleRequests       = []string{"pisim", "oracle", "requests"}
	MetricOracleErrors         = []string{"pisim", "oracle", "error", "count"}
	MetricAggregatorDecisions  = []string{"pisim", "aggregator", "decisions"}
	MetricAggregatorEstimate   = []string{"pisim", "aggregator", "estimate"}
	MetricDriverReports        = []string{"pisim", "driver", "reports"}
)

type TelemetryLabel string

var (
	LabelInstance   TelemetryLabel = "instance"
	LabelClassifier TelemetryLabel = "classifier"
	LabelDecision   TelemetryLabel = "decision"
	LabelError      TelemetryLabel = "error"
)

func (lab TelemetryLabel) M(val string) metrics.Label {
	return metrics.Label{Name: string(lab), Value: val}
}

// labels returns the instance label followed by extra.
func (s Settings) labels(extra ...metrics.Label) []metrics.Label {
	return append([]metrics.Label{LabelInstance.M(s.Instance)}, extra...)
}

func sinceMillis(start time.Time) float32 {
	return float32(time.Since(start).Seconds() * 1000)
}
