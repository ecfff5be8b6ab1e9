package observability

import "context"

// AddListMetric records a failure reading or writing a uid list.
func AddListMetric(ctx context.Context, metric ...map[string]interface{}) {
	sender, ok := getObservabilitySenderFromContext(ctx)
	if !ok {
		return
	}

	sender.AddDistinctMetrics(listErrorMetricType, metric...)
}

// AddLockMetric records an abnormal lock outcome.
func AddLockMetric(ctx context.Context, metric ...map[string]interface{}) {
	sender, ok := getObservabilitySenderFromContext(ctx)
	if !ok {
		return
	}

	sender.AddDistinctMetrics(lockErrorMetricType, metric...)
}
