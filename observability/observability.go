// Package observability forwards failure metrics to a Sender carried in the context.
package observability

import "context"

var listErrorMetricType int
var lockErrorMetricType int

type Sender interface {
	AddMetrics(metrics ...map[string]interface{})
	AddDistinctMetrics(errType interface{}, metrics ...map[string]interface{})
}

// SetupMetricTypes sets the distinct error types the Sender groups metrics under.
func SetupMetricTypes(listErrorType, lockErrorType int) {
	listErrorMetricType = listErrorType
	lockErrorMetricType = lockErrorType
}

type senderKey struct{}

func NewContextWithObservabilitySender(ctx context.Context, sender Sender) context.Context {
	return context.WithValue(ctx, senderKey{}, sender)
}

func getObservabilitySenderFromContext(ctx context.Context) (Sender, bool) {
	sender, ok := ctx.Value(senderKey{}).(Sender)

	return sender, ok && sender != nil
}
