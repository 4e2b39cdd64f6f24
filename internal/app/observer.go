package app

import (
	"github.com/nhle/circuit-janitor/internal/metrics"
	"github.com/nhle/circuit-janitor/internal/provider"
	"github.com/nhle/circuit-janitor/internal/reconcile"
)

const (
	resultParsingError = "parsing_error"
	resultNotFound     = "not_found"
	resultError        = "error"
)

// metricsObserver counts reconciler outcomes in Prometheus.
type metricsObserver struct{}

func (metricsObserver) Applied(prov string, op provider.Operation, res reconcile.Result) {
	metrics.Notifications.WithLabelValues(prov, op.String(), string(res)).Inc()
}

func (metricsObserver) Failed(prov string, op provider.Operation, err error) {
	metrics.Notifications.WithLabelValues(prov, operationLabel(op), failureResult(err)).Inc()
	if provider.IsParsingError(err) {
		metrics.ParsingErrors.WithLabelValues(prov).Inc()
	}
}

// operationLabel names the operation of a failure. Messages that could not
// be classified have none.
func operationLabel(op provider.Operation) string {
	if op == 0 {
		return "unknown"
	}
	return op.String()
}

func failureResult(err error) string {
	switch {
	case provider.IsParsingError(err):
		return resultParsingError
	case reconcile.IsNotFound(err):
		return resultNotFound
	default:
		return resultError
	}
}
