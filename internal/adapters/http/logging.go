package http

import (
	"log/slog"
)

const (
	serviceName = "escrow-service"
)

func httpLogger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "http",
		"layer", "adapter",
	)
}
