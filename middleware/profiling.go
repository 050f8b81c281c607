package middleware

import (
	"github.com/duynhne/user-crud-service/config"
	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

var profiler *pyroscope.Profiler

// InitProfiling starts pushing profiles to Pyroscope. Profiler messages are
// routed through logger.
func InitProfiling(cfg config.ProfilingConfig, logger *zap.Logger) error {
	serviceName, namespace := detectServiceInfo(cfg.ServiceName)

	var err error
	profiler, err = pyroscope.Start(pyroscope.Config{
		ApplicationName: serviceName,
		ServerAddress:   cfg.Endpoint,
		Tags: map[string]string{
			"service":   serviceName,
			"namespace": namespace,
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
		Logger: logger.Named("pyroscope").Sugar(),
	})
	return err
}

// StopProfiling flushes and stops the profiler if it was started.
func StopProfiling() {
	if profiler != nil {
		_ = profiler.Stop()
	}
}
