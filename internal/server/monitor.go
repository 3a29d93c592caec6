package server

import (
	"context"

	"LabSentry/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// MonitorServer adapts the power monitor's polling loop to the Kratos
// transport.Server lifecycle so it starts and stops with the app.
type MonitorServer struct {
	monitor *biz.PowerMonitor
	cancel  context.CancelFunc
	logger  *log.Helper
}

// NewMonitorServer wraps the power monitor for the app server list.
func NewMonitorServer(monitor *biz.PowerMonitor, logger log.Logger) *MonitorServer {
	return &MonitorServer{
		monitor: monitor,
		logger:  log.NewHelper(logger),
	}
}

// Start runs the polling loop until Stop cancels it.
func (s *MonitorServer) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.logger.Info("power monitor starting")
	return s.monitor.Run(ctx)
}

// Stop cancels the polling loop.
func (s *MonitorServer) Stop(_ context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("power monitor stopped")
	return nil
}
