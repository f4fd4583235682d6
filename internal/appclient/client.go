// Package appclient defines how the agent talks to the control plane and how
// periodic tasks against it are scheduled.
package appclient

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/mattjperez/micro-rdk/internal/robotconfig"
)

// ErrRequestTimeout is returned when the control plane did not answer in time.
var ErrRequestTimeout = errors.New("request timeout")

// Client is the control-plane contract the agent consumes.
type Client interface {
	// GetAppConfig fetches the robot configuration. cacheToken may be empty.
	GetAppConfig(ctx context.Context, cacheToken string) (*robotconfig.ConfigResponse, time.Time, error)
	GetAgentConfig(ctx context.Context) (*robotconfig.DeviceAgentConfig, error)
}

// PeriodicTask is work run repeatedly against the control plane. Invoke
// returns the delay before the next run.
type PeriodicTask interface {
	Name() string
	DefaultPeriod() time.Duration
	Invoke(ctx context.Context, client Client) (time.Duration, error)
}
