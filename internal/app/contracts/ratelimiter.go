package contracts

import (
	"context"
	"time"
)

// ApplyResourceLimiterInput configures limiter evaluation.
type ApplyResourceLimiterInput struct {
	// ResourceName is the entity to be limited, e.g. a sender within an appointment.
	ResourceName string
	// LimiterGroupName namespaces the limiter key.
	LimiterGroupName  string
	WindowDurationSec int
	// MaxQuota is the max number of requests allowed within the window. Zero disables the limit.
	MaxQuota int
	// NowUTC is optional; if zero, time.Now().UTC() is used.
	NowUTC time.Time
}

type ApplyResourceLimiterOutput struct {
	Allowed        bool
	RetryAfterSecs int
}

type ResourceLimiter interface {
	ApplyResourceLimiter(ctx context.Context, input *ApplyResourceLimiterInput) (*ApplyResourceLimiterOutput, error)
}
