package health

import "context"

// Pinger is implemented by the database client, the redis client and the
// kafka producer.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports down when p cannot be reached.
func PingCheck(p Pinger) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := p.Ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// Optional downgrades a failing check from down to degraded, for
// dependencies the service can run without.
func Optional(check Check) Check {
	return func(ctx context.Context) ComponentHealth {
		result := check(ctx)
		if result.Status == StatusDown {
			result.Status = StatusDegraded
		}
		return result
	}
}
