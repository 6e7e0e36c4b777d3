package registry

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultPrefix      = "/retrosheet"
	DefaultDialTimeout = 5 * time.Second
)

type options struct {
	logger       *zap.Logger
	prefix       string
	dialTimeout  time.Duration
	refreshLimit rate.Limit
	refreshBurst int
}

func defaultOptions() options {
	return options{
		logger:       zap.NewNop(),
		prefix:       DefaultPrefix,
		dialTimeout:  DefaultDialTimeout,
		refreshLimit: rate.Every(200 * time.Millisecond),
		refreshBurst: 1,
	}
}

type Option func(*options)

// WithLogger sets the logger used by the registry and the etcd client.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPrefix sets the key prefix services are stored under.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = "/" + strings.Trim(prefix, "/")
	}
}

// WithDialTimeout bounds how long connecting to etcd may take.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

// WithRefreshLimit bounds how often Watch re-reads the instance list.
// Events that arrive while the limiter is waiting collapse into one refresh.
func WithRefreshLimit(limit rate.Limit, burst int) Option {
	return func(o *options) {
		o.refreshLimit = limit
		o.refreshBurst = burst
	}
}
