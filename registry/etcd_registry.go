// Package registry keeps track of which addresses serve which service.
//
// The etcd implementation stores one key per instance:
//
//	Key:   {prefix}/{ServiceName}/{Addr}
//	Value: JSON-encoded ServiceInstance
//
// Registration uses TTL-based leases: if the process dies, the lease expires
// and the entry goes away on its own.
package registry

import (
	"context"

	"github.com/pkg/errors"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"retrosheet/codec"
)

// EtcdRegistry implements Registry on top of etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client
	opts   options
}

var _ Registry = (*EtcdRegistry)(nil)

func NewEtcdRegistry(endpoints []string, opts ...Option) (*EtcdRegistry, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: o.dialTimeout,
		Logger:      o.logger.Named("etcd"),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connect etcd %v", endpoints)
	}
	return &EtcdRegistry{client: c, opts: o}, nil
}

func (r *EtcdRegistry) servicePrefix(serviceName string) string {
	return r.opts.prefix + "/" + serviceName + "/"
}

func (r *EtcdRegistry) instanceKey(serviceName, addr string) string {
	return r.servicePrefix(serviceName) + addr
}

// Register stores instance under a lease of ttl seconds and keeps the lease
// alive until ctx is done. The lease ID stays local so one registry can
// register many instances concurrently.
func (r *EtcdRegistry) Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error {
	val, err := codec.Shared().Encode(instance)
	if err != nil {
		return errors.Wrapf(err, "encode instance %s", instance.Addr)
	}

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return errors.Wrap(err, "grant lease")
	}

	key := r.instanceKey(serviceName, instance.Addr)
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return errors.Wrapf(err, "put %s", key)
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return errors.Wrapf(err, "keep alive lease %x", lease.ID)
	}

	log := r.opts.logger.With(zap.String("key", key), zap.Int64("lease", int64(lease.ID)))
	log.Info("registered instance", zap.Int64("ttl", ttl))

	// The channel must be drained or the client starts dropping renewals.
	go func() {
		for range ch {
		}
		log.Debug("lease keep-alive stopped")
	}()
	return nil
}

// Deregister removes an instance before its lease runs out.
func (r *EtcdRegistry) Deregister(ctx context.Context, serviceName string, addr string) error {
	key := r.instanceKey(serviceName, addr)
	if _, err := r.client.Delete(ctx, key); err != nil {
		return errors.Wrapf(err, "delete %s", key)
	}
	r.opts.logger.Info("deregistered instance", zap.String("key", key))
	return nil
}

// Discover returns all currently registered instances for a service.
func (r *EtcdRegistry) Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error) {
	prefix := r.servicePrefix(serviceName)
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", prefix)
	}
	return decodeInstances(r.opts.logger, resp.Kvs), nil
}

// decodeInstances skips values that do not decode; one bad writer must not
// hide every other instance.
func decodeInstances(log *zap.Logger, kvs []*mvccpb.KeyValue) []ServiceInstance {
	instances := make([]ServiceInstance, 0, len(kvs))
	for _, kv := range kvs {
		var instance ServiceInstance
		if err := codec.Shared().Decode(kv.Value, &instance); err != nil {
			log.Warn("skipping malformed instance", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}
	return instances
}

// Watch emits the full instance list after changes under the service prefix.
// Refreshes are rate limited; events that pile up meanwhile produce a single
// refresh. The channel is closed when ctx is done.
func (r *EtcdRegistry) Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)
	prefix := r.servicePrefix(serviceName)
	w := watcher{
		limiter: rate.NewLimiter(r.opts.refreshLimit, r.opts.refreshBurst),
		log:     r.opts.logger.With(zap.String("prefix", prefix)),
		refresh: func(ctx context.Context) ([]ServiceInstance, error) {
			return r.Discover(ctx, serviceName)
		},
	}

	go w.run(ctx, r.client.Watch(ctx, prefix, clientv3.WithPrefix()), ch)
	return ch
}

// watcher turns etcd watch responses into throttled instance list refreshes.
type watcher struct {
	limiter *rate.Limiter
	log     *zap.Logger
	refresh func(ctx context.Context) ([]ServiceInstance, error)
}

// run consumes wc until it closes or ctx ends, then closes out.
func (w watcher) run(ctx context.Context, wc clientv3.WatchChan, out chan<- []ServiceInstance) {
	defer close(out)
	for resp := range wc {
		if err := resp.Err(); err != nil {
			w.log.Warn("watch error", zap.Error(err))
			continue
		}
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		if !drain(wc) {
			return
		}

		instances, err := w.refresh(ctx)
		if err != nil {
			w.log.Warn("refresh failed", zap.Error(err))
			continue
		}
		select {
		case out <- instances:
		case <-ctx.Done():
			return
		}
	}
}

// drain discards responses already queued on wc. It reports false once wc
// is closed.
func drain(wc clientv3.WatchChan) bool {
	for {
		select {
		case _, ok := <-wc:
			if !ok {
				return false
			}
		default:
			return true
		}
	}
}

func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
