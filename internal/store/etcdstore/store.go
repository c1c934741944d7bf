// Package etcdstore implements store.TokenStore for the bss_tokens
// kind: a narrow, TTL-bearing key→string record (the referral token a
// node presents on network boot). etcd's lease mechanism maps directly
// onto "referral token with a bounded lifetime," which neither the
// document store nor the SQL store expresses as cleanly.
package etcdstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/hpe-cray/bos/internal/store"
)

// Store is the etcd-backed store.TokenStore implementation.
type Store struct {
	client *clientv3.Client
	prefix string
	log    *slog.Logger
}

// Config configures a Store.
type Config struct {
	Endpoints   []string
	DialTimeout time.Duration
	Prefix      string
}

// NewStore connects to etcd and verifies reachability before returning.
func NewStore(cfg Config, log *slog.Logger) (*Store, error) {
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "/bos"
	}
	if log == nil {
		log = slog.Default()
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("etcdstore: connect: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := client.Status(ctx, cfg.Endpoints[0]); err != nil {
		client.Close()
		return nil, fmt.Errorf("etcdstore: health check failed: %w", err)
	}

	log.Info("etcdstore: connected", "endpoints", cfg.Endpoints)
	return &Store{client: client, prefix: cfg.Prefix, log: log}, nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) key(tenant, id string) string {
	return fmt.Sprintf("%s/bss_tokens/%s/%s", s.prefix, tenant, id)
}

// Put writes a referral token with a lease bound to ttl. Re-putting the
// same tenant/id replaces both the value and the lease.
func (s *Store) Put(ctx context.Context, tenant, id, token string, ttl time.Duration) error {
	lease, err := s.client.Grant(ctx, int64(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("etcdstore: grant lease: %w", err)
	}
	_, err = s.client.Put(ctx, s.key(tenant, id), token, clientv3.WithLease(lease.ID))
	if err != nil {
		return fmt.Errorf("etcdstore: put: %w", err)
	}
	return nil
}

// Get looks up the current referral token for tenant/id. An expired or
// never-written token reports found=false, not an error.
func (s *Store) Get(ctx context.Context, tenant, id string) (string, bool, error) {
	resp, err := s.client.Get(ctx, s.key(tenant, id))
	if err != nil {
		return "", false, fmt.Errorf("etcdstore: get: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return "", false, nil
	}
	return string(resp.Kvs[0].Value), true, nil
}

// Delete removes a token ahead of its lease expiring.
func (s *Store) Delete(ctx context.Context, tenant, id string) error {
	_, err := s.client.Delete(ctx, s.key(tenant, id))
	return err
}

var _ store.TokenStore = (*Store)(nil)
