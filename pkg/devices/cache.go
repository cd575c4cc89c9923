/*
 * Copyright 2025 StoreOps Labs.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package devices manages lazily-established, reusable sessions to the
// fleet of remote machines.
package devices

import (
	"context"
	"fmt"

	"sync"

	"github.com/storeops/storemon/pkg/logger"
	"github.com/storeops/storemon/pkg/telemetry"
)

// connectCall tracks one in-flight connect attempt. Concurrent callers
// for the same machine share its result.
type connectCall struct {
	done   chan struct{}
	client Client
	err    error
}

// Cache owns at most one live session per machine id. Sessions are
// established on first use and evicted when an operation against them
// fails; the cache itself never retries.
type Cache struct {
	resolver Resolver
	dialer   Dialer
	tokens   TokenSource
	log      logger.Logger

	mu       sync.Mutex
	clients  map[string]Client
	inflight map[string]*connectCall
}

// NewCache creates an empty connection cache.
func NewCache(resolver Resolver, dialer Dialer, tokens TokenSource, log logger.Logger) *Cache {
	return &Cache{
		resolver: resolver,
		dialer:   dialer,
		tokens:   tokens,
		log:      log.WithComponent("devices"),
		clients:  make(map[string]Client),
		inflight: make(map[string]*connectCall),
	}
}

// Connect returns the cached session for machineID, establishing one if
// necessary. Concurrent calls for the same unconnected machine collapse
// into a single handshake; every caller receives the same client or the
// same error. Failed attempts are not cached.
func (c *Cache) Connect(ctx context.Context, machineID string) (Client, error) {
	c.mu.Lock()

	if client, ok := c.clients[machineID]; ok {
		c.mu.Unlock()
		return client, nil
	}

	if call, ok := c.inflight[machineID]; ok {
		c.mu.Unlock()

		select {
		case <-call.done:
			return call.client, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &connectCall{done: make(chan struct{})}
	c.inflight[machineID] = call
	c.mu.Unlock()

	client, err := c.dial(ctx, machineID)

	c.mu.Lock()
	delete(c.inflight, machineID)

	if err == nil {
		c.clients[machineID] = client
		telemetry.ConnectionsOpened.Inc()
	}

	call.client = client
	call.err = err
	close(call.done)
	c.mu.Unlock()

	return client, err
}

// dial resolves the address, obtains a credential, and performs the
// handshake. The first caller's context governs the attempt; collapsed
// waiters inherit its outcome.
func (c *Cache) dial(ctx context.Context, machineID string) (Client, error) {
	address, ok := c.resolver.Resolve(machineID)
	if !ok {
		c.log.Warn().Str("machine", machineID).Msg("No address configured for machine")
		return nil, fmt.Errorf("%w: %s", ErrAddressNotFound, machineID)
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil || token == "" {
		return nil, ErrNoCredentials
	}

	client, err := c.dialer.Dial(ctx, machineID, address, token)
	if err != nil {
		// A timeout here is the expected signature of an offline machine,
		// not an anomaly.
		c.log.Debug().Str("machine", machineID).Str("address", address).Err(err).
			Msg("Connection attempt failed")

		return nil, err
	}

	c.log.Info().Str("machine", machineID).Str("address", address).Msg("Connected to machine")

	return client, nil
}

// Invalidate drops and closes the cached session for machineID, if any.
// The next consumer is forced to re-handshake.
func (c *Cache) Invalidate(machineID string) {
	c.mu.Lock()
	client, ok := c.clients[machineID]
	delete(c.clients, machineID)
	c.mu.Unlock()

	if !ok {
		return
	}

	telemetry.ConnectionsEvicted.Inc()

	if err := client.Close(); err != nil {
		c.log.Debug().Str("machine", machineID).Err(err).Msg("Error closing evicted session")
	}

	c.log.Info().Str("machine", machineID).Msg("Invalidated cached session")
}

// WithClient connects, runs op, and invalidates the session when op
// fails. The error from op is propagated to the caller.
func (c *Cache) WithClient(ctx context.Context, machineID string, op func(ctx context.Context, client Client) error) error {
	client, err := c.Connect(ctx, machineID)
	if err != nil {
		return err
	}

	if err := op(ctx, client); err != nil {
		c.Invalidate(machineID)
		return err
	}

	return nil
}

// Probe is the lightweight reachability check used by the health
// scheduler. A failed ping evicts the session so the next probe
// re-handshakes instead of retrying over a dead session.
func (c *Cache) Probe(ctx context.Context, machineID string) error {
	client, err := c.Connect(ctx, machineID)
	if err != nil {
		return err
	}

	if err := client.Ping(ctx); err != nil {
		c.Invalidate(machineID)
		return err
	}

	return nil
}

// Close drops every cached session. Used on logout and shutdown.
func (c *Cache) Close() {
	c.mu.Lock()
	clients := c.clients
	c.clients = make(map[string]Client)
	c.mu.Unlock()

	for machineID, client := range clients {
		if err := client.Close(); err != nil {
			c.log.Debug().Str("machine", machineID).Err(err).Msg("Error closing session")
		}
	}
}
