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

package devices

import "context"

// Resource is one addressable component on a machine.
type Resource struct {
	Name  string `json:"name"`
	API   string `json:"api"`
	Model string `json:"model"`
}

// Client is one live session against a remote machine. The wire protocol
// behind it is deliberately out of scope for the monitoring core; probes
// and fetches only ever go through this surface.
type Client interface {
	// Ping is a cheap metadata round trip used as the reachability probe.
	Ping(ctx context.Context) error
	// ResourceNames lists the components exposed by the machine.
	ResourceNames(ctx context.Context) ([]Resource, error)
	// Readings fetches the current readings of a named sensor component.
	Readings(ctx context.Context, name string) (map[string]interface{}, error)
	// Image fetches a still frame from a named camera component.
	Image(ctx context.Context, camera string) ([]byte, error)
	Close() error
}

// Dialer establishes a Client session against a resolved address.
type Dialer interface {
	Dial(ctx context.Context, machineID, address, token string) (Client, error)
}

// TokenSource is the auth collaborator. An empty token short-circuits a
// connect attempt without touching the network.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Resolver maps machine ids to network addresses. Implemented by the
// store directory.
type Resolver interface {
	Resolve(machineID string) (string, bool)
}

// StaticTokenSource returns the same token for every handshake.
type StaticTokenSource string

func (s StaticTokenSource) AccessToken(_ context.Context) (string, error) {
	return string(s), nil
}
