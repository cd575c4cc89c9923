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

import "errors"

var (
	// ErrAddressNotFound means the machine id has no entry in the static
	// directory. Fatal for that machine; callers must not retry.
	ErrAddressNotFound = errors.New("no address configured for machine")

	// ErrNoCredentials means the auth collaborator returned no token, so
	// the connect attempt was short-circuited without probing the network.
	ErrNoCredentials = errors.New("no access token available")
)
