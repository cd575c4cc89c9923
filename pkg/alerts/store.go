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

// Package alerts keeps the bounded in-memory alert list and dispatches
// alert notifications to external collaborators.
package alerts

import (
	"sync"
	"time"

	"github.com/storeops/storemon/pkg/models"
)

// DefaultCap bounds the alert working set; the oldest alerts are dropped
// beyond it.
const DefaultCap = 50

// Store is the mutation-guarded alert list. Alerts are immutable once
// added, except for the read flag; they are only removed by cap eviction
// or an explicit Clear.
type Store struct {
	mu     sync.RWMutex
	alerts []models.Alert
	cap    int
}

// NewStore creates an alert store holding at most capacity alerts.
// A non-positive capacity uses DefaultCap.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCap
	}

	return &Store{cap: capacity}
}

// Add prepends the alert, evicting the oldest entries beyond capacity.
func (s *Store) Add(alert models.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = append([]models.Alert{alert}, s.alerts...)

	if len(s.alerts) > s.cap {
		s.alerts = s.alerts[:s.cap]
	}
}

// RecentExists reports whether an alert of the same store and category
// was created within the dedup window ending at now.
func (s *Store) RecentExists(storeID string, category models.AlertCategory, window time.Duration, now time.Time) bool {
	cutoff := now.Add(-window)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.alerts {
		a := &s.alerts[i]
		if a.StoreID == storeID && a.Category == category && a.Timestamp.After(cutoff) {
			return true
		}
	}

	return false
}

// MarkRead flips the read flag of one alert. Reports whether the alert
// was found.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Read = true
			return true
		}
	}

	return false
}

// UnreadCount returns the number of unread alerts.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0

	for i := range s.alerts {
		if !s.alerts[i].Read {
			count++
		}
	}

	return count
}

// List returns a copy of the alert list, newest first.
func (s *Store) List() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.Alert(nil), s.alerts...)
}

// Clear drops every alert. This is the only bulk removal operation.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = nil
}
