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

package alerts

import (
	"context"
	"time"

	"github.com/storeops/storemon/pkg/logger"
	"github.com/storeops/storemon/pkg/models"
)

const timeFormat = time.RFC3339

// notification is the wire shape shared by the webhook and NATS
// notifiers. Evidentiary images stay out of the notification payload.
type notification struct {
	AlertID   string `json:"alert_id"`
	StoreID   string `json:"store_id"`
	StoreName string `json:"store_name"`
	Category  string `json:"category"`
	Severity  string `json:"severity"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Notifier delivers a created alert to an external collaborator.
// Delivery is fire-and-forget; alert creation never depends on it.
type Notifier interface {
	Notify(ctx context.Context, alert models.Alert) error
}

// MultiNotifier fans an alert out to several notifiers, logging and
// swallowing individual failures.
type MultiNotifier struct {
	notifiers []Notifier
	log       logger.Logger
}

func NewMultiNotifier(log logger.Logger, notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{
		notifiers: notifiers,
		log:       log.WithComponent("notify"),
	}
}

func (m *MultiNotifier) Notify(ctx context.Context, alert models.Alert) error {
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			m.log.Warn().Err(err).Str("store", alert.StoreID).Str("category", string(alert.Category)).
				Msg("Failed to dispatch alert notification")
		}
	}

	return nil
}

func toNotification(alert models.Alert) notification {
	return notification{
		AlertID:   alert.ID,
		StoreID:   alert.StoreID,
		StoreName: alert.StoreName,
		Category:  string(alert.Category),
		Severity:  string(alert.Severity),
		Title:     alert.Title,
		Message:   alert.Message,
		Timestamp: alert.Timestamp.UTC().Format(timeFormat),
	}
}
