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
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/storeops/storemon/pkg/models"
)

const defaultSubjectPrefix = "storemon.alerts"

// NATSNotifier publishes alert notifications to a NATS subject per
// store, for downstream push-delivery consumers.
type NATSNotifier struct {
	conn          *nats.Conn
	subjectPrefix string
}

func NewNATSNotifier(conn *nats.Conn, subjectPrefix string) *NATSNotifier {
	if subjectPrefix == "" {
		subjectPrefix = defaultSubjectPrefix
	}

	return &NATSNotifier{conn: conn, subjectPrefix: subjectPrefix}
}

func (n *NATSNotifier) Notify(_ context.Context, alert models.Alert) error {
	payload, err := json.Marshal(toNotification(alert))
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", n.subjectPrefix, alert.StoreID)

	if err := n.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish notification to %s: %w", subject, err)
	}

	return nil
}
