/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"context"
	"log/slog"
	"sync"
)

// Level separates confirmations from failures.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "info"
}

// Notification is a short user-facing message, shown as a toast by a UI.
type Notification struct {
	Level       Level
	Title       string
	Description string
}

// Notifier receives user-facing messages. Implementations must be safe for
// concurrent use; decode results arrive from background goroutines.
type Notifier interface {
	Notify(n Notification)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Log *slog.Logger
}

func (l LogNotifier) Notify(n Notification) {
	lg := l.Log
	if lg == nil {
		lg = slog.Default()
	}
	lvl := slog.LevelInfo
	if n.Level == LevelError {
		lvl = slog.LevelWarn
	}
	lg.Log(context.Background(), lvl, n.Title, slog.String("detail", n.Description))
}

// RecordingNotifier keeps every notification in memory.
type RecordingNotifier struct {
	mu    sync.Mutex
	items []Notification
}

func (r *RecordingNotifier) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications in arrival order.
func (r *RecordingNotifier) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Last returns the most recent notification.
func (r *RecordingNotifier) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}
