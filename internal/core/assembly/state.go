// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package assembly

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the stage of an assembly job.
type State string

const (
	Idle             State = "Idle"
	ExtractingTracks State = "ExtractingTracks"
	Muxing           State = "Muxing"
	Finalized        State = "Finalized"
	Failed           State = "Failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Finalized || s == Failed
}

var nextState = map[State]State{
	Idle:             ExtractingTracks,
	ExtractingTracks: Muxing,
	Muxing:           Finalized,
}

// Transition is one recorded state change.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// Job tracks one assembly run. It is safe to read from other goroutines while
// the assembler advances it.
type Job struct {
	ID string

	mu      sync.Mutex
	state   State
	reason  string
	history []Transition
	now     func() time.Time
}

func NewJob() *Job {
	return &Job{ID: uuid.NewString(), state: Idle, now: time.Now}
}

func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Reason is the failure message of a Failed job.
func (j *Job) Reason() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.reason
}

func (j *Job) History() []Transition {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Transition(nil), j.history...)
}

// advance moves the job to the next stage of the happy path.
func (j *Job) advance(to State) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if nextState[j.state] != to {
		return fmt.Errorf("invalid assembly transition %s -> %s", j.state, to)
	}
	j.record(to)
	return nil
}

// fail moves a non-terminal job to Failed. Failing a terminal job is a no-op.
func (j *Job) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.reason = err.Error()
	j.record(Failed)
}

func (j *Job) record(to State) {
	j.history = append(j.history, Transition{From: j.state, To: to, At: j.now()})
	j.state = to
}
