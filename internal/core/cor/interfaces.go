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

// Package cor (Chain of Responsibility) provides the building blocks used to
// express the ingest and video pipelines as ordered sequences of commands
// sharing one Context.
package cor

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// CtxIn and CtxOut are the keys a BaseChain uses to pipe the output of one
// command into the input of the next.
const (
	CtxIn  = "__IN__"
	CtxOut = "__OUT__"
)

// Context is the property bag handed through a chain. It carries data, the
// errors raised by commands, and every resource that must be released when the
// run ends, whatever the outcome.
type Context interface {
	// SetContext replaces the Go context (cancellation, deadlines, span).
	SetContext(ctx context.Context)
	// GetContext returns the current Go context.
	GetContext() context.Context

	// Add stores a value under the key and returns the Context for chaining.
	Add(key string, value interface{}) Context
	// Get returns the value stored under the key, or nil.
	Get(key string) interface{}
	// Remove deletes the key.
	Remove(key string)

	// AddError records the error raised by the named command.
	AddError(key string, err error)
	// GetErrors returns the recorded errors keyed by command name.
	GetErrors() map[string]error
	// HasErrors reports whether any command recorded an error.
	HasErrors() bool
	// Err joins the recorded errors, or returns nil.
	Err() error

	// AddTempFile registers a file to delete on Close.
	AddTempFile(file string)
	// GetTempFiles lists the registered temp files.
	GetTempFiles() []string
	// AddCloser registers a resource to close on Close, in reverse order.
	AddCloser(closer io.Closer)

	// Close releases closers then temp files. Closing twice is a no-op.
	Close()
}

// Executable is anything with business logic operating on a Context.
type Executable interface {
	Execute(context Context)
}

// Command is one step of a pipeline.
type Command interface {
	Executable

	GetName() string
	GetInputParam() string
	GetOutputParam() string
	IsExecutable(context Context) bool

	GetTracer() trace.Tracer
	GetMeter() metric.Meter
	GetSuccessCounter() metric.Int64Counter
	GetErrorCounter() metric.Int64Counter
}

// Chain is a Command running child commands in order. Chains nest.
type Chain interface {
	Command

	// ContinueOnFailure keeps executing after a command records an error.
	ContinueOnFailure(bool) Chain
	// AddCommand appends a step.
	AddCommand(command Command) Chain
}
