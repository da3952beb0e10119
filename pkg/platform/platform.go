// Copyright 2026 Ant Group Co., Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package platform provides compile-only client handles for logical device
// families. A Client carries the capability table lowering rules consult; it
// is acquired by name from a Registry, held read-only for the duration of
// one compilation, and never mutated by the compile pipeline.
package platform

import (
	"sort"
	"sync"

	"github.com/secretflow/hlobridge/pkg/ir"
	"github.com/secretflow/hlobridge/pkg/status"
)

// HostPlatform is the name of the built-in host device family.
const HostPlatform = "Host"

// Capabilities lists what a target's backend accepts: the lowered opcode set
// and the element dtypes it can carry.
type Capabilities struct {
	Ops    map[string]bool
	DTypes map[ir.DType]bool
}

// SupportsOp returns true if the target accepts the lowered opcode.
func (c *Capabilities) SupportsOp(op string) bool {
	return c.Ops[op]
}

// SupportsDType returns true if the target accepts the element dtype.
func (c *Capabilities) SupportsDType(dt ir.DType) bool {
	return c.DTypes[dt]
}

// OpList returns the supported opcodes sorted, for reports and dumps.
func (c *Capabilities) OpList() []string {
	ops := make([]string, 0, len(c.Ops))
	for op, ok := range c.Ops {
		if ok {
			ops = append(ops, op)
		}
	}
	sort.Strings(ops)
	return ops
}

func (c *Capabilities) clone() *Capabilities {
	out := &Capabilities{
		Ops:    make(map[string]bool, len(c.Ops)),
		DTypes: make(map[ir.DType]bool, len(c.DTypes)),
	}
	for op, ok := range c.Ops {
		out.Ops[op] = ok
	}
	for dt, ok := range c.DTypes {
		out.DTypes[dt] = ok
	}
	return out
}

// Client is a named, compile-only handle for one device family.
type Client struct {
	name string
	caps *Capabilities
}

// NewClient creates a client with the given capability table.
func NewClient(name string, caps *Capabilities) *Client {
	return &Client{name: name, caps: caps}
}

// Name returns the device family name the client was registered under.
func (c *Client) Name() string {
	return c.name
}

// Capabilities returns the client's capability table.
func (c *Client) Capabilities() *Capabilities {
	return c.caps
}

// hostCapabilities is the built-in capability table for the host backend.
// erf is not listed: the host rejects the opcode at lowering time and the
// graph compiler expands it as a tanh series instead.
func hostCapabilities() *Capabilities {
	caps := &Capabilities{
		Ops:    make(map[string]bool),
		DTypes: make(map[ir.DType]bool),
	}
	for _, op := range []string{
		"parameter", "constant", "tuple", "get-tuple-element",
		"abs", "acos", "sign", "floor", "negate", "exponential", "tanh",
		"add", "multiply", "maximum", "minimum", "clamp", "reciprocal",
	} {
		caps.Ops[op] = true
	}
	for _, dt := range []ir.DType{ir.DTypeI1, ir.DTypeI32, ir.DTypeI64, ir.DTypeF32, ir.DTypeF64} {
		caps.DTypes[dt] = true
	}
	return caps
}

// NewHostClient creates the built-in host client.
func NewHostClient() *Client {
	return NewClient(HostPlatform, hostCapabilities())
}

// Registry maps device family names to clients.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry creates an empty client registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// DefaultRegistry returns a registry with the built-in host platform
// registered.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(NewHostClient())
	return reg
}

// Register adds or replaces a client under its name.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.name] = c
}

// Client returns the client for a device family name. An unknown name is a
// fatal precondition failure for the caller, reported with
// CodePlatformUnavailable.
func (r *Registry) Client(name string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	if !ok {
		return nil, status.Newf(status.CodePlatformUnavailable, "no client registered for device type %q", name)
	}
	return c, nil
}

// Names returns the registered device family names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
