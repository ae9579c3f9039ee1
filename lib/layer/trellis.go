// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/pathspace/lib/pathspace"
	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
	"github.com/bureau-foundation/pathspace/lib/value"
)

// TrellisMode decides whether serving an output consumes the source
// value.
type TrellisMode int

const (
	// TrellisQueue pops from the source on Take and peeks on Read.
	TrellisQueue TrellisMode = iota
	// TrellisLatest never pops: Read and Take both peek.
	TrellisLatest
)

func (m TrellisMode) String() string {
	switch m {
	case TrellisQueue:
		return "queue"
	case TrellisLatest:
		return "latest"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseTrellisMode accepts "queue" and "latest". Empty selects queue.
func ParseTrellisMode(name string) (TrellisMode, error) {
	switch name {
	case "", "queue":
		return TrellisQueue, nil
	case "latest":
		return TrellisLatest, nil
	default:
		return 0, spaceerr.Newf(spaceerr.MalformedInput, "unknown trellis mode %q (want queue or latest)", name)
	}
}

// TrellisPolicy decides which ready source serves an output.
type TrellisPolicy int

const (
	// RoundRobin starts each search after the source served last.
	RoundRobin TrellisPolicy = iota
	// Priority always prefers earlier sources.
	Priority
)

func (p TrellisPolicy) String() string {
	switch p {
	case RoundRobin:
		return "round_robin"
	case Priority:
		return "priority"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseTrellisPolicy accepts "round_robin" and "priority". Empty
// selects round_robin.
func ParseTrellisPolicy(name string) (TrellisPolicy, error) {
	switch name {
	case "", "round_robin":
		return RoundRobin, nil
	case "priority":
		return Priority, nil
	default:
		return 0, spaceerr.Newf(spaceerr.MalformedInput, "unknown trellis policy %q (want round_robin or priority)", name)
	}
}

// TrellisConfig describes one fan-in output.
type TrellisConfig struct {
	// Output is the path, in the trellis's coordinates, that readers
	// use.
	Output string `json:"output" cbor:"output"`
	// Sources are concrete paths in the backing store, in priority
	// order.
	Sources []string      `json:"sources" cbor:"sources"`
	Mode    TrellisMode   `json:"mode" cbor:"mode"`
	Policy  TrellisPolicy `json:"policy" cbor:"policy"`
}

// TrellisStats counts what one output has served.
type TrellisStats struct {
	Served     uint64
	Waits      uint64
	Errors     uint64
	LastSource string
}

// Command paths accepted by Trellis.Insert. The enable command takes a
// TrellisConfig; the disable command takes the output path as a
// string.
const (
	TrellisEnablePath  = "/_system/trellis/enable"
	TrellisDisablePath = "/_system/trellis/disable"
)

const trellisSystem = "_system"

// Trellis merges several source paths of a backing store into readable
// outputs. Reading an output returns the front value of the first
// ready source in policy order. Blocking reads wait on every source at
// once and retry when any of them receives a value.
//
// Only outputs and command paths exist in a trellis. Inserting at an
// output appends the value to every source.
//
// The trellis does not own its backing store. Shutdown releases the
// trellis's own waiters and leaves the backing store running.
type Trellis struct {
	attachment

	backing pathspace.Space

	life     context.Context
	shutdown context.CancelFunc

	mu      sync.Mutex
	outputs map[string]*trellisOutput
}

type trellisOutput struct {
	path    spacepath.Path
	mode    TrellisMode
	policy  TrellisPolicy
	sources []string
	cursor  int
	stats   TrellisStats
}

// NewTrellis returns a trellis with no outputs over backing.
func NewTrellis(backing pathspace.Space) *Trellis {
	life, cancel := context.WithCancel(context.Background())
	return &Trellis{
		backing:  backing,
		life:     life,
		shutdown: cancel,
		outputs:  make(map[string]*trellisOutput),
	}
}

// concretePath validates a concrete, non-root path and returns its
// canonical form.
func concretePath(raw, what string) (spacepath.Path, error) {
	p := spacepath.Path(raw)
	if err := p.Validate(); err != nil {
		return "", err
	}
	if p.IsGlob() {
		return "", spaceerr.Newf(spaceerr.InvalidPath, "%s %s must be concrete", what, raw)
	}
	canonical := spacepath.Normalize(p)
	if canonical == spacepath.Root {
		return "", spaceerr.Newf(spaceerr.InvalidPath, "%s cannot be the root", what)
	}
	return canonical, nil
}

func isSystemPath(p spacepath.Path) bool {
	names := p.Split()
	return len(names) > 0 && names[0].Literal() == trellisSystem
}

// Enable installs or replaces an output. Replacing resets the
// round-robin cursor and the stats.
func (t *Trellis) Enable(config TrellisConfig) error {
	if t.life.Err() != nil {
		return spaceerr.New(spaceerr.ShuttingDown, "trellis is shut down")
	}
	output, err := concretePath(config.Output, "trellis output")
	if err != nil {
		return err
	}
	if isSystemPath(output) {
		return spaceerr.Newf(spaceerr.InvalidPath, "trellis output %s is reserved", output)
	}
	if len(config.Sources) == 0 {
		return spaceerr.Newf(spaceerr.MalformedInput, "trellis output %s has no sources", output)
	}
	sources := make([]string, 0, len(config.Sources))
	for _, raw := range config.Sources {
		source, err := concretePath(raw, "trellis source")
		if err != nil {
			return err
		}
		if !slices.Contains(sources, string(source)) {
			sources = append(sources, string(source))
		}
	}
	if config.Mode != TrellisQueue && config.Mode != TrellisLatest {
		return spaceerr.Newf(spaceerr.MalformedInput, "unknown trellis mode %v", config.Mode)
	}
	if config.Policy != RoundRobin && config.Policy != Priority {
		return spaceerr.Newf(spaceerr.MalformedInput, "unknown trellis policy %v", config.Policy)
	}

	t.mu.Lock()
	for existing := range t.outputs {
		if existing == string(output) {
			continue
		}
		if _, under := spacepath.TrimPrefix(output, spacepath.Path(existing)); under {
			t.mu.Unlock()
			return spaceerr.Newf(spaceerr.InvalidPath, "trellis output %s lies below output %s", output, existing)
		}
		if _, over := spacepath.TrimPrefix(spacepath.Path(existing), output); over {
			t.mu.Unlock()
			return spaceerr.Newf(spaceerr.InvalidPath, "trellis output %s lies above output %s", output, existing)
		}
	}
	t.outputs[string(output)] = &trellisOutput{
		path:    output,
		mode:    config.Mode,
		policy:  config.Policy,
		sources: sources,
	}
	t.mu.Unlock()

	t.notifyParentUnder(string(output))
	return nil
}

// Disable removes an output. Removing an unknown output does nothing.
func (t *Trellis) Disable(output string) error {
	canonical, err := concretePath(output, "trellis output")
	if err != nil {
		return err
	}
	t.mu.Lock()
	delete(t.outputs, string(canonical))
	t.mu.Unlock()
	return nil
}

// Outputs returns the enabled output paths in sorted order.
func (t *Trellis) Outputs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	outputs := make([]string, 0, len(t.outputs))
	for output := range t.outputs {
		outputs = append(outputs, output)
	}
	slices.Sort(outputs)
	return outputs
}

// Stats returns the counters of an output.
func (t *Trellis) Stats(output string) (TrellisStats, bool) {
	canonical, err := concretePath(output, "trellis output")
	if err != nil {
		return TrellisStats{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.outputs[string(canonical)]
	if !ok {
		return TrellisStats{}, false
	}
	return state.stats, true
}

func (t *Trellis) lookup(path string) (*trellisOutput, error) {
	if err := t.life.Err(); err != nil {
		return nil, spaceerr.New(spaceerr.ShuttingDown, "trellis is shut down")
	}
	p := spacepath.Path(path)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.IsGlob() {
		return nil, spaceerr.Newf(spaceerr.NotSupported, "trellis outputs are addressed by concrete paths: %s", path)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.outputs[string(spacepath.Normalize(p))]
	if !ok {
		return nil, spaceerr.Newf(spaceerr.NoSuchPath, "no trellis output at %s", path)
	}
	return state, nil
}

func (t *Trellis) Insert(path string, v *value.Value) pathspace.InsertReturn {
	if err := t.life.Err(); err != nil {
		return pathspace.Failed(spaceerr.New(spaceerr.ShuttingDown, "trellis is shut down"))
	}
	p := spacepath.Path(path)
	if err := p.Validate(); err != nil {
		return pathspace.Failed(err)
	}
	if isSystemPath(p) {
		return t.command(spacepath.Normalize(p), v)
	}

	state, err := t.lookup(path)
	if err != nil {
		return pathspace.Failed(err)
	}
	t.mu.Lock()
	sources := slices.Clone(state.sources)
	t.mu.Unlock()

	var result pathspace.InsertReturn
	for _, source := range sources {
		result.Merge(t.backing.Insert(source, v))
	}
	return result
}

func (t *Trellis) command(path spacepath.Path, v *value.Value) pathspace.InsertReturn {
	switch path {
	case TrellisEnablePath:
		config, err := value.As[TrellisConfig](v)
		if err != nil {
			return pathspace.Failed(spaceerr.Newf(spaceerr.InvalidType, "%s takes a TrellisConfig, got %s", path, v.TypeName()))
		}
		if err := t.Enable(config); err != nil {
			return pathspace.Failed(err)
		}
	case TrellisDisablePath:
		output, err := value.As[string](v)
		if err != nil {
			return pathspace.Failed(spaceerr.Newf(spaceerr.InvalidType, "%s takes an output path string, got %s", path, v.TypeName()))
		}
		if err := t.Disable(output); err != nil {
			return pathspace.Failed(err)
		}
	default:
		return pathspace.Failed(spaceerr.Newf(spaceerr.InvalidPath, "unknown trellis command %s", path))
	}
	return pathspace.InsertReturn{NbrValuesInserted: 1}
}

func (t *Trellis) Read(ctx context.Context, path string, want value.Type, opts pathspace.Options) (*value.Value, error) {
	return t.out(ctx, path, want, opts, opts.DoPop)
}

func (t *Trellis) Take(ctx context.Context, path string, want value.Type, opts pathspace.Options) (*value.Value, error) {
	return t.out(ctx, path, want, opts, true)
}

func (t *Trellis) out(ctx context.Context, path string, want value.Type, opts pathspace.Options, pop bool) (*value.Value, error) {
	state, err := t.lookup(path)
	if err != nil {
		return nil, err
	}

	var deadline time.Time
	if opts.Block && opts.Timeout > 0 {
		deadline = time.Now().Add(opts.Timeout)
	}
	for {
		v, err := t.serve(ctx, state, want, pop)
		if err == nil || !opts.Block || !spaceerr.IsAbsent(err) {
			return v, err
		}

		timeout := opts.Timeout
		if !deadline.IsZero() {
			timeout = time.Until(deadline)
		}
		if timeout == 0 || (!deadline.IsZero() && timeout < 0) {
			return nil, spaceerr.Newf(spaceerr.Timeout, "no source of %s became ready", path)
		}
		t.mu.Lock()
		state.stats.Waits++
		sources := slices.Clone(state.sources)
		t.mu.Unlock()

		if err := t.waitAny(ctx, sources, timeout); err != nil {
			if spaceerr.Is(err, spaceerr.Timeout) {
				return nil, spaceerr.Newf(spaceerr.Timeout, "no source of %s became ready", path)
			}
			return nil, err
		}
	}
}

// serve makes one non-blocking pass over the sources in policy order.
func (t *Trellis) serve(ctx context.Context, state *trellisOutput, want value.Type, pop bool) (*value.Value, error) {
	t.mu.Lock()
	sources := slices.Clone(state.sources)
	start := 0
	if state.policy == RoundRobin {
		start = state.cursor % len(sources)
	}
	mode := state.mode
	t.mu.Unlock()

	consume := pop && mode == TrellisQueue
	var failure error
	for i := range sources {
		index := (start + i) % len(sources)
		source := sources[index]

		var v *value.Value
		var err error
		if consume {
			v, err = t.backing.Take(ctx, source, want, pathspace.Options{})
		} else {
			v, err = t.backing.Read(ctx, source, want, pathspace.Options{})
		}
		if err == nil {
			t.mu.Lock()
			if state.policy == RoundRobin && (pop || mode == TrellisLatest) {
				state.cursor = index + 1
			}
			state.stats.Served++
			state.stats.LastSource = source
			t.mu.Unlock()
			return v, nil
		}
		if !spaceerr.IsAbsent(err) && failure == nil {
			failure = err
		}
	}
	if failure != nil {
		t.mu.Lock()
		state.stats.Errors++
		t.mu.Unlock()
		return nil, failure
	}
	return nil, spaceerr.Newf(spaceerr.NoObjectFound, "no source of %s is ready", state.path)
}

var errSourceReady = errors.New("trellis source ready")

// waitAny blocks until one of sources holds a value, the timeout
// passes, ctx ends, or the trellis shuts down.
func (t *Trellis) waitAny(ctx context.Context, sources []string, timeout time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(t.life, cancel)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	for _, source := range sources {
		group.Go(func() error {
			_, err := t.backing.Read(groupCtx, source, value.Any, pathspace.Block(timeout))
			if err == nil {
				return errSourceReady
			}
			return err
		})
	}
	err := group.Wait()
	switch {
	case errors.Is(err, errSourceReady):
		return nil
	case t.life.Err() != nil:
		return spaceerr.New(spaceerr.ShuttingDown, "trellis is shut down")
	default:
		return err
	}
}

// Visit reports the outputs and the directories above them. An
// output's values are the queued values of its sources in priority
// order.
func (t *Trellis) Visit(ctx context.Context, visitor pathspace.Visitor, opts pathspace.VisitOptions) error {
	if err := t.life.Err(); err != nil {
		return spaceerr.New(spaceerr.ShuttingDown, "trellis is shut down")
	}
	root := spacepath.Path(opts.Root)
	if root == "" {
		root = spacepath.Root
	}
	if err := root.Validate(); err != nil {
		return err
	}
	if root.IsGlob() {
		return spaceerr.Newf(spaceerr.InvalidPath, "visit root %s must be concrete", root)
	}
	rootNames := literals(root)

	type node struct {
		names  []string
		output *trellisOutput
	}
	nodes := map[string]*node{}
	t.mu.Lock()
	for key, state := range t.outputs {
		names := literals(spacepath.Path(key))
		for depth := range names {
			prefix := strings.Join(names[:depth], "/")
			if _, ok := nodes[prefix]; !ok {
				nodes[prefix] = &node{names: names[:depth]}
			}
		}
		nodes[strings.Join(names, "/")] = &node{names: names, output: state}
	}
	t.mu.Unlock()
	if _, ok := nodes[""]; !ok {
		nodes[""] = &node{}
	}

	var visible []*node
	for _, n := range nodes {
		if len(n.names) >= len(rootNames) && slices.Equal(n.names[:len(rootNames)], rootNames) {
			visible = append(visible, n)
		}
	}
	if len(visible) == 0 {
		return spaceerr.Newf(spaceerr.NoSuchPath, "%s does not exist", root)
	}
	slices.SortFunc(visible, func(a, b *node) int { return slices.Compare(a.names, b.names) })

	var skipped [][]string
	children := map[string]int{}
	for _, n := range visible {
		if err := ctx.Err(); err != nil {
			return err
		}
		depth := len(n.names) - len(rootNames)
		if opts.MaxDepth > 0 && depth > opts.MaxDepth {
			continue
		}
		if slices.ContainsFunc(skipped, func(prefix []string) bool {
			return len(n.names) > len(prefix) && slices.Equal(n.names[:len(prefix)], prefix)
		}) {
			continue
		}
		if depth > 0 && opts.MaxChildren > 0 {
			parent := strings.Join(n.names[:len(n.names)-1], "/")
			if children[parent] >= opts.MaxChildren {
				skipped = append(skipped, n.names)
				continue
			}
			children[parent]++
		}

		names := make([]spacepath.Name, len(n.names))
		for i, literal := range n.names {
			names[i] = spacepath.Escape(literal)
		}
		entry := pathspace.Entry{Path: string(spacepath.Join(names...)), Depth: depth}
		var handle *pathspace.ValueHandle
		if n.output == nil {
			entry.HasChildren = len(n.names) > 0 || len(nodes) > 1
		} else {
			values := t.sourceValues(ctx, n.output)
			entry.HasValue = len(values) > 0
			entry.QueueDepth = len(values)
			if opts.IncludeValues && entry.HasValue {
				handle = pathspace.NewValueHandle(values)
			}
		}

		switch visitor(entry, handle) {
		case pathspace.Stop:
			return nil
		case pathspace.SkipChildren:
			skipped = append(skipped, n.names)
		}
	}
	return nil
}

func literals(p spacepath.Path) []string {
	var names []string
	for name := range p.Names() {
		names = append(names, name.Literal())
	}
	return names
}

// sourceValues collects the queued values of every source that is a
// leaf.
func (t *Trellis) sourceValues(ctx context.Context, state *trellisOutput) []*value.Value {
	t.mu.Lock()
	sources := slices.Clone(state.sources)
	t.mu.Unlock()

	var values []*value.Value
	for _, source := range sources {
		_ = t.backing.Visit(ctx, func(entry pathspace.Entry, handle *pathspace.ValueHandle) pathspace.VisitControl {
			if entry.Depth == 0 && handle != nil {
				values = append(values, handle.Values()...)
			}
			return pathspace.Stop
		}, pathspace.VisitOptions{Root: source, IncludeValues: true})
	}
	return values
}

// Notify forwards to the backing store.
func (t *Trellis) Notify(path string) {
	t.backing.Notify(path)
}

// Shutdown releases blocked readers. The backing store keeps running.
func (t *Trellis) Shutdown() {
	t.shutdown()
}

var (
	_ pathspace.Space     = (*Trellis)(nil)
	_ pathspace.Mountable = (*Trellis)(nil)
)
