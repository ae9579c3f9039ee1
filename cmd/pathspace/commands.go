// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pathspace/lib/pathspace"
	"github.com/bureau-foundation/pathspace/lib/snapshot"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
	"github.com/bureau-foundation/pathspace/lib/value"
)

var (
	mountStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Italic(true)
	countStyle      = lipgloss.NewStyle().Faint(true)
	enumeratorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).MarginRight(1)
)

func (a *app) treeCommand() *command {
	var common commonFlags
	var root string
	var depth int
	var values bool
	return &command{
		name:    "tree",
		summary: "Print the space as a tree",
		usage:   "pathspace tree [--root PATH] [--depth N] [--values]",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("tree", pflag.ContinueOnError)
			common.add(flagSet)
			flagSet.StringVar(&root, "root", "/", "path to start at")
			flagSet.IntVar(&depth, "depth", 0, "maximum depth below the root (0 is unlimited)")
			flagSet.BoolVar(&values, "values", false, "show the front value of every leaf")
			return flagSet
		},
		run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			s, err := a.open(common)
			if err != nil {
				return err
			}
			defer s.close()

			rendered, err := renderTree(context.Background(), s.access, root, depth, values)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, rendered)
			return nil
		},
	}
}

func newNode(label string) *tree.Tree {
	return tree.Root(label).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(enumeratorStyle)
}

// renderTree walks s from root and renders one node per entry.
func renderTree(ctx context.Context, s pathspace.Space, root string, depth int, showValues bool) (string, error) {
	var stack []*tree.Tree
	err := s.Visit(ctx, func(entry pathspace.Entry, handle *pathspace.ValueHandle) pathspace.VisitControl {
		label := entry.Path
		if entry.Depth > 0 {
			segments := spacepath.Path(entry.Path).Split()
			label = segments[len(segments)-1].Literal()
		}
		switch {
		case entry.IsMount:
			label = mountStyle.Render(label + " (mount)")
		case entry.HasValue:
			label += countStyle.Render(fmt.Sprintf(" [%d]", entry.QueueDepth))
			if showValues && handle != nil && len(handle.Values()) > 0 {
				label += " = " + describe(handle.Values()[0])
			}
		}

		node := newNode(label)
		if entry.Depth > 0 && entry.Depth <= len(stack) {
			stack[entry.Depth-1].Child(node)
		}
		stack = append(stack[:min(entry.Depth, len(stack))], node)
		return pathspace.Continue
	}, pathspace.VisitOptions{
		Root:                root,
		MaxDepth:            depth,
		IncludeValues:       showValues,
		IncludeNestedSpaces: true,
	})
	if err != nil {
		return "", err
	}
	if len(stack) == 0 {
		return "", nil
	}
	return stack[0].String(), nil
}

// describe renders a stored value for display.
func describe(v *value.Value) string {
	payload, err := v.Resolve()
	if err != nil {
		return fmt.Sprintf("<%s: %v>", v.TypeName(), err)
	}
	return format(payload)
}

func format(payload any) string {
	switch typed := payload.(type) {
	case string:
		return typed
	case fmt.Stringer:
		return typed.String()
	case map[string]any, []any, []string:
		encoded, err := json.Marshal(typed)
		if err == nil {
			return string(encoded)
		}
	}
	return fmt.Sprint(payload)
}

func (a *app) getCommand() *command {
	var common commonFlags
	var wait, take bool
	var timeout time.Duration
	return &command{
		name:    "get",
		summary: "Print the value at a path",
		usage:   "pathspace get PATH [--wait] [--timeout D] [--take]",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("get", pflag.ContinueOnError)
			common.add(flagSet)
			flagSet.BoolVar(&wait, "wait", false, "block until a value arrives")
			flagSet.DurationVar(&timeout, "timeout", 0, "how long --wait blocks (default: the configured space.default_timeout)")
			flagSet.BoolVar(&take, "take", false, "remove the value")
			return flagSet
		},
		run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("get takes exactly one PATH")
			}
			s, err := a.open(common)
			if err != nil {
				return err
			}
			defer s.close()

			var opts pathspace.Options
			if wait {
				if timeout == 0 {
					timeout, err = s.config.Space.Timeout()
					if err != nil {
						return err
					}
				}
				opts = pathspace.Block(timeout)
			}

			ctx := context.Background()
			var v *value.Value
			if take {
				v, err = s.access.Take(ctx, args[0], value.Any, opts)
			} else {
				v, err = s.access.Read(ctx, args[0], value.Any, opts)
			}
			if err != nil {
				return err
			}
			payload, err := v.Resolve()
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, format(payload))

			if take {
				return s.save(ctx)
			}
			return nil
		},
	}
}

// parseValue converts a command-line argument to the named type.
func parseValue(kind, raw string) (any, error) {
	switch kind {
	case "string":
		return raw, nil
	case "int":
		return strconv.Atoi(raw)
	case "float":
		return strconv.ParseFloat(raw, 64)
	case "bool":
		return strconv.ParseBool(raw)
	case "json":
		var object map[string]any
		if err := json.Unmarshal([]byte(raw), &object); err != nil {
			return nil, fmt.Errorf("parsing JSON object: %w", err)
		}
		return object, nil
	default:
		return nil, fmt.Errorf("unknown value type %q (want string, int, float, bool, or json)", kind)
	}
}

func (a *app) putCommand() *command {
	var common commonFlags
	var kind string
	return &command{
		name:    "put",
		summary: "Append a value at a path",
		usage:   "pathspace put PATH VALUE [--type string|int|float|bool|json]",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("put", pflag.ContinueOnError)
			common.add(flagSet)
			flagSet.StringVar(&kind, "type", "string", "how to interpret VALUE: string, int, float, bool, or json (an object)")
			return flagSet
		},
		run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("put takes PATH and VALUE")
			}
			payload, err := parseValue(kind, args[1])
			if err != nil {
				return err
			}
			s, err := a.open(common)
			if err != nil {
				return err
			}
			defer s.close()

			result := s.access.Insert(args[0], value.Of(payload))
			if err := result.Err(); err != nil {
				return err
			}
			s.logger.Info("inserted", "path", args[0], "values", result.NbrValuesInserted)
			return s.save(context.Background())
		},
	}
}

func (a *app) snapshotCommand() *command {
	var common commonFlags
	var out, compressionName, root string
	var asJSON bool
	return &command{
		name:    "snapshot",
		summary: "Write the space's serializable values to a file",
		usage:   "pathspace snapshot --out FILE [--compression zstd|lz4|none] [--root PATH] [--json]",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("snapshot", pflag.ContinueOnError)
			common.add(flagSet)
			flagSet.StringVar(&out, "out", "", "output file, or - for stdout (required)")
			flagSet.StringVar(&compressionName, "compression", "zstd", "body compression: zstd, lz4, or none")
			flagSet.StringVar(&root, "root", "/", "path to capture from")
			flagSet.BoolVar(&asJSON, "json", false, "write a JSON export instead of a snapshot file")
			return flagSet
		},
		run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			if out == "" {
				return fmt.Errorf("--out is required")
			}
			compression, err := snapshot.ParseCompression(compressionName)
			if err != nil {
				return err
			}
			s, err := a.open(common)
			if err != nil {
				return err
			}
			defer s.close()

			snap, err := snapshot.Capture(context.Background(), s.access, snapshot.Options{Root: root})
			if err != nil {
				return err
			}
			for _, skip := range snap.Skipped {
				s.logger.Warn("value not captured", "path", skip.Path, "type", skip.Type, "reason", skip.Reason)
			}

			writer := a.stdout
			if out != "-" {
				file, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("creating %s: %w", out, err)
				}
				defer file.Close()
				writer = file
			}

			if asJSON {
				data, err := snapshot.JSON(snap)
				if err != nil {
					return err
				}
				_, err = writer.Write(append(data, '\n'))
				return err
			}
			used, err := snapshot.Encode(writer, snap, compression)
			if err != nil {
				return err
			}
			s.logger.Info("snapshot written", "file", out, "values", snap.ValueCount(), "compression", used.String())
			return nil
		},
	}
}

func (a *app) inspectCommand() *command {
	var common commonFlags
	return &command{
		name:    "inspect",
		summary: "Summarize a snapshot file",
		usage:   "pathspace inspect FILE",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			common.add(flagSet)
			return flagSet
		},
		run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("inspect takes exactly one FILE")
			}
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			snap, header, err := snapshot.Decode(file)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			digest, err := snapshot.Digest(snap)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "format:\t%d\n", header.Version)
			fmt.Fprintf(tw, "compression:\t%s\n", header.Compression)
			fmt.Fprintf(tw, "body:\t%d bytes\n", header.BodySize)
			fmt.Fprintf(tw, "root:\t%s\n", snap.Root)
			fmt.Fprintf(tw, "leaves:\t%d\n", len(snap.Leaves))
			fmt.Fprintf(tw, "values:\t%d\n", snap.ValueCount())
			fmt.Fprintf(tw, "skipped:\t%d\n", len(snap.Skipped))
			for _, mount := range snap.Mounts {
				fmt.Fprintf(tw, "mount:\t%s\n", mount)
			}
			fmt.Fprintf(tw, "digest:\t%s\n", digest)
			return tw.Flush()
		},
	}
}
