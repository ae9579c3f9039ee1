// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/pathspace/lib/capability"
	"github.com/bureau-foundation/pathspace/lib/config"
	"github.com/bureau-foundation/pathspace/lib/layer"
	"github.com/bureau-foundation/pathspace/lib/pathspace"
	"github.com/bureau-foundation/pathspace/lib/snapshot"
	"github.com/bureau-foundation/pathspace/lib/task"
	"github.com/bureau-foundation/pathspace/lib/value"
)

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	configPath string
	logLevel   string
	statePath  string
}

func (c *commonFlags) add(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.configPath, "config", "", "config file (default: $"+config.EnvVar+", else built-in defaults)")
	flagSet.StringVar(&c.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	flagSet.StringVar(&c.statePath, "state", "", "snapshot file restored at startup and, for commands that modify the space, saved on exit")
}

// session is a space assembled for one command.
type session struct {
	config *config.Config
	logger *slog.Logger

	tree *pathspace.Tree
	// access is what commands operate on: the tree, or the tree
	// behind the configured capability policy.
	access pathspace.Space

	pool      *task.Pool
	cancel    context.CancelFunc
	statePath string
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv(config.EnvVar) != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// open loads the config, builds the space with its mounts, and
// restores the state file if it exists.
func (a *app) open(flags commonFlags) (*session, error) {
	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return nil, err
	}
	logger := newLogger(a.stderr, level, cfg.Logging.Format)

	s, err := build(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.statePath = flags.statePath
	if err := s.restore(); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

// build assembles the tree described by cfg.
func build(cfg *config.Config, logger *slog.Logger) (*session, error) {
	workers := cfg.Space.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	pool := task.NewPool(workers, logger)
	newTree := func() *pathspace.Tree {
		return pathspace.New(
			pathspace.WithLogger(logger),
			pathspace.WithExecutor(pool),
			pathspace.WithCacheCapacity(cfg.Space.CacheCapacity),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		config: cfg,
		logger: logger,
		tree:   newTree(),
		pool:   pool,
		cancel: cancel,
	}
	s.access = s.tree

	for _, mount := range cfg.Mounts {
		var store pathspace.Space
		switch mount.Kind {
		case config.Memory:
			store = newTree()
			if mount.Cached {
				store = layer.NewSnapshotCached(store, layer.SnapshotCachedOptions{Logger: logger})
			}
		case config.Bounded:
			store = layer.NewBounded(newTree(), mount.Capacity)
		case config.Alias:
			var options []layer.AliasOption
			if mount.Retarget {
				options = append(options, layer.WithRetarget())
			}
			store = layer.NewAlias(s.tree, mount.Target, options...)
		case config.Trellis:
			trellis, err := newTrellis(s.tree, mount)
			if err != nil {
				s.close()
				return nil, fmt.Errorf("mount %s: %w", mount.Path, err)
			}
			store = trellis
		case config.Filesystem:
			filesystem, err := layer.NewFilesystem(mount.Root, layer.FilesystemOptions{Logger: logger})
			if err != nil {
				s.close()
				return nil, fmt.Errorf("mount %s: %w", mount.Path, err)
			}
			if mount.Watch {
				if err := filesystem.Watch(ctx); err != nil {
					filesystem.Shutdown()
					s.close()
					return nil, fmt.Errorf("mount %s: %w", mount.Path, err)
				}
			}
			store = filesystem
		default:
			s.close()
			return nil, fmt.Errorf("mount %s: unknown kind %q", mount.Path, mount.Kind)
		}
		if err := pathspace.Mount(s.tree, mount.Path, store).Err(); err != nil {
			store.Shutdown()
			s.close()
			return nil, fmt.Errorf("mount %s: %w", mount.Path, err)
		}
		logger.Debug("mounted store", "path", mount.Path, "kind", mount.Kind)
	}

	if cfg.Restricted() {
		checker, err := capability.NewChecker(cfg.Policy())
		if err != nil {
			s.close()
			return nil, fmt.Errorf("policy: %w", err)
		}
		s.access = layer.NewView(s.tree, "/", checker.Permissions)
	}
	return s, nil
}

// newTrellis builds a trellis over root serving mount's one output.
func newTrellis(root pathspace.Space, mount config.MountConfig) (*layer.Trellis, error) {
	mode, err := layer.ParseTrellisMode(mount.Mode)
	if err != nil {
		return nil, err
	}
	policy, err := layer.ParseTrellisPolicy(mount.Policy)
	if err != nil {
		return nil, err
	}
	trellis := layer.NewTrellis(root)
	err = trellis.Enable(layer.TrellisConfig{
		Output:  "/" + mount.Output,
		Sources: mount.Sources,
		Mode:    mode,
		Policy:  policy,
	})
	if err != nil {
		trellis.Shutdown()
		return nil, err
	}
	return trellis, nil
}

// restore loads the state file into the tree, bypassing the policy.
// A missing file is an empty space.
func (s *session) restore() error {
	if s.statePath == "" {
		return nil
	}
	file, err := os.Open(s.statePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening state: %w", err)
	}
	defer file.Close()

	snap, _, err := snapshot.Decode(file)
	if err != nil {
		return fmt.Errorf("reading state %s: %w", s.statePath, err)
	}
	if err := snapshot.Restore(s.tree, snap, value.NewRegistry()).Err(); err != nil {
		return fmt.Errorf("restoring state %s: %w", s.statePath, err)
	}
	s.logger.Debug("restored state", "file", s.statePath, "values", snap.ValueCount())
	return nil
}

// save writes the tree, without its mounts, to the state file. Mounts
// are rebuilt from the config on the next run; filesystem mounts keep
// their own data.
func (s *session) save(ctx context.Context) error {
	if s.statePath == "" {
		return nil
	}
	snap, err := snapshot.Capture(ctx, s.tree, snapshot.Options{SkipMounts: true})
	if err != nil {
		return err
	}

	temporary, err := os.CreateTemp(filepath.Dir(s.statePath), ".pathspace-state-*")
	if err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	defer os.Remove(temporary.Name())
	if _, err := snapshot.Encode(temporary, snap, snapshot.CompressionZstd); err != nil {
		temporary.Close()
		return fmt.Errorf("saving state: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	if err := os.Rename(temporary.Name(), s.statePath); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	s.logger.Debug("saved state", "file", s.statePath, "values", snap.ValueCount(), "skipped", len(snap.Skipped))
	return nil
}

func (s *session) close() {
	s.tree.Shutdown()
	s.cancel()
	s.pool.Shutdown()
}
