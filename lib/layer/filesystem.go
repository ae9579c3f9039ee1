// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/bureau-foundation/pathspace/lib/pathspace"
	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
	"github.com/bureau-foundation/pathspace/lib/value"
)

// FilesystemOptions configures a Filesystem.
type FilesystemOptions struct {
	// Logger receives watch errors and retry exhaustion. Nil discards.
	Logger *slog.Logger
	// MaxRetries bounds retries of a failed write. Zero selects 5.
	MaxRetries uint64
	// Backoff is the first retry delay of the Fibonacci schedule. Zero
	// selects 50ms.
	Backoff time.Duration
	// FileMode and DirMode default to 0o644 and 0o755.
	FileMode fs.FileMode
	DirMode  fs.FileMode
}

// Filesystem stores string values as files below a root directory.
// Each path holds at most one value: an insert overwrites the file.
// Taking, blocking, and globs are not supported; a tree that mounts a
// Filesystem does the blocking itself, woken by Watch.
type Filesystem struct {
	attachment

	root       string
	logger     *slog.Logger
	maxRetries uint64
	backoff    time.Duration
	fileMode   fs.FileMode
	dirMode    fs.FileMode

	closed    atomic.Bool
	watchMu   sync.Mutex
	stopWatch []context.CancelFunc
}

var stringType = reflect.TypeFor[string]()

// NewFilesystem creates root if needed and returns a store over it.
func NewFilesystem(root string, opts FilesystemOptions) (*Filesystem, error) {
	if root == "" {
		return nil, fmt.Errorf("filesystem root is required")
	}
	absolute, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving filesystem root %q: %w", root, err)
	}
	f := &Filesystem{
		root:       absolute,
		logger:     opts.Logger,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		fileMode:   opts.FileMode,
		dirMode:    opts.DirMode,
	}
	if f.logger == nil {
		f.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if f.maxRetries == 0 {
		f.maxRetries = 5
	}
	if f.backoff == 0 {
		f.backoff = 50 * time.Millisecond
	}
	if f.fileMode == 0 {
		f.fileMode = 0o644
	}
	if f.dirMode == 0 {
		f.dirMode = 0o755
	}
	if err := os.MkdirAll(f.root, f.dirMode); err != nil {
		return nil, fmt.Errorf("creating filesystem root: %w", err)
	}
	return f, nil
}

// Root returns the absolute directory backing the store.
func (f *Filesystem) Root() string { return f.root }

// file maps a concrete store path to a file path below the root.
func (f *Filesystem) file(path string) (string, error) {
	p := spacepath.Path(path)
	if err := p.Validate(); err != nil {
		return "", err
	}
	if p.IsGlob() {
		return "", spaceerr.Newf(spaceerr.NotSupported, "filesystem paths must be concrete: %s", path)
	}
	var parts []string
	for name := range p.Names() {
		parts = append(parts, name.Literal())
	}
	if len(parts) == 0 {
		return f.root, nil
	}
	relative := filepath.Join(parts...)
	if !filepath.IsLocal(relative) {
		return "", spaceerr.Newf(spaceerr.InvalidPath, "%s resolves outside the filesystem root", path)
	}
	return filepath.Join(f.root, relative), nil
}

// storePath maps a file below the root back to a store path.
func (f *Filesystem) storePath(file string) (string, bool) {
	relative, err := filepath.Rel(f.root, file)
	if err != nil || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", false
	}
	at := spacepath.Root
	if relative == "." {
		return string(at), true
	}
	for _, part := range strings.Split(relative, string(filepath.Separator)) {
		at = spacepath.Child(at, part)
	}
	return string(at), true
}

func (f *Filesystem) shuttingDown() error {
	if f.closed.Load() {
		return spaceerr.New(spaceerr.ShuttingDown, "filesystem store is shut down")
	}
	return nil
}

func (f *Filesystem) Insert(path string, v *value.Value) pathspace.InsertReturn {
	if err := f.shuttingDown(); err != nil {
		return pathspace.Failed(err)
	}
	file, err := f.file(path)
	if err != nil {
		return pathspace.Failed(err)
	}
	if err := v.Validate(); err != nil {
		return pathspace.Failed(err)
	}
	if v.Kind() != value.KindData || v.Type() != stringType {
		return pathspace.Failed(spaceerr.Newf(spaceerr.InvalidType, "filesystem stores strings, not %s", v.TypeName()))
	}
	payload, _ := v.Resolve()
	content := payload.(string)
	if file == f.root {
		return pathspace.Failed(spaceerr.New(spaceerr.InvalidPath, "cannot write the root directory"))
	}

	if err := f.write(context.Background(), file, []byte(content)); err != nil {
		return pathspace.Failed(classify(err, path))
	}
	f.notifyParent(string(spacepath.Normalize(spacepath.Path(path))))
	return pathspace.InsertReturn{NbrValuesInserted: 1}
}

// write creates parent directories and the file, retrying transient
// failures with Fibonacci backoff.
func (f *Filesystem) write(ctx context.Context, file string, content []byte) error {
	backoff := retry.WithMaxRetries(f.maxRetries, retry.NewFibonacci(f.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := os.MkdirAll(filepath.Dir(file), f.dirMode)
		if err == nil {
			err = os.WriteFile(file, content, f.fileMode)
		}
		if shouldRetry(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && shouldRetry(err) {
		f.logger.Warn("filesystem write gave up", "file", file, "error", err)
	}
	return err
}

// shouldRetry reports whether a filesystem error may succeed on a
// later attempt. Missing paths, permissions, quota, and structural
// errors are permanent.
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, fs.ErrClosed) ||
		errors.Is(err, fs.ErrExist) {
		return false
	}
	switch {
	case errors.Is(err, syscall.EROFS),
		errors.Is(err, syscall.ENOSPC),
		errors.Is(err, syscall.EDQUOT),
		errors.Is(err, syscall.EACCES),
		errors.Is(err, syscall.EPERM),
		errors.Is(err, syscall.ENAMETOOLONG),
		errors.Is(err, syscall.ENOTDIR),
		errors.Is(err, syscall.EISDIR),
		errors.Is(err, syscall.ELOOP),
		errors.Is(err, syscall.EINVAL):
		return false
	}
	return true
}

// classify maps an OS error to the store's error codes.
func classify(err error, path string) error {
	switch {
	case errors.Is(err, syscall.ENOTDIR):
		return spaceerr.Newf(spaceerr.InvalidPathSubcomponent, "sub-component of %s is a file", path)
	case errors.Is(err, syscall.EISDIR):
		return spaceerr.Newf(spaceerr.NoObjectFound, "%s is a directory", path)
	case errors.Is(err, fs.ErrNotExist):
		return spaceerr.Newf(spaceerr.NoSuchPath, "%s does not exist", path)
	case errors.Is(err, fs.ErrPermission):
		return spaceerr.Newf(spaceerr.InvalidPermissions, "%s: %v", path, err)
	default:
		return spaceerr.Newf(spaceerr.UnknownError, "%s: %v", path, err)
	}
}

func (f *Filesystem) Read(ctx context.Context, path string, want value.Type, opts pathspace.Options) (*value.Value, error) {
	if err := f.shuttingDown(); err != nil {
		return nil, err
	}
	if opts.Block {
		return nil, spaceerr.New(spaceerr.NotSupported, "filesystem reads cannot block")
	}
	if opts.DoPop {
		return nil, spaceerr.New(spaceerr.NotSupported, "filesystem values cannot be taken")
	}
	file, err := f.file(path)
	if err != nil {
		return nil, err
	}
	if !want.Accepts(stringType) {
		return nil, spaceerr.Newf(spaceerr.TypeMismatch, "want %s, have string", want.Name())
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, classify(err, path)
	}
	return value.Of(string(content)), nil
}

// Take is not supported: files are not queues.
func (f *Filesystem) Take(context.Context, string, value.Type, pathspace.Options) (*value.Value, error) {
	return nil, spaceerr.New(spaceerr.NotSupported, "filesystem values cannot be taken")
}

func (f *Filesystem) Visit(ctx context.Context, visitor pathspace.Visitor, opts pathspace.VisitOptions) error {
	if err := f.shuttingDown(); err != nil {
		return err
	}
	root := opts.Root
	if root == "" {
		root = string(spacepath.Root)
	}
	if spacepath.Path(root).IsGlob() {
		return spaceerr.Newf(spaceerr.InvalidPath, "visit root %s must be concrete", root)
	}
	file, err := f.file(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(file)
	if err != nil {
		return classify(err, root)
	}
	at := string(spacepath.Normalize(spacepath.Path(root)))
	_, err = f.visit(ctx, file, at, info.IsDir(), 0, visitor, opts)
	return err
}

func (f *Filesystem) visit(ctx context.Context, file, at string, isDir bool, depth int, visitor pathspace.Visitor, opts pathspace.VisitOptions) (pathspace.VisitControl, error) {
	if err := ctx.Err(); err != nil {
		return pathspace.Stop, err
	}
	if !isDir {
		entry := pathspace.Entry{Path: at, Depth: depth, HasValue: true, QueueDepth: 1}
		var handle *pathspace.ValueHandle
		if opts.IncludeValues {
			content, err := os.ReadFile(file)
			if err != nil {
				return pathspace.Continue, nil
			}
			handle = pathspace.NewValueHandle([]*value.Value{value.Of(string(content))})
		}
		return visitor(entry, handle), nil
	}

	children, err := os.ReadDir(file)
	if err != nil {
		return pathspace.Stop, classify(err, at)
	}
	control := visitor(pathspace.Entry{Path: at, Depth: depth, HasChildren: len(children) > 0}, nil)
	if control != pathspace.Continue || (opts.MaxDepth > 0 && depth >= opts.MaxDepth) {
		return control, nil
	}
	if opts.MaxChildren > 0 && len(children) > opts.MaxChildren {
		children = children[:opts.MaxChildren]
	}
	for _, child := range children {
		childPath := string(spacepath.Child(spacepath.Path(at), child.Name()))
		control, err := f.visit(ctx, filepath.Join(file, child.Name()), childPath, child.IsDir(), depth+1, visitor, opts)
		if err != nil {
			return pathspace.Stop, err
		}
		if control == pathspace.Stop {
			return pathspace.Stop, nil
		}
	}
	return pathspace.Continue, nil
}

// Notify forwards to the tree this store is mounted in; the filesystem
// itself has no waiters.
func (f *Filesystem) Notify(path string) {
	f.notifyParent(path)
}

// Shutdown stops every watcher. Later operations fail with
// ShuttingDown.
func (f *Filesystem) Shutdown() {
	if !f.closed.CompareAndSwap(false, true) {
		return
	}
	f.watchMu.Lock()
	stops := f.stopWatch
	f.stopWatch = nil
	f.watchMu.Unlock()
	for _, stop := range stops {
		stop()
	}
}

var (
	_ pathspace.Space     = (*Filesystem)(nil)
	_ pathspace.Mountable = (*Filesystem)(nil)
)
