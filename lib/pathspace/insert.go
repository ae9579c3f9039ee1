// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pathspace

import (
	"github.com/bureau-foundation/pathspace/lib/spaceerr"
	"github.com/bureau-foundation/pathspace/lib/spacepath"
	"github.com/bureau-foundation/pathspace/lib/task"
	"github.com/bureau-foundation/pathspace/lib/value"
)

// Insert stores v at path. A literal path appends to one leaf; a glob
// path appends to every existing leaf it matches. A value holding a
// Space mounts it.
//
// When this tree is not mounted anywhere it also follows the retargets
// reported by mounted stores, re-inserting at each requested path.
func (t *Tree) Insert(path string, v *value.Value) InsertReturn {
	result := t.insertOnce(path, v)
	if len(result.Retargets) == 0 {
		return result
	}
	if parent, _ := t.mountPoint(); parent != nil {
		return result
	}
	return t.followRetargets(result, v)
}

func (t *Tree) insertOnce(path string, v *value.Value) InsertReturn {
	if err := t.shuttingDown(); err != nil {
		return Failed(err)
	}
	p := spacepath.Path(path)
	if err := p.Validate(); err != nil {
		return Failed(err)
	}
	if err := v.Validate(); err != nil {
		return Failed(err)
	}
	names := p.Split()
	if len(names) == 0 {
		return Failed(spaceerr.New(spaceerr.InvalidPath, "cannot insert at the root"))
	}

	result := t.insertAt(t.root, spacepath.Root, names, v)
	if p.IsGlob() {
		t.cache.InvalidateMatching(string(spacepath.Normalize(p)))
		if result.Inserted() == 0 && len(result.Errors) == 0 && len(result.Retargets) == 0 {
			result.AddError(spaceerr.Newf(spaceerr.NoSuchPath, "nothing matches %s", path))
		}
	}
	return result
}

// mergeMatch folds the result of one glob candidate into result. A
// candidate that matched nothing is not an error for the fan-out as a
// whole; the caller reports NoSuchPath when no candidate took a value.
func mergeMatch(result *InsertReturn, sub InsertReturn) {
	errs := sub.Errors[:0:0]
	for _, err := range sub.Errors {
		if !spaceerr.Is(err, spaceerr.NoSuchPath) {
			errs = append(errs, err)
		}
	}
	sub.Errors = errs
	result.Merge(sub)
}

func (t *Tree) followRetargets(result InsertReturn, v *value.Value) InsertReturn {
	pending := result.Retargets
	result.Retargets = nil
	for hop := 0; len(pending) > 0; hop++ {
		if hop == MaxRetargetHops {
			t.logger.Warn("retarget limit exceeded, dropping insert",
				"path", pending[0].Path,
				"pending", len(pending),
				"limit", MaxRetargetHops,
			)
			result.AddError(spaceerr.Newf(spaceerr.CapacityExceeded,
				"insert redirected more than %d times (last target %s)", MaxRetargetHops, pending[0].Path))
			break
		}

		var next []Retarget
		for _, retarget := range pending {
			redirected := v
			if retarget.Value != nil {
				redirected = retarget.Value
			}
			t.logger.Debug("retargeting insert", "path", retarget.Path, "hop", hop+1)
			sub := t.insertOnce(retarget.Path, redirected)
			next = append(next, sub.Retargets...)
			sub.Retargets = nil
			result.Merge(sub)
		}
		pending = next
	}
	return result
}

// insertAt places v at names below n, which lives at the path at.
func (t *Tree) insertAt(n *node, at spacepath.Path, names []spacepath.Name, v *value.Value) InsertReturn {
	name, rest := names[0], names[1:]

	if name.IsSupermatch() {
		if v.Kind() == value.KindSpace {
			return Failed(spaceerr.New(spaceerr.InvalidType, "nested spaces cannot be added in glob expressions"))
		}
		return t.insertSubtree(n, at, v)
	}

	if name.IsGlob() {
		if len(rest) == 0 && v.Kind() == value.KindSpace {
			return Failed(spaceerr.New(spaceerr.InvalidType, "nested spaces cannot be added in glob expressions"))
		}
		var result InsertReturn
		for _, c := range n.matching(name) {
			childPath := spacepath.Child(at, c.name)
			switch {
			case len(rest) == 0:
				if c.entry.kind == leafEntry && c.entry.leaf.push(v) {
					result.Merge(t.afterInsert(childPath, v))
				}
			case c.entry.kind == dirEntry:
				mergeMatch(&result, t.insertAt(c.entry.dir, childPath, rest, v))
			case c.entry.kind == mountEntry:
				mergeMatch(&result, c.entry.mount.Insert(string(spacepath.Join(rest...)), v))
			}
		}
		return result
	}

	literal := name.Literal()
	childPath := spacepath.Child(at, literal)

	if len(rest) > 0 {
		e, err := n.dir(literal)
		if err != nil {
			return Failed(err)
		}
		if e.kind == mountEntry {
			return e.mount.Insert(string(spacepath.Join(rest...)), v)
		}
		return t.insertAt(e.dir, childPath, rest, v)
	}

	if v.Kind() == value.KindSpace {
		return t.mount(n, literal, childPath, v)
	}
	if err := n.appendValue(literal, v); err != nil {
		return Failed(err)
	}
	return t.afterInsert(childPath, v)
}

// insertSubtree appends v to every live leaf below n.
func (t *Tree) insertSubtree(n *node, at spacepath.Path, v *value.Value) InsertReturn {
	var result InsertReturn
	for _, c := range n.sorted() {
		childPath := spacepath.Child(at, c.name)
		switch c.entry.kind {
		case leafEntry:
			if c.entry.leaf.push(v) {
				result.Merge(t.afterInsert(childPath, v))
			}
		case dirEntry:
			result.Merge(t.insertSubtree(c.entry.dir, childPath, v))
		case mountEntry:
			mergeMatch(&result, c.entry.mount.Insert("/"+string(spacepath.Supermatch), v))
		}
	}
	return result
}

func (t *Tree) mount(n *node, literal string, at spacepath.Path, v *value.Value) InsertReturn {
	space, ok := v.Space().(Space)
	if !ok {
		return Failed(spaceerr.Newf(spaceerr.InvalidType, "%s does not implement Space", v.TypeName()))
	}
	if err := n.attach(literal, space); err != nil {
		return Failed(err)
	}
	if mountable, ok := space.(Mountable); ok {
		mountable.Attach(t, string(at))
	}
	t.cache.InvalidatePrefix(string(at))
	t.NotifyUnder(string(at))
	t.logger.Debug("mounted space", "path", at, logValue(v))
	return InsertReturn{NbrSpacesInserted: 1}
}

// afterInsert counts a stored value, starts it if it is a task, and
// notifies its path.
func (t *Tree) afterInsert(at spacepath.Path, v *value.Value) InsertReturn {
	var result InsertReturn
	if v.Kind() == value.KindTask {
		result.NbrTasksInserted = 1
		tk := v.Task()
		notifyPath := string(at)
		tk.OnComplete(func() { t.Notify(notifyPath) })
		if tk.Category() != task.Lazy {
			t.schedule(tk)
		}
	} else {
		result.NbrValuesInserted = 1
	}
	t.Notify(string(at))
	return result
}
