package image

import (
	"sync/atomic"

	"vhdi/errs"
	"vhdi/guid"
)

// Chain links a Descriptor to an optional parent Chain (recursive),
// enforcing spec.md invariant 5 (a differential image's parent
// identifier must match the parent's LinkageIdentifier) and rejecting
// cycles the original libvhdi never checked for (spec.md §9).
type Chain struct {
	descriptor *Descriptor
	parent     *Chain
	abort      *atomic.Bool
}

// New wraps desc as the root (or only) link of a chain. A fresh abort
// flag is created here and shared with any parent later attached, so
// signalling abort on one link stops the whole recursive read.
func New(desc *Descriptor) *Chain {
	return &Chain{descriptor: desc, abort: new(atomic.Bool)}
}

// Descriptor returns this link's descriptor.
func (c *Chain) Descriptor() *Descriptor { return c.descriptor }

// Parent returns this link's parent, or nil if none is attached.
func (c *Chain) Parent() *Chain { return c.parent }

// Depth reports how many parents have been attached above this link.
func (c *Chain) Depth() int {
	n := 0
	for cur := c.parent; cur != nil; cur = cur.parent {
		n++
	}
	return n
}

// AttachParent links parent beneath c. It fails if c is not
// differential, if a parent is already attached, if the identifiers
// don't match, or if attaching would create a cycle.
func (c *Chain) AttachParent(parent *Chain) error {
	const op = "image.Chain.AttachParent"

	if c.descriptor.DiskType != DiskTypeDifferential {
		return errs.New(errs.KindArgument, op, errNotDifferential())
	}
	if c.parent != nil {
		return errs.New(errs.KindArgument, op, errAlreadyAttached())
	}
	if !c.descriptor.ParentIdentifier.Equal(parent.descriptor.LinkageIdentifier) {
		return errs.New(errs.KindParentMismatch, op, errIdentifierMismatch())
	}
	if err := checkCycle(c, parent); err != nil {
		return err
	}

	for cur := parent; cur != nil; cur = cur.parent {
		cur.abort = c.abort
	}
	c.parent = parent
	return nil
}

// checkCycle rejects a parent attachment that would make any
// identifier appear twice across the resulting chain.
func checkCycle(c, parent *Chain) error {
	seen := make(map[guid.Identifier]bool)
	for cur := c; cur != nil; cur = cur.parent {
		seen[cur.descriptor.Identifier] = true
	}
	for cur := parent; cur != nil; cur = cur.parent {
		if seen[cur.descriptor.Identifier] {
			return errs.New(errs.KindParentMismatch, "image.Chain.AttachParent", errCycle())
		}
		seen[cur.descriptor.Identifier] = true
	}
	return nil
}

// SignalAbort requests that any in-flight or future read on this
// chain (at any level) stop at the next span boundary.
func (c *Chain) SignalAbort() { c.abort.Store(true) }

// AbortRequested reports whether SignalAbort has been called.
func (c *Chain) AbortRequested() bool { return c.abort.Load() }
