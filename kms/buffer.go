// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import (
	"sync"

	"golang.org/x/xerrors"
)

// BufferType says who owns a buffer object's lifetime.
type BufferType int32

const (
	BufferTypeUser BufferType = iota
	// BufferTypeKernel buffers belong to the driver; framebuffers on
	// top of them are returned to the driver instead of destroyed.
	BufferTypeKernel
)

// BufferObject is an allocation handle from the external buffer
// allocator. Only metadata is tracked here.
type BufferObject struct {
	Handle uint64
	Type   BufferType
	Size   uint64
}

// BufferTable is the handle-to-object lookup table. It has its own lock
// domain, acquired and released around single lookups and never held
// while mode-configuration work runs.
type BufferTable struct {
	mu   sync.Mutex
	objs map[uint64]*BufferObject
}

func NewBufferTable() *BufferTable {
	return &BufferTable{objs: make(map[uint64]*BufferObject)}
}

// Register adds bo under its handle, replacing any previous entry.
func (t *BufferTable) Register(bo *BufferObject) {
	t.mu.Lock()
	t.objs[bo.Handle] = bo
	t.mu.Unlock()
}

// Unregister drops the entry for handle.
func (t *BufferTable) Unregister(handle uint64) {
	t.mu.Lock()
	delete(t.objs, handle)
	t.mu.Unlock()
}

// Lookup resolves handle to its buffer object.
func (t *BufferTable) Lookup(handle uint64) (*BufferObject, error) {
	t.mu.Lock()
	bo, ok := t.objs[handle]
	t.mu.Unlock()
	if !ok {
		return nil, xerrors.Errorf("buffer handle %d: %w", handle, ErrNotFound)
	}
	return bo, nil
}
