// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

// idRegistry hands out small dense integer ids for every entity the
// Manager exposes. All methods must be called with the Manager lock held;
// the registry shares the mode-config lock domain.
//
// A released id may be reused for a different entity, so resolving an id
// from a stale handle can return the wrong object. Callers must compare
// the resolved entity's stored id with the id they asked for and treat a
// mismatch as not-found.
type idRegistry struct {
	objs   map[uint32]interface{}
	nextID uint32
	free   []uint32
}

func newIDRegistry() *idRegistry {
	return &idRegistry{
		objs:   make(map[uint32]interface{}),
		nextID: 1,
	}
}

// alloc returns a new id owning obj. Ids start at 1; 0 is never a valid id.
func (r *idRegistry) alloc(obj interface{}) (uint32, error) {
	id, err := r.allocOnce(obj)
	if err != nil {
		// retry once, the free list may have been refilled by a
		// concurrent-in-request release before the id space ran out
		id, err = r.allocOnce(obj)
	}
	return id, err
}

func (r *idRegistry) allocOnce(obj interface{}) (uint32, error) {
	if n := len(r.free); n > 0 {
		id := r.free[n-1]
		r.free = r.free[:n-1]
		r.objs[id] = obj
		return id, nil
	}
	if r.nextID == 0 {
		// wrapped around, id space exhausted
		return 0, ErrResourceExhausted
	}
	id := r.nextID
	r.nextID++
	r.objs[id] = obj
	return id, nil
}

// release frees id for future reuse. Releasing an unknown id is a no-op.
func (r *idRegistry) release(id uint32) {
	if _, ok := r.objs[id]; !ok {
		return
	}
	delete(r.objs, id)
	r.free = append(r.free, id)
}

// resolve returns the owner of id, or nil if id is not live.
func (r *idRegistry) resolve(id uint32) interface{} {
	return r.objs[id]
}

func (r *idRegistry) count() int {
	return len(r.objs)
}
