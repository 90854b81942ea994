// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import (
	"github.com/linuxdeepin/go-lib/strv"
	"golang.org/x/xerrors"
)

const propNameLen = 32

// Property flags.
const (
	PropFlagEnum      uint32 = 1 << 1
	PropFlagRange     uint32 = 1 << 2
	PropFlagImmutable uint32 = 1 << 4
	PropFlagBlob      uint32 = 1 << 5
)

type propertyEnum struct {
	value uint64
	name  string
}

// Property is a typed, named attribute attachable to outputs. Range
// properties keep exactly two values [min,max]; enum properties keep one
// value per declared entry plus a display name for each.
type Property struct {
	ID     uint32
	Name   string
	Flags  uint32
	Values []uint64

	enums []*propertyEnum
	blobs []*PropertyBlob
}

func truncatePropName(name string) string {
	if len(name) >= propNameLen {
		return name[:propNameLen-1]
	}
	return name
}

// CreateProperty registers a property with room for numValues domain
// values. Caller must hold the Manager lock.
func (m *Manager) CreateProperty(flags uint32, name string, numValues int) (*Property, error) {
	p := &Property{
		Name:   truncatePropName(name),
		Flags:  flags,
		Values: make([]uint64, numValues),
	}
	id, err := m.registry.alloc(p)
	if err != nil {
		logger.Warning("failed to allocate property id:", err)
		return nil, err
	}
	p.ID = id
	m.props = append(m.props, p)
	return p, nil
}

// AddEnum declares the enum entry at index with the given value and
// display name. Declaring a value that already exists just renames it.
func (p *Property) AddEnum(index int, value uint64, name string) error {
	if p.Flags&PropFlagEnum == 0 {
		return ErrInvalidArgument
	}
	for _, e := range p.enums {
		if e.value == value {
			e.name = truncatePropName(name)
			return nil
		}
	}
	if index < 0 || index >= len(p.Values) {
		return ErrInvalidArgument
	}
	p.Values[index] = value
	p.enums = append(p.enums, &propertyEnum{
		value: value,
		name:  truncatePropName(name),
	})
	return nil
}

func (p *Property) enumNames() strv.Strv {
	var names strv.Strv
	for _, e := range p.enums {
		if !names.Contains(e.name) {
			names = append(names, e.name)
		}
	}
	return names
}

func (m *Manager) destroyProperty(p *Property) {
	p.enums = nil
	p.blobs = nil
	m.registry.release(p.ID)
	for i, p0 := range m.props {
		if p0 == p {
			m.props = append(m.props[:i], m.props[i+1:]...)
			break
		}
	}
}

func (m *Manager) lookupProperty(id uint32) *Property {
	p, ok := m.registry.resolve(id).(*Property)
	if !ok || p.ID != id {
		return nil
	}
	return p
}

// attachProperty records (property, initVal) in o's slot table.
func (o *Output) attachProperty(p *Property, initVal uint64) error {
	for i := 0; i < outputMaxProperty; i++ {
		if o.propertyIDs[i] == 0 {
			o.propertyIDs[i] = p.ID
			o.propertyValues[i] = initVal
			return nil
		}
	}
	return xerrors.Errorf("attach %q to %s: %w", p.Name, o.name(), ErrCapacityExceeded)
}

// setPropertyValue stores value in o's slot for p, without validation.
func (o *Output) setPropertyValue(p *Property, value uint64) error {
	for i := 0; i < outputMaxProperty; i++ {
		if o.propertyIDs[i] == p.ID {
			o.propertyValues[i] = value
			return nil
		}
	}
	return ErrNotFound
}

func (o *Output) getPropertyValue(p *Property) (uint64, error) {
	for i := 0; i < outputMaxProperty; i++ {
		if o.propertyIDs[i] == p.ID {
			return o.propertyValues[i], nil
		}
	}
	return 0, ErrNotFound
}

// validatePropertyValue checks a proposed value against p's declared
// domain. Immutable properties reject every set.
func validatePropertyValue(p *Property, value uint64) error {
	if p.Flags&PropFlagImmutable != 0 {
		return ErrInvalidArgument
	}
	if p.Flags&PropFlagRange != 0 {
		if value < p.Values[0] || value > p.Values[1] {
			return ErrInvalidArgument
		}
		return nil
	}
	for _, v := range p.Values {
		if v == value {
			return nil
		}
	}
	return ErrInvalidArgument
}

// PropertyBlob is an immutable, opaque byte payload.
type PropertyBlob struct {
	ID     uint32
	Length uint32
	Data   []byte
}

// createPropertyBlob registers a blob with a private copy of data.
func (m *Manager) createPropertyBlob(data []byte) (*PropertyBlob, error) {
	if len(data) == 0 {
		return nil, ErrInvalidArgument
	}
	blob := &PropertyBlob{
		Length: uint32(len(data)),
		Data:   append([]byte(nil), data...),
	}
	id, err := m.registry.alloc(blob)
	if err != nil {
		logger.Warning("failed to allocate blob id:", err)
		return nil, err
	}
	blob.ID = id
	m.blobs = append(m.blobs, blob)
	return blob, nil
}

func (m *Manager) destroyPropertyBlob(blob *PropertyBlob) {
	m.registry.release(blob.ID)
	for i, b := range m.blobs {
		if b == blob {
			m.blobs = append(m.blobs[:i], m.blobs[i+1:]...)
			break
		}
	}
}

func (m *Manager) lookupPropertyBlob(id uint32) *PropertyBlob {
	blob, ok := m.registry.resolve(id).(*PropertyBlob)
	if !ok || blob.ID != id {
		return nil
	}
	return blob
}

// updateEdidProperty replaces o's EDID blob with a fresh one; blobs are
// never mutated in place.
func (m *Manager) updateEdidProperty(o *Output, edid []byte) error {
	if o.edidBlob != nil {
		m.destroyPropertyBlob(o.edidBlob)
		o.edidBlob = nil
	}
	blob, err := m.createPropertyBlob(edid)
	if err != nil {
		return err
	}
	o.edidBlob = blob
	return o.setPropertyValue(m.edidProp, uint64(blob.ID))
}
