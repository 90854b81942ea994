// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import "fmt"

// An output can carry at most this many attached properties.
const outputMaxProperty = 16

// Output is a display connector/transmitter. It owns its three mode
// lists and holds a non-owning reference to the CRTC driving it.
type Output struct {
	m      *Manager
	driver OutputDriver

	ID            uint32
	Type          int32
	TypeID        int32
	Status        ConnectionStatus
	MmWidth       uint32
	MmHeight      uint32
	SubpixelOrder int32

	// crtc is nil while the output is unbound
	crtc *Crtc

	PossibleCrtcs  uint32
	PossibleClones uint32

	// probedModes holds the raw driver enumeration, modes the
	// validated catalog queries see, userModes the explicitly attached
	// ones that probing never prunes
	probedModes []*Mode
	modes       []*Mode
	userModes   []*Mode

	propertyIDs    [outputMaxProperty]uint32
	propertyValues [outputMaxProperty]uint64

	edidBlob *PropertyBlob

	initialX int32
	initialY int32
}

func (o *Output) String() string {
	return fmt.Sprintf("<Output id=%d name=%s %s>",
		o.ID, o.name(), getConnectionStatusName(o.Status))
}

func (o *Output) name() string {
	t := int(o.Type)
	if t < 0 || t >= len(outputTypeNames) {
		t = 0
	}
	return fmt.Sprintf("%s-%d", outputTypeNames[t], o.TypeID)
}

// CreateOutput registers a new output of the given transmitter type.
// The standard EDID and DPMS properties are attached right away.
func (m *Manager) CreateOutput(driver OutputDriver, outputType int32) (*Output, error) {
	o := &Output{
		m:      m,
		driver: driver,
		Type:   outputType,
		TypeID: 1,
		Status: ConnectionUnknown,
	}
	id, err := m.registry.alloc(o)
	if err != nil {
		logger.Warning("failed to allocate output id:", err)
		return nil, err
	}
	o.ID = id
	m.outputs = append(m.outputs, o)

	err = o.attachProperty(m.edidProp, 0)
	if err != nil {
		logger.Warning(err)
	}
	err = o.attachProperty(m.dpmsProp, 0)
	if err != nil {
		logger.Warning(err)
	}
	return o, nil
}

// destroyOutput frees o's modes and unregisters it.
func (m *Manager) destroyOutput(o *Output) {
	for _, mode := range o.probedModes {
		m.destroyMode(mode)
	}
	for _, mode := range o.modes {
		m.destroyMode(mode)
	}
	for _, mode := range o.userModes {
		m.destroyMode(mode)
	}
	o.probedModes = nil
	o.modes = nil
	o.userModes = nil

	m.registry.release(o.ID)
	for i, o0 := range m.outputs {
		if o0 == o {
			m.outputs = append(m.outputs[:i], m.outputs[i+1:]...)
			break
		}
	}
}

func (m *Manager) lookupOutput(id uint32) *Output {
	o, ok := m.registry.resolve(id).(*Output)
	if !ok || o.ID != id {
		return nil
	}
	return o
}

// addProbedMode appends mode to o's probed list; drivers call this from
// GetModes.
func (o *Output) addProbedMode(mode *Mode) {
	o.probedModes = append(o.probedModes, mode)
}

// removeMode deletes mode from whichever of o's lists holds it and frees
// its id.
func (o *Output) removeMode(mode *Mode) {
	for _, list := range []*[]*Mode{&o.probedModes, &o.modes, &o.userModes} {
		for i, m0 := range *list {
			if m0 == mode {
				*list = append((*list)[:i], (*list)[i+1:]...)
				o.m.destroyMode(mode)
				return
			}
		}
	}
}

// newMode allocates a registered mode.
func (m *Manager) newMode() (*Mode, error) {
	mode := &Mode{}
	id, err := m.registry.alloc(mode)
	if err != nil {
		logger.Warning("failed to allocate mode id:", err)
		return nil, err
	}
	mode.ID = id
	return mode, nil
}

func (m *Manager) destroyMode(mode *Mode) {
	m.registry.release(mode.ID)
}

// duplicateMode returns a registered copy of mode.
func (m *Manager) duplicateMode(mode *Mode) (*Mode, error) {
	dup, err := m.newMode()
	if err != nil {
		return nil, err
	}
	id := dup.ID
	*dup = *mode
	dup.ID = id
	return dup, nil
}

type Outputs []*Output

func (outputs Outputs) getByCrtc(crtc *Crtc) Outputs {
	var result Outputs
	for _, o := range outputs {
		if o.crtc == crtc {
			result = append(result, o)
		}
	}
	return result
}

func (outputs Outputs) getConnected() Outputs {
	var result Outputs
	for _, o := range outputs {
		if o.Status == ConnectionConnected {
			result = append(result, o)
		}
	}
	return result
}
