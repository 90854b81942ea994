// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import (
	"github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/go-lib/dbusutil"
	"golang.org/x/xerrors"
)

func (m *Manager) GetInterfaceName() string {
	return dbusInterface
}

// GetResources lists every framebuffer, CRTC and output id plus the
// device size limits. Callers follow the size-then-fill protocol: pass
// zero capacities first to learn the counts, then call again with
// capacities at least that large. An undersized section comes back
// empty with its count updated; that is not an error.
func (m *Manager) GetResources(fbCap, crtcCap, outputCap uint32) (fbIDs, crtcIDs,
	outputIDs []uint32, fbCount, crtcCount, outputCount uint32,
	minWidth, minHeight, maxWidth, maxHeight uint32, busErr *dbus.Error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	fbCount = uint32(len(m.fbs))
	crtcCount = uint32(len(m.crtcs))
	outputCount = uint32(len(m.outputs))

	if fbCap >= fbCount {
		for _, fb := range m.fbs {
			fbIDs = append(fbIDs, fb.ID)
		}
	}
	if crtcCap >= crtcCount {
		for _, c := range m.crtcs {
			crtcIDs = append(crtcIDs, c.ID)
		}
	}
	if outputCap >= outputCount {
		for _, o := range m.outputs {
			outputIDs = append(outputIDs, o.ID)
		}
	}

	minWidth, minHeight = m.MinWidth, m.MinHeight
	maxWidth, maxHeight = m.MaxWidth, m.MaxHeight
	return
}

// GetCrtc reports a CRTC's position, framebuffer, current mode and the
// index bitmask of the outputs it drives.
func (m *Manager) GetCrtc(id uint32) (x, y int32, fbID uint32,
	modeValid bool, mode ModeInfo, outputMask uint32, busErr *dbus.Error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	crtc := m.lookupCrtc(id)
	if crtc == nil {
		busErr = dbusutil.ToError(xerrors.Errorf("crtc %d: %w", id, ErrNotFound))
		return
	}

	x, y = crtc.X, crtc.Y
	if crtc.fb != nil {
		fbID = crtc.fb.ID
	}
	if crtc.Enabled {
		modeValid = true
		mode = toModeInfo(&crtc.Mode)
	}
	for i, o := range m.outputs {
		if o.crtc == crtc {
			outputMask |= 1 << uint(i)
		}
	}
	return
}

// SetCrtc applies a configuration to one CRTC. hasMode false disables
// the CRTC. fbID -1 keeps the framebuffer currently bound. A mode needs
// a framebuffer and at least one output.
func (m *Manager) SetCrtc(id uint32, fbID int32, hasMode bool, mode ModeInfo,
	x, y int32, outputIDs []uint32) *dbus.Error {

	m.mu.Lock()
	defer m.mu.Unlock()

	crtc := m.lookupCrtc(id)
	if crtc == nil {
		return dbusutil.ToError(xerrors.Errorf("crtc %d: %w", id, ErrNotFound))
	}

	set := modeSet{crtc: crtc, x: x, y: y}

	if hasMode {
		if fbID == -1 {
			set.fb = crtc.fb
		} else {
			set.fb = m.lookupFramebuffer(uint32(fbID))
		}
		if set.fb == nil {
			return dbusutil.ToError(xerrors.Errorf("framebuffer %d: %w", fbID, ErrNotFound))
		}

		newMode, err := m.newMode()
		if err != nil {
			return dbusutil.ToError(err)
		}
		fromModeInfo(newMode, mode)
		newMode.Status = ModeOK
		newMode.setCrtcInfo(crtcInterlaceHalveV)
		set.mode = newMode
		defer func() {
			// the committer keeps its own copy, this one is only
			// the request carrier
			if crtc.desiredMode != newMode {
				m.destroyMode(newMode)
			}
		}()

		if len(outputIDs) == 0 {
			logger.Warning("SetCrtc: mode requested with no outputs")
			return dbusutil.ToError(ErrInvalidArgument)
		}
	} else if len(outputIDs) > 0 {
		return dbusutil.ToError(ErrInvalidArgument)
	}

	for _, oid := range outputIDs {
		o := m.lookupOutput(oid)
		if o == nil {
			return dbusutil.ToError(xerrors.Errorf("output %d: %w", oid, ErrNotFound))
		}
		set.outputs = append(set.outputs, o)
	}

	err := m.setConfig(&set)
	if err != nil {
		return dbusutil.ToError(err)
	}

	m.recordOutputConfig(crtc)
	m.saveUserConfig()
	return nil
}

// GetOutput reports everything about one output. Passing modeCap 0 runs
// a fresh probe first, so the first call can be expensive; the returned
// mode list covers the validated catalog followed by the user modes.
func (m *Manager) GetOutput(id uint32, modeCap, propCap uint32) (outputType,
	typeID, status int32, mmWidth, mmHeight uint32, crtcID uint32,
	possibleCrtcs, possibleClones uint32, modes []ModeInfo, modeCount uint32,
	propIDs []uint32, propValues []uint64, propCount uint32, busErr *dbus.Error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.lookupOutput(id)
	if o == nil {
		busErr = dbusutil.ToError(xerrors.Errorf("output %d: %w", id, ErrNotFound))
		return
	}

	if modeCap == 0 {
		m.probeSingleOutputModes(o, int32(m.MaxWidth), int32(m.MaxHeight))
	}

	outputType = o.Type
	typeID = o.TypeID
	status = int32(o.Status)
	mmWidth, mmHeight = o.MmWidth, o.MmHeight
	if o.crtc != nil {
		crtcID = o.crtc.ID
	}
	possibleCrtcs = o.PossibleCrtcs
	possibleClones = o.PossibleClones

	modeCount = uint32(len(o.modes) + len(o.userModes))
	if modeCap >= modeCount && modeCap > 0 {
		for _, mode := range o.modes {
			modes = append(modes, toModeInfo(mode))
		}
		for _, mode := range o.userModes {
			modes = append(modes, toModeInfo(mode))
		}
	}

	for i := 0; i < outputMaxProperty; i++ {
		if o.propertyIDs[i] != 0 {
			propCount++
		}
	}
	if propCap >= propCount {
		for i := 0; i < outputMaxProperty; i++ {
			if o.propertyIDs[i] != 0 {
				propIDs = append(propIDs, o.propertyIDs[i])
				propValues = append(propValues, o.propertyValues[i])
			}
		}
	}
	return
}

// SetOutputProperty validates value against the property's domain,
// stores it and hands it to the output driver when it supports property
// application.
func (m *Manager) SetOutputProperty(outputID, propID uint32, value uint64) *dbus.Error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.lookupOutput(outputID)
	if o == nil {
		return dbusutil.ToError(xerrors.Errorf("output %d: %w", outputID, ErrNotFound))
	}
	p := m.lookupProperty(propID)
	if p == nil {
		return dbusutil.ToError(xerrors.Errorf("property %d: %w", propID, ErrNotFound))
	}
	if _, err := o.getPropertyValue(p); err != nil {
		return dbusutil.ToError(xerrors.Errorf("property %q not on %s: %w",
			p.Name, o.name(), ErrNotFound))
	}

	err := validatePropertyValue(p, value)
	if err != nil {
		return dbusutil.ToError(err)
	}
	err = o.setPropertyValue(p, value)
	if err != nil {
		return dbusutil.ToError(err)
	}

	if ps, ok := o.driver.(outputPropertySetter); ok {
		err = ps.SetProperty(o, p, value)
		if err != nil {
			return dbusutil.ToError(err)
		}
	}
	return nil
}

// GetProperty describes a property: flags and name, the declared domain
// values, enum display names, and for blob properties the blob ids and
// lengths.
func (m *Manager) GetProperty(id uint32) (name string, flags uint32,
	values []uint64, enumValues []uint64, enumNames []string,
	blobIDs []uint32, blobLengths []uint32, busErr *dbus.Error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.lookupProperty(id)
	if p == nil {
		busErr = dbusutil.ToError(xerrors.Errorf("property %d: %w", id, ErrNotFound))
		return
	}

	name = p.Name
	flags = p.Flags
	values = append(values, p.Values...)
	for _, e := range p.enums {
		enumValues = append(enumValues, e.value)
		enumNames = append(enumNames, e.name)
	}
	for _, blob := range p.blobs {
		blobIDs = append(blobIDs, blob.ID)
		blobLengths = append(blobLengths, blob.Length)
	}
	return
}

// GetBlob returns a blob's length and, only when the caller already
// knows the exact length and asks for it, the payload.
func (m *Manager) GetBlob(id uint32, length uint32) (outLength uint32,
	data []byte, busErr *dbus.Error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	blob := m.lookupPropertyBlob(id)
	if blob == nil {
		busErr = dbusutil.ToError(xerrors.Errorf("blob %d: %w", id, ErrNotFound))
		return
	}

	outLength = blob.Length
	if length == blob.Length {
		data = append(data, blob.Data...)
	}
	return
}

// AddFramebuffer creates a framebuffer over the given buffer handle and
// records the calling connection as its owner. Geometry is checked
// against the device limits before the buffer table is consulted.
func (m *Manager) AddFramebuffer(sender dbus.Sender, width, height, pitch,
	bpp, depth uint32, handle uint64) (fbID uint32, busErr *dbus.Error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if width < m.MinWidth || width > m.MaxWidth ||
		height < m.MinHeight || height > m.MaxHeight {
		busErr = dbusutil.ToError(xerrors.Errorf(
			"framebuffer %dx%d outside device limits: %w",
			width, height, ErrInvalidArgument))
		return
	}

	bo, err := m.buffers.Lookup(handle)
	if err != nil {
		busErr = dbusutil.ToError(err)
		return
	}

	fb, err := m.createFramebuffer()
	if err != nil {
		busErr = dbusutil.ToError(err)
		return
	}
	fb.Width = width
	fb.Height = height
	fb.Pitch = pitch
	fb.BitsPerPixel = bpp
	fb.Depth = depth
	fb.bo = bo

	m.addSessionFb(string(sender), fb)
	fbID = fb.ID
	return
}

// ReplaceFramebuffer swaps the backing buffer and geometry of an owned
// framebuffer in place, then re-points every CRTC scanning out of it.
func (m *Manager) ReplaceFramebuffer(sender dbus.Sender, fbID uint32, width,
	height, pitch, bpp, depth uint32, handle uint64) *dbus.Error {

	m.mu.Lock()
	defer m.mu.Unlock()

	fb, err := m.ownedFramebuffer(string(sender), fbID)
	if err != nil {
		return dbusutil.ToError(err)
	}

	bo, err := m.buffers.Lookup(handle)
	if err != nil {
		return dbusutil.ToError(err)
	}

	fb.Width = width
	fb.Height = height
	fb.Pitch = pitch
	fb.BitsPerPixel = bpp
	fb.Depth = depth
	fb.bo = bo

	for _, c := range m.crtcs {
		if c.fb != fb {
			continue
		}
		if bs, ok := c.driver.(crtcBaseSetter); ok {
			bs.ModeSetBase(c, c.X, c.Y)
		}
	}
	return nil
}

// RemoveFramebuffer destroys an owned framebuffer.
func (m *Manager) RemoveFramebuffer(sender dbus.Sender, fbID uint32) *dbus.Error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fb, err := m.ownedFramebuffer(string(sender), fbID)
	if err != nil {
		return dbusutil.ToError(err)
	}
	m.removeSessionFb(string(sender), fb)
	m.destroyFramebuffer(fb)
	m.disableUnused()
	return nil
}

// GetFramebuffer reports a framebuffer's geometry and buffer handle.
func (m *Manager) GetFramebuffer(fbID uint32) (width, height, pitch, bpp,
	depth uint32, handle uint64, busErr *dbus.Error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	fb := m.lookupFramebuffer(fbID)
	if fb == nil {
		busErr = dbusutil.ToError(xerrors.Errorf("framebuffer %d: %w", fbID, ErrNotFound))
		return
	}
	width, height = fb.Width, fb.Height
	pitch = fb.Pitch
	bpp = fb.BitsPerPixel
	depth = fb.Depth
	if fb.bo != nil {
		handle = fb.bo.Handle
	}
	return
}

// ownedFramebuffer resolves fbID and checks the sender owns it; driver
// framebuffers are never client-removable.
func (m *Manager) ownedFramebuffer(sender string, fbID uint32) (*Framebuffer, error) {
	fb := m.lookupFramebuffer(fbID)
	if fb == nil {
		return nil, xerrors.Errorf("framebuffer %d: %w", fbID, ErrNotFound)
	}
	if fb.bo != nil && fb.bo.Type == BufferTypeKernel {
		return nil, xerrors.Errorf("framebuffer %d is driver-owned: %w",
			fbID, ErrPermissionDenied)
	}
	for _, owned := range m.sessions[sender] {
		if owned == fb {
			return fb, nil
		}
	}
	return nil, xerrors.Errorf("framebuffer %d not owned by %s: %w",
		fbID, sender, ErrPermissionDenied)
}

// AttachUserMode adds a mode to the output's user-supplied list; user
// modes survive probing untouched.
func (m *Manager) AttachUserMode(outputID uint32, info ModeInfo) *dbus.Error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.lookupOutput(outputID)
	if o == nil {
		return dbusutil.ToError(xerrors.Errorf("output %d: %w", outputID, ErrNotFound))
	}

	mode, err := m.newMode()
	if err != nil {
		return dbusutil.ToError(err)
	}
	fromModeInfo(mode, info)
	mode.Type |= ModeTypeUserDef
	mode.Status = ModeOK
	o.userModes = append(o.userModes, mode)
	return nil
}

// attachModeCrtc duplicates mode onto the user list of every output
// driven by crtc.
func (m *Manager) attachModeCrtc(crtc *Crtc, mode *Mode) error {
	for _, o := range m.outputs.getByCrtc(crtc) {
		dup, err := m.duplicateMode(mode)
		if err != nil {
			return err
		}
		dup.Type |= ModeTypeUserDef
		o.userModes = append(o.userModes, dup)
	}
	return nil
}

// DetachUserMode removes the structurally matching mode from the
// output's user-supplied list.
func (m *Manager) DetachUserMode(outputID uint32, info ModeInfo) *dbus.Error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.lookupOutput(outputID)
	if o == nil {
		return dbusutil.ToError(xerrors.Errorf("output %d: %w", outputID, ErrNotFound))
	}

	var probe Mode
	fromModeInfo(&probe, info)
	mode := findFirstMode(o.userModes, func(mode *Mode) bool {
		return mode.equal(&probe)
	})
	if mode == nil {
		return dbusutil.ToError(xerrors.Errorf("no matching user mode on %s: %w",
			o.name(), ErrNotFound))
	}
	o.removeMode(mode)
	return nil
}

// CursorSet installs (or with handle 0 removes) the cursor image on a
// CRTC. Fails Unsupported when the CRTC driver has no cursor support.
func (m *Manager) CursorSet(crtcID uint32, handle uint64, width, height uint32) *dbus.Error {
	m.mu.Lock()
	defer m.mu.Unlock()

	crtc := m.lookupCrtc(crtcID)
	if crtc == nil {
		return dbusutil.ToError(xerrors.Errorf("crtc %d: %w", crtcID, ErrNotFound))
	}
	cur, ok := crtc.driver.(crtcCursor)
	if !ok {
		return dbusutil.ToError(xerrors.Errorf("crtc %d has no cursor: %w",
			crtcID, ErrUnsupported))
	}

	var bo *BufferObject
	if handle != 0 {
		var err error
		bo, err = m.buffers.Lookup(handle)
		if err != nil {
			return dbusutil.ToError(err)
		}
	}
	return dbusutil.ToError(cur.CursorSet(crtc, bo, width, height))
}

// CursorMove repositions the cursor on a CRTC.
func (m *Manager) CursorMove(crtcID uint32, x, y int32) *dbus.Error {
	m.mu.Lock()
	defer m.mu.Unlock()

	crtc := m.lookupCrtc(crtcID)
	if crtc == nil {
		return dbusutil.ToError(xerrors.Errorf("crtc %d: %w", crtcID, ErrNotFound))
	}
	cur, ok := crtc.driver.(crtcCursor)
	if !ok {
		return dbusutil.ToError(xerrors.Errorf("crtc %d has no cursor: %w",
			crtcID, ErrUnsupported))
	}
	return dbusutil.ToError(cur.CursorMove(crtc, x, y))
}

// HotplugNotify reports a connection change on an output, driving the
// second hotplug stage.
func (m *Manager) HotplugNotify(outputID uint32, connected bool) *dbus.Error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := m.lookupOutput(outputID)
	if o == nil {
		return dbusutil.ToError(xerrors.Errorf("output %d: %w", outputID, ErrNotFound))
	}

	if hs, ok := o.driver.(outputHotplugSetter); ok {
		hs.SetConnected(o, connected)
	}
	return dbusutil.ToError(m.hotplugStageTwo(o, connected))
}

// GetHotplugCounter reads the monotonic hotplug counter without taking
// the device lock.
func (m *Manager) GetHotplugCounter() (uint32, *dbus.Error) {
	return m.hotplugCounter(), nil
}
