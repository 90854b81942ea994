// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import (
	"golang.org/x/xerrors"
)

// modeSet is one requested configuration for a single CRTC: the mode to
// run, the framebuffer to scan out of, the scan-out origin and the
// outputs the CRTC should drive. A nil mode disables the CRTC.
type modeSet struct {
	crtc    *Crtc
	fb      *Framebuffer
	mode    *Mode
	x, y    int32
	outputs []*Output
}

// setCrtcMode drives the modeset sequence on one CRTC and the outputs
// bound to it. The sequence is fixup (outputs then CRTC), prepare,
// program, commit; a fixup rejection rolls the CRTC's recorded mode and
// position back and nothing has touched hardware yet. A CRTC that ends
// up unreferenced is recorded disabled and the call succeeds without
// touching hardware.
//
// When the new mode equals the current one and only the origin changed,
// a driver exposing base setting gets a single cheap call instead of
// the full sequence.
func (m *Manager) setCrtcMode(crtc *Crtc, mode *Mode, x, y int32) error {
	adjusted, err := m.duplicateMode(mode)
	if err != nil {
		return err
	}

	crtc.Enabled = m.crtcInUse(crtc)
	if !crtc.Enabled {
		logger.Debugf("crtc %d not in use, leaving untouched", crtc.ID)
		m.destroyMode(adjusted)
		return nil
	}

	savedMode := crtc.Mode
	savedX, savedY := crtc.X, crtc.Y

	crtc.Mode = *mode
	crtc.X = x
	crtc.Y = y

	if savedMode.equal(&crtc.Mode) && (savedX != x || savedY != y) {
		if bs, ok := crtc.driver.(crtcBaseSetter); ok {
			bs.ModeSetBase(crtc, x, y)
			m.destroyMode(adjusted)
			return nil
		}
	}

	outputs := Outputs(m.outputs).getByCrtc(crtc)

	for _, o := range outputs {
		if !o.driver.ModeFixup(o, mode, adjusted) {
			crtc.Mode = savedMode
			crtc.X, crtc.Y = savedX, savedY
			m.destroyMode(adjusted)
			return xerrors.Errorf("output %s rejected mode %s: %w",
				o.name(), mode.Name, ErrConfigRejected)
		}
	}
	if !crtc.driver.ModeFixup(crtc, mode, adjusted) {
		crtc.Mode = savedMode
		crtc.X, crtc.Y = savedX, savedY
		m.destroyMode(adjusted)
		return xerrors.Errorf("crtc %d rejected mode %s: %w",
			crtc.ID, mode.Name, ErrConfigRejected)
	}

	for _, o := range outputs {
		o.driver.Prepare(o)
	}
	crtc.driver.Prepare(crtc)

	crtc.driver.ModeSet(crtc, mode, adjusted, x, y)

	for _, o := range outputs {
		logger.Infof("%s: set mode %s on crtc %d", o.name(), mode.Name, crtc.ID)
		o.driver.ModeSet(o, mode, adjusted)
	}

	crtc.driver.Commit(crtc)
	for _, o := range outputs {
		o.driver.Commit(o)
	}

	m.destroyMode(adjusted)
	return nil
}

// disableUnused powers off every output without a CRTC and every
// disabled CRTC. Run after any configuration change so nothing keeps
// scanning out a stale picture.
func (m *Manager) disableUnused() {
	for _, o := range m.outputs {
		if o.crtc == nil {
			o.driver.Dpms(o, DpmsModeOff)
		}
	}
	for _, c := range m.crtcs {
		if !c.Enabled {
			c.driver.Dpms(c, DpmsModeOff)
		}
	}
}

// setConfig applies one modeSet to the device. The output→CRTC bindings
// are rewritten first; on any modeset failure both the bindings and the
// CRTC's enabled flag are restored, so a rejected request leaves the
// recorded state untouched. A request that changes neither mode nor
// bindings but flips the framebuffer or moves the origin takes the base
// path where the driver supports it.
func (m *Manager) setConfig(set *modeSet) error {
	if set == nil || set.crtc == nil {
		return ErrInvalidArgument
	}
	crtc := set.crtc

	savedEnabled := crtc.Enabled
	changed := false
	flipOrMove := false

	if crtc.fb != set.fb {
		flipOrMove = true
	}
	if set.x != crtc.X || set.y != crtc.Y {
		flipOrMove = true
	}
	if set.mode != nil && !set.mode.equal(&crtc.Mode) {
		changed = true
	}
	if set.mode == nil && crtc.Enabled {
		changed = true
	}

	savedCrtcs := make([]*Crtc, len(m.outputs))
	for i, o := range m.outputs {
		savedCrtcs[i] = o.crtc

		newCrtc := o.crtc
		if o.crtc == crtc {
			newCrtc = nil
		}
		for _, ro := range set.outputs {
			if ro == o {
				newCrtc = crtc
				break
			}
		}
		if newCrtc != o.crtc {
			changed = true
			o.crtc = newCrtc
		}
	}

	if flipOrMove && !changed {
		// Without base setting support a flip needs the full path.
		if _, ok := crtc.driver.(crtcBaseSetter); !ok {
			changed = true
		}
	}

	if changed {
		crtc.fb = set.fb
		crtc.Enabled = set.mode != nil
		if set.mode != nil {
			logger.Debugf("attempting to set mode %s on crtc %d", set.mode.Name, crtc.ID)
			err := m.setCrtcMode(crtc, set.mode, set.x, set.y)
			if err != nil {
				crtc.Enabled = savedEnabled
				for i, o := range m.outputs {
					o.crtc = savedCrtcs[i]
				}
				return err
			}
			crtc.desiredMode = set.mode
			crtc.desiredX = set.x
			crtc.desiredY = set.y
		}
		m.disableUnused()
	} else if flipOrMove {
		crtc.fb = set.fb
		if bs, ok := crtc.driver.(crtcBaseSetter); ok {
			bs.ModeSetBase(crtc, set.x, set.y)
		}
	}

	return nil
}

// InitialConfig probes all outputs, computes a first assignment, asks
// the device driver for framebuffers and lights up whatever it can.
// Returns true if at least one CRTC came up.
func (m *Manager) InitialConfig() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.probeOutputModes(2048, 2048)
	m.pickCrtcs()
	m.applyUserConfig()

	any := false
	for _, o := range m.outputs {
		if o.crtc == nil || o.crtc.desiredMode == nil {
			continue
		}
		err := m.driver.FbProbe(m, o.crtc, o)
		if err != nil {
			logger.Warningf("fb probe failed for %s: %v", o.name(), err)
			continue
		}
		if o.crtc.fb == nil {
			continue
		}
		err = m.setCrtcMode(o.crtc, o.crtc.desiredMode, o.initialX, o.initialY)
		if err != nil {
			logger.Warningf("initial modeset failed for %s: %v", o.name(), err)
			continue
		}
		any = true
	}
	m.disableUnused()
	m.dumpInfoForDebug()
	logger.Info("initial configuration done, outputs:", m.getOutputsId())
	return any
}

// hotplugStageTwo reacts to a connection change on o. An output that
// already carried a configuration keeps it across replug: the fb is
// resized if needed and the desired mode is set again. An output seen
// for the first time gets a full probe, assignment and fb probe.
func (m *Manager) hotplugStageTwo(o *Output, connected bool) error {
	m.bumpHotplugCounter()

	if !connected {
		logger.Debugf("%s disconnected", o.name())
		return nil
	}

	hasConfig := o.crtc != nil && o.crtc.desiredMode != nil

	m.probeOutputModes(2048, 2048)
	if !hasConfig {
		m.pickCrtcs()
	}
	if o.crtc == nil || o.crtc.desiredMode == nil {
		logger.Debugf("no usable configuration for %s after hotplug", o.name())
		m.disableUnused()
		return nil
	}

	var err error
	if !hasConfig {
		err = m.driver.FbProbe(m, o.crtc, o)
		if err == nil && o.crtc.fb != nil {
			err = m.setCrtcMode(o.crtc, o.crtc.desiredMode, o.initialX, o.initialY)
		}
	} else {
		err = m.driver.FbResize(m, o.crtc)
		if err == nil {
			err = m.setCrtcMode(o.crtc, o.crtc.desiredMode, o.crtc.desiredX, o.crtc.desiredY)
		}
	}
	if err != nil {
		logger.Warningf("failed to bring up %s after hotplug: %v", o.name(), err)
	}
	m.disableUnused()
	return err
}
