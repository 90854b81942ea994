// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

// probeOutputModes rebuilds the validated mode catalog of every output.
// Used at startup and after major configuration changes.
func (m *Manager) probeOutputModes(maxWidth, maxHeight int32) {
	for _, o := range m.outputs {
		m.probeSingleOutputModes(o, maxWidth, maxHeight)
	}
}

// probeSingleOutputModes runs the full probe pipeline on one output:
// detect, enumerate, size-prune, driver validation, prune, fallback
// synthesis, sort, derived-field recompute. A disconnected output keeps
// its previous catalog untouched.
func (m *Manager) probeSingleOutputModes(o *Output, maxWidth, maxHeight int32) {
	for _, mode := range o.modes {
		mode.Status = ModeUnverified
	}

	o.Status = o.driver.Detect(o)
	if o.Status == ConnectionDisconnected {
		logger.Debugf("%s is disconnected", o.name())
		return
	}

	count := o.driver.GetModes(o)
	if count > 0 {
		o.updateModeList()
	}

	if maxWidth > 0 && maxHeight > 0 {
		validateModeSize(o.modes, maxWidth, maxHeight)
	}

	for _, mode := range o.modes {
		if mode.Status == ModeOK {
			mode.Status = o.driver.ModeValid(o, mode)
		}
	}

	o.pruneInvalidModes()

	if len(o.modes) == 0 {
		// No valid modes at all; synthesize the standard
		// 640x480@60Hz and carry on instead of bailing.
		logger.Debugf("no valid modes on %s, adding standard 640x480@60Hz", o.name())
		std, err := m.duplicateMode(&stdMode)
		if err != nil {
			logger.Warning(err)
			return
		}
		std.Status = ModeOK
		o.modes = append(o.modes, std)
	}

	sortModes(o.modes)

	for _, mode := range o.modes {
		mode.VRefresh = mode.calcVRefresh()
		mode.setCrtcInfo(crtcInterlaceHalveV)
	}
	logger.Debugf("probed %d modes for %s", len(o.modes), o.name())
}

// updateModeList merges the probed list into the validated catalog,
// deduplicating by structural equality; a duplicate only contributes its
// type bits to the mode already present.
func (o *Output) updateModeList() {
	for _, pmode := range o.probedModes {
		existing := findFirstMode(o.modes, func(mode *Mode) bool {
			return mode.equal(pmode)
		})
		if existing != nil {
			existing.Type |= pmode.Type
			existing.Status = ModeOK
			o.m.destroyMode(pmode)
			continue
		}
		pmode.Status = ModeOK
		o.modes = append(o.modes, pmode)
	}
	o.probedModes = nil
}

// validateModeSize rejects modes exceeding the device limits.
func validateModeSize(modes []*Mode, maxWidth, maxHeight int32) {
	for _, mode := range modes {
		if mode.HDisplay > maxWidth {
			mode.Status = ModeVirtualX
		} else if mode.VDisplay > maxHeight {
			mode.Status = ModeVirtualY
		}
	}
}

// pruneInvalidModes drops every mode not in OK status from the catalog.
func (o *Output) pruneInvalidModes() {
	kept := o.modes[:0]
	for _, mode := range o.modes {
		if mode.Status == ModeOK {
			kept = append(kept, mode)
		} else {
			logger.Debugf("pruning mode %s (%s) status %d", mode.Name, o.name(), mode.Status)
			o.m.destroyMode(mode)
		}
	}
	o.modes = kept
}
