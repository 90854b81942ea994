// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

// pickCrtcs recomputes the output→CRTC assignment from scratch. Every
// output is unbound first, then each connected output with a non-empty
// catalog is walked against the CRTC list in index order and bound to
// the first CRTC its PossibleCrtcs mask admits. A CRTC another output
// already took is skipped unless both outputs can clone each other and
// share a structurally equal mode, in which case the shared mode becomes
// the desired one and the CRTC is reused.
func (m *Manager) pickCrtcs() {
	for _, o := range m.outputs {
		o.crtc = nil
		if o.Status != ConnectionConnected {
			continue
		}
		if len(o.modes) == 0 {
			logger.Debugf("%s has no modes, skipping assignment", o.name())
			continue
		}

		desMode := findFirstMode(o.modes, func(mode *Mode) bool {
			return mode.Type&ModeTypePreferred != 0
		})
		if desMode == nil {
			desMode = o.modes[0]
		}

		for c, crtc := range m.crtcs {
			if o.PossibleCrtcs&(1<<uint(c)) == 0 {
				continue
			}

			assigned := false
			for _, other := range m.outputs {
				if other == o {
					continue
				}
				if other.crtc == crtc {
					assigned = true
					break
				}
			}

			if assigned {
				clone := m.findCloneMode(o, crtc)
				if clone == nil {
					continue
				}
				desMode = clone
			}

			o.crtc = crtc
			crtc.desiredMode = desMode
			o.initialX = 0
			o.initialY = 0
			logger.Debugf("desired mode %s set on crtc %d for %s",
				desMode.Name, crtc.ID, o.name())
			break
		}
	}
}

// findCloneMode looks for a mode of o structurally shared with another
// output that is already driven by crtc and whose clone mask overlaps
// o's. Non-nil means crtc may be reused for o at the returned mode.
func (m *Manager) findCloneMode(o *Output, crtc *Crtc) *Mode {
	for _, other := range m.outputs {
		if other == o || other.crtc != crtc {
			continue
		}
		if o.PossibleClones&other.PossibleClones == 0 {
			continue
		}
		for _, mode := range o.modes {
			for _, otherMode := range other.modes {
				if mode.equal(otherMode) {
					return mode
				}
			}
		}
	}
	return nil
}
