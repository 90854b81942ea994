// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

// Framebuffers created over the bus are owned by the calling connection
// and reclaimed when that connection drops off the bus, mirroring how a
// crashed client must not leak scan-out memory.

func (m *Manager) addSessionFb(sender string, fb *Framebuffer) {
	m.sessions[sender] = append(m.sessions[sender], fb)
}

func (m *Manager) removeSessionFb(sender string, fb *Framebuffer) {
	fbs := m.sessions[sender]
	for i, fb0 := range fbs {
		if fb0 == fb {
			m.sessions[sender] = append(fbs[:i], fbs[i+1:]...)
			break
		}
	}
	if len(m.sessions[sender]) == 0 {
		delete(m.sessions, sender)
	}
}

// releaseSession destroys every framebuffer the named connection still
// owns. Buffers the device driver registered as kernel-owned are handed
// back to it first.
func (m *Manager) releaseSession(sender string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fbs := m.sessions[sender]
	if len(fbs) == 0 {
		return
	}
	logger.Debugf("session %s gone, reclaiming %d framebuffers", sender, len(fbs))
	delete(m.sessions, sender)

	for _, fb := range fbs {
		if m.lookupFramebuffer(fb.ID) == nil {
			continue
		}
		if fb.bo != nil && fb.bo.Type == BufferTypeKernel {
			m.driver.FbRemove(m, fb)
		}
		m.destroyFramebuffer(fb)
	}
	m.disableUnused()
}
