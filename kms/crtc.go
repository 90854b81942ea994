// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import "fmt"

// Crtc is one hardware scan-out pipeline. It is referenced by outputs
// and holds a non-owning reference to the framebuffer it scans out of.
type Crtc struct {
	m      *Manager
	driver CrtcDriver

	ID      uint32
	Mode    Mode
	X, Y    int32
	Enabled bool

	fb *Framebuffer

	// desired state recorded by the assignment engine, applied on
	// initial config and after hotplug
	desiredMode *Mode
	desiredX    int32
	desiredY    int32
}

func (c *Crtc) String() string {
	return fmt.Sprintf("<Crtc id=%d enabled=%v %d+%d>", c.ID, c.Enabled, c.X, c.Y)
}

// CreateCrtc registers a new CRTC driven by driver. Caller must hold the
// Manager lock (drivers register CRTCs during device setup).
func (m *Manager) CreateCrtc(driver CrtcDriver) (*Crtc, error) {
	c := &Crtc{m: m, driver: driver}
	id, err := m.registry.alloc(c)
	if err != nil {
		logger.Warning("failed to allocate crtc id:", err)
		return nil, err
	}
	c.ID = id
	m.crtcs = append(m.crtcs, c)
	return c, nil
}

// destroyCrtc unregisters c and frees its id.
func (m *Manager) destroyCrtc(c *Crtc) {
	m.registry.release(c.ID)
	for i, c0 := range m.crtcs {
		if c0 == c {
			m.crtcs = append(m.crtcs[:i], m.crtcs[i+1:]...)
			break
		}
	}
}

// crtcInUse reports whether any output currently references c.
func (m *Manager) crtcInUse(c *Crtc) bool {
	for _, o := range m.outputs {
		if o.crtc == c {
			return true
		}
	}
	return false
}

// crtcFromFb finds the first CRTC scanning out of fb, or nil.
func (m *Manager) crtcFromFb(fb *Framebuffer) *Crtc {
	for _, c := range m.crtcs {
		if c.fb == fb {
			return c
		}
	}
	return nil
}

// lookupCrtc resolves id and re-validates it; the registry can recycle
// an id, so the stored id must match the one asked for.
func (m *Manager) lookupCrtc(id uint32) *Crtc {
	c, ok := m.registry.resolve(id).(*Crtc)
	if !ok || c.ID != id {
		return nil
	}
	return c
}
