// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import "fmt"

// Framebuffer binds a backing buffer object to the dimensions and pixel
// layout used for scan-out. It never touches pixel data.
type Framebuffer struct {
	m *Manager

	ID           uint32
	Width        uint32
	Height       uint32
	Pitch        uint32
	BitsPerPixel uint32
	Depth        uint32

	bo *BufferObject
}

func (fb *Framebuffer) String() string {
	return fmt.Sprintf("<Framebuffer id=%d %dx%d bpp=%d>",
		fb.ID, fb.Width, fb.Height, fb.BitsPerPixel)
}

// createFramebuffer registers an empty framebuffer record; the caller
// fills in the geometry and buffer reference.
func (m *Manager) createFramebuffer() (*Framebuffer, error) {
	fb := &Framebuffer{m: m}
	id, err := m.registry.alloc(fb)
	if err != nil {
		logger.Warning("failed to allocate framebuffer id:", err)
		return nil, err
	}
	fb.ID = id
	m.fbs = append(m.fbs, fb)
	return fb, nil
}

// destroyFramebuffer removes fb. Every CRTC still scanning out of fb has
// its reference nulled first so no dangling reference survives the free.
func (m *Manager) destroyFramebuffer(fb *Framebuffer) {
	for _, c := range m.crtcs {
		if c.fb == fb {
			c.fb = nil
		}
	}

	m.registry.release(fb.ID)
	for i, fb0 := range m.fbs {
		if fb0 == fb {
			m.fbs = append(m.fbs[:i], m.fbs[i+1:]...)
			break
		}
	}
}

func (m *Manager) lookupFramebuffer(id uint32) *Framebuffer {
	fb, ok := m.registry.resolve(id).(*Framebuffer)
	if !ok || fb.ID != id {
		return nil
	}
	return fb
}
