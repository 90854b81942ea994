// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func Test_destroyFramebufferSweepsCrtcs(t *testing.T) {
	m, _ := newTestManager()
	c1, _ := m.CreateCrtc(&fakeCrtcDriver{})
	c2, _ := m.CreateCrtc(&fakeCrtcDriver{})
	c3, _ := m.CreateCrtc(&fakeCrtcDriver{})

	fb, err := m.createFramebuffer()
	require.NoError(t, err)
	other, err := m.createFramebuffer()
	require.NoError(t, err)

	c1.fb = fb
	c2.fb = fb
	c3.fb = other

	m.destroyFramebuffer(fb)

	assert.Nil(t, c1.fb)
	assert.Nil(t, c2.fb)
	assert.Equal(t, other, c3.fb, "unrelated reference untouched")
	assert.Nil(t, m.lookupFramebuffer(fb.ID))
}

func Test_crtcFromFb(t *testing.T) {
	m, _ := newTestManager()
	c, _ := m.CreateCrtc(&fakeCrtcDriver{})
	fb, _ := m.createFramebuffer()

	assert.Nil(t, m.crtcFromFb(fb))
	c.fb = fb
	assert.Equal(t, c, m.crtcFromFb(fb))
}

func Test_bufferTable(t *testing.T) {
	tbl := NewBufferTable()
	bo := &BufferObject{Handle: 7, Type: BufferTypeUser, Size: 4096}
	tbl.Register(bo)

	got, err := tbl.Lookup(7)
	require.NoError(t, err)
	assert.Equal(t, bo, got)

	_, err = tbl.Lookup(8)
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, ErrNotFound))

	tbl.Unregister(7)
	_, err = tbl.Lookup(7)
	assert.Error(t, err)
}

func Test_releaseSessionDestroysOwnedFbs(t *testing.T) {
	m, dev := newTestManager()

	userBo := &BufferObject{Handle: 1, Type: BufferTypeUser, Size: 1 << 20}
	m.buffers.Register(userBo)
	fb, err := m.createFramebuffer()
	require.NoError(t, err)
	fb.bo = userBo
	m.addSessionFb(":1.42", fb)

	kernelBo := &BufferObject{Handle: 2, Type: BufferTypeKernel, Size: 1 << 20}
	m.buffers.Register(kernelBo)
	kfb, err := m.createFramebuffer()
	require.NoError(t, err)
	kfb.bo = kernelBo
	m.addSessionFb(":1.42", kfb)

	m.releaseSession(":1.42")

	assert.Nil(t, m.lookupFramebuffer(fb.ID))
	assert.Nil(t, m.lookupFramebuffer(kfb.ID))
	assert.Equal(t, []*Framebuffer{kfb}, dev.removed,
		"only the driver buffer goes back through FbRemove")
	assert.Empty(t, m.sessions)

	// releasing again is a no-op
	m.releaseSession(":1.42")
}

func Test_cleanupTeardownOrder(t *testing.T) {
	m, dev := newTestManager()
	crtc, o, _ := addTestPipeline(m, nil, testMode1024)
	m.InitialConfig()
	require.NotNil(t, crtc.fb)
	kernelFb := crtc.fb

	m.Cleanup()

	assert.Empty(t, m.outputs)
	assert.Empty(t, m.crtcs)
	assert.Empty(t, m.fbs)
	assert.Empty(t, m.props)
	assert.Empty(t, m.blobs)
	assert.Equal(t, 0, m.registry.count())
	assert.Contains(t, dev.removed, kernelFb)
	assert.Nil(t, m.lookupOutput(o.ID))
}
