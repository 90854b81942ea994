// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_pickCrtcsBasic(t *testing.T) {
	m, _ := newTestManager()
	crtc1, o1, _ := addTestPipeline(m, nil, testMode800, testMode1024)
	crtc2, o2, _ := addTestPipeline(m, nil, testMode800, testMode1024)
	o2.PossibleCrtcs = 1<<0 | 1<<1

	m.probeOutputModes(2048, 2048)
	m.pickCrtcs()

	assert.Equal(t, crtc1, o1.crtc)
	assert.Equal(t, crtc2, o2.crtc)
	// preferred mode recorded as desired
	require.NotNil(t, crtc1.desiredMode)
	assert.Equal(t, "1024x768", crtc1.desiredMode.Name)
	assert.Equal(t, "1024x768", crtc2.desiredMode.Name)
	assert.Equal(t, int32(0), o1.initialX)
	assert.Equal(t, int32(0), o1.initialY)
}

func Test_pickCrtcsDisconnectedUnbound(t *testing.T) {
	m, _ := newTestManager()
	_, o, od := addTestPipeline(m, nil, testMode800)
	od.connected = false

	m.probeOutputModes(2048, 2048)
	m.pickCrtcs()

	assert.Nil(t, o.crtc)
}

func Test_pickCrtcsMaskRespected(t *testing.T) {
	m, _ := newTestManager()
	crtc1, o1, _ := addTestPipeline(m, nil, testMode800)
	crtc2, o2, _ := addTestPipeline(m, nil, testMode800)
	// both outputs may only use the second CRTC
	o1.PossibleCrtcs = 1 << 1
	o2.PossibleCrtcs = 1 << 1

	m.probeOutputModes(2048, 2048)
	m.pickCrtcs()

	assert.Equal(t, crtc2, o1.crtc)
	// no clone masks, so the second output stays unbound
	assert.Nil(t, o2.crtc)
	assert.False(t, m.crtcInUse(crtc1))
}

func Test_pickCrtcsDeterministic(t *testing.T) {
	m, _ := newTestManager()
	_, o1, _ := addTestPipeline(m, nil, testMode800, testMode1024)
	_, o2, _ := addTestPipeline(m, nil, testMode800)
	o2.PossibleCrtcs = 1<<0 | 1<<1

	m.probeOutputModes(2048, 2048)
	m.pickCrtcs()
	first := []*Crtc{o1.crtc, o2.crtc}
	firstModes := []*Mode{o1.crtc.desiredMode, o2.crtc.desiredMode}

	for i := 0; i < 5; i++ {
		m.pickCrtcs()
		assert.Equal(t, first, []*Crtc{o1.crtc, o2.crtc})
		assert.Equal(t, firstModes, []*Mode{o1.crtc.desiredMode, o2.crtc.desiredMode})
	}
}

func Test_pickCrtcsClone(t *testing.T) {
	m, _ := newTestManager()
	crtc, o1, _ := addTestPipeline(m, nil, testMode800, testMode1024)
	od2 := &fakeOutputDriver{connected: true, templates: []Mode{testMode800}}
	o2, err := m.CreateOutput(od2, OutputTypeLVDS)
	require.NoError(t, err)

	// a single CRTC both outputs want, with intersecting clone masks
	o1.PossibleCrtcs = 1 << 0
	o2.PossibleCrtcs = 1 << 0
	o1.PossibleClones = 1 << 0
	o2.PossibleClones = 1 << 0

	m.probeOutputModes(2048, 2048)
	m.pickCrtcs()

	assert.Equal(t, crtc, o1.crtc)
	assert.Equal(t, crtc, o2.crtc)
	// the shared 800x600 becomes the desired mode for the clone pair
	require.NotNil(t, crtc.desiredMode)
	assert.True(t, crtc.desiredMode.equal(&testMode800))
}

func Test_pickCrtcsNoCloneWithoutSharedMode(t *testing.T) {
	m, _ := newTestManager()
	crtc, o1, _ := addTestPipeline(m, nil, testMode1024)
	od2 := &fakeOutputDriver{connected: true, templates: []Mode{testMode800}}
	o2, err := m.CreateOutput(od2, OutputTypeLVDS)
	require.NoError(t, err)

	o1.PossibleCrtcs = 1 << 0
	o2.PossibleCrtcs = 1 << 0
	o1.PossibleClones = 1 << 0
	o2.PossibleClones = 1 << 0

	m.probeOutputModes(2048, 2048)
	m.pickCrtcs()

	assert.Equal(t, crtc, o1.crtc)
	assert.Nil(t, o2.crtc, "no structurally shared mode, no clone")
}

func Test_enabledMatchesReferencedAfterAssignAndCommit(t *testing.T) {
	m, _ := newTestManager()
	addTestPipeline(m, nil, testMode800, testMode1024)
	addTestPipeline(m, nil, testMode800)

	m.InitialConfig()

	for _, c := range m.crtcs {
		assert.Equal(t, m.crtcInUse(c), c.Enabled,
			"crtc %d enabled flag out of sync", c.ID)
	}
}
