// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modeNames(modes []*Mode) []string {
	var names []string
	for _, mode := range modes {
		names = append(names, mode.Name)
	}
	return names
}

func Test_probeBasic(t *testing.T) {
	m, _ := newTestManager()
	_, o, _ := addTestPipeline(m, nil, testMode800, testMode1024)

	m.probeSingleOutputModes(o, 2048, 2048)

	require.Len(t, o.modes, 2)
	assert.Equal(t, ConnectionConnected, o.Status)
	// preferred 1024x768 sorts first
	assert.Equal(t, []string{"1024x768", "800x600"}, modeNames(o.modes))
	assert.Empty(t, o.probedModes)
	for _, mode := range o.modes {
		assert.Equal(t, ModeOK, mode.Status)
		assert.InDelta(t, 60.0, mode.VRefresh, 0.1)
		assert.Equal(t, mode.HDisplay, mode.CrtcHDisplay)
	}
}

func Test_probeIdempotent(t *testing.T) {
	m, _ := newTestManager()
	_, o, _ := addTestPipeline(m, nil, testMode800, testMode1024)

	m.probeSingleOutputModes(o, 2048, 2048)
	first := make([]Mode, 0, len(o.modes))
	for _, mode := range o.modes {
		first = append(first, *mode)
	}

	m.probeSingleOutputModes(o, 2048, 2048)
	require.Len(t, o.modes, len(first))
	for i, mode := range o.modes {
		assert.True(t, mode.equal(&first[i]), "mode %d changed across probes", i)
		assert.Equal(t, first[i].Name, mode.Name)
	}
}

func Test_probeDisconnectedKeepsCatalog(t *testing.T) {
	m, _ := newTestManager()
	_, o, od := addTestPipeline(m, nil, testMode800)

	m.probeSingleOutputModes(o, 2048, 2048)
	require.Len(t, o.modes, 1)

	od.connected = false
	m.probeSingleOutputModes(o, 2048, 2048)
	assert.Equal(t, ConnectionDisconnected, o.Status)
	assert.Len(t, o.modes, 1, "disconnect must not clear the catalog")
}

func Test_probeSizePrune(t *testing.T) {
	m, _ := newTestManager()
	_, o, _ := addTestPipeline(m, nil, testMode800, testMode1024)

	m.probeSingleOutputModes(o, 800, 768)
	require.Len(t, o.modes, 1)
	assert.Equal(t, "800x600", o.modes[0].Name)
}

func Test_probeEmptyCatalogFallback(t *testing.T) {
	m, _ := newTestManager()
	_, o, _ := addTestPipeline(m, nil) // no native modes at all

	m.probeSingleOutputModes(o, 2048, 2048)

	require.Len(t, o.modes, 1)
	fallback := o.modes[0]
	assert.True(t, fallback.equal(&stdMode))
	assert.Equal(t, "640x480", fallback.Name)
	assert.InDelta(t, 60.0, fallback.VRefresh, 0.1)

	// still exactly one after re-probing
	m.probeSingleOutputModes(o, 2048, 2048)
	assert.Len(t, o.modes, 1)
}

func Test_probeMergesDuplicates(t *testing.T) {
	dup := testMode800
	dup.Type = ModeTypeBuiltin
	dup.Name = "800x600-dup"

	m, _ := newTestManager()
	_, o, _ := addTestPipeline(m, nil, testMode800, dup)

	m.probeSingleOutputModes(o, 2048, 2048)

	require.Len(t, o.modes, 1)
	assert.Equal(t, "800x600", o.modes[0].Name)
	// the duplicate only contributes its type bits
	assert.Equal(t, testMode800.Type|ModeTypeBuiltin, o.modes[0].Type)
}

func Test_userModesSurviveProbe(t *testing.T) {
	m, _ := newTestManager()
	_, o, _ := addTestPipeline(m, nil, testMode1024)

	user, err := m.newMode()
	require.NoError(t, err)
	*user = testMode800
	user.Type = ModeTypeUserDef
	o.userModes = append(o.userModes, user)

	m.probeSingleOutputModes(o, 2048, 2048)
	m.probeSingleOutputModes(o, 2048, 2048)

	require.Len(t, o.userModes, 1)
	assert.Equal(t, user, o.userModes[0])
}
