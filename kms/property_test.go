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

func Test_standardProperties(t *testing.T) {
	m, _ := newTestManager()

	require.NotNil(t, m.edidProp)
	assert.Equal(t, PropFlagBlob|PropFlagImmutable, m.edidProp.Flags)

	require.NotNil(t, m.dpmsProp)
	assert.Equal(t, PropFlagEnum, m.dpmsProp.Flags)
	assert.Len(t, m.dpmsProp.enums, 4)
	assert.Contains(t, m.dpmsProp.enumNames(), "Standby")

	require.NotNil(t, m.connNumProp)
	assert.Equal(t, []uint64{0, 20}, m.connNumProp.Values)
}

func Test_addEnumDuplicateValueRenames(t *testing.T) {
	m, _ := newTestManager()
	p, err := m.CreateProperty(PropFlagEnum, "scaling", 2)
	require.NoError(t, err)

	require.NoError(t, p.AddEnum(0, 0, "off"))
	require.NoError(t, p.AddEnum(1, 1, "full"))
	require.NoError(t, p.AddEnum(1, 1, "fullscreen"))

	assert.Len(t, p.enums, 2)
	assert.Equal(t, "fullscreen", p.enums[1].name)

	assert.Equal(t, ErrInvalidArgument, p.AddEnum(5, 2, "oob"))
}

func Test_propNameTruncation(t *testing.T) {
	m, _ := newTestManager()
	long := "a-property-name-well-past-the-thirty-two-byte-bound"
	p, err := m.CreateProperty(PropFlagRange, long, 2)
	require.NoError(t, err)
	assert.Len(t, p.Name, propNameLen-1)
}

func Test_attachPropertyCapacity(t *testing.T) {
	m, _ := newTestManager()
	o, err := m.CreateOutput(&fakeOutputDriver{}, OutputTypeDAC)
	require.NoError(t, err)

	// EDID and DPMS are pre-attached, fill the remaining slots
	for i := 0; i < outputMaxProperty-2; i++ {
		p, err := m.CreateProperty(PropFlagRange, "r", 2)
		require.NoError(t, err)
		require.NoError(t, o.attachProperty(p, 0))
	}

	p, err := m.CreateProperty(PropFlagRange, "overflow", 2)
	require.NoError(t, err)
	err = o.attachProperty(p, 0)
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, ErrCapacityExceeded))
}

func Test_validatePropertyValue(t *testing.T) {
	m, _ := newTestManager()

	rng, _ := m.CreateProperty(PropFlagRange, "bright", 2)
	rng.Values[0] = 10
	rng.Values[1] = 100
	assert.NoError(t, validatePropertyValue(rng, 10))
	assert.NoError(t, validatePropertyValue(rng, 100))
	assert.Error(t, validatePropertyValue(rng, 9))
	assert.Error(t, validatePropertyValue(rng, 101))

	assert.NoError(t, validatePropertyValue(m.dpmsProp, uint64(DpmsModeOff)))
	assert.Error(t, validatePropertyValue(m.dpmsProp, 77))

	assert.Error(t, validatePropertyValue(m.connTypeProp, uint64(ConnectorVGA)),
		"immutable rejects every set")
}

func Test_blobLifecycle(t *testing.T) {
	m, _ := newTestManager()

	_, err := m.createPropertyBlob(nil)
	assert.Equal(t, ErrInvalidArgument, err)

	data := []byte{1, 2, 3, 4}
	blob, err := m.createPropertyBlob(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), blob.Length)

	// the blob keeps a private copy
	data[0] = 9
	assert.Equal(t, byte(1), blob.Data[0])

	assert.Equal(t, blob, m.lookupPropertyBlob(blob.ID))
	m.destroyPropertyBlob(blob)
	assert.Nil(t, m.lookupPropertyBlob(blob.ID))
}

func Test_updateEdidReplacesBlob(t *testing.T) {
	m, _ := newTestManager()
	o, err := m.CreateOutput(&fakeOutputDriver{}, OutputTypeTMDS)
	require.NoError(t, err)

	require.NoError(t, m.updateEdidProperty(o, []byte("edid-one")))
	first := o.edidBlob
	require.NotNil(t, first)

	require.NoError(t, m.updateEdidProperty(o, []byte("edid-two")))
	assert.Nil(t, m.lookupPropertyBlob(first.ID), "old blob destroyed")
	require.NotNil(t, o.edidBlob)
	assert.Equal(t, []byte("edid-two"), o.edidBlob.Data)

	val, err := o.getPropertyValue(m.edidProp)
	require.NoError(t, err)
	assert.Equal(t, uint64(o.edidBlob.ID), val)
}
