// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

// DPMS power states.
const (
	DpmsModeOn int32 = iota
	DpmsModeStandby
	DpmsModeSuspend
	DpmsModeOff
)

var dpmsEnumList = []struct {
	value int32
	name  string
}{
	{DpmsModeOn, "On"},
	{DpmsModeStandby, "Standby"},
	{DpmsModeSuspend, "Suspend"},
	{DpmsModeOff, "Off"},
}

func getDpmsName(val int32) string {
	for _, e := range dpmsEnumList {
		if e.value == val {
			return e.name
		}
	}
	return "unknown"
}

// ConnectionStatus is the detect result for an output.
type ConnectionStatus int32

const (
	ConnectionConnected ConnectionStatus = iota
	ConnectionDisconnected
	ConnectionUnknown
)

func getConnectionStatusName(status ConnectionStatus) string {
	switch status {
	case ConnectionConnected:
		return "connected"
	case ConnectionDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Output transmitter types.
const (
	OutputTypeNone int32 = iota
	OutputTypeDAC
	OutputTypeTMDS
	OutputTypeLVDS
	OutputTypeTVDAC
)

var outputTypeNames = []string{"None", "DAC", "TMDS", "LVDS", "TV"}

// Connector types, as exposed through the immutable Connector Type property.
const (
	ConnectorUnknown int64 = iota
	ConnectorVGA
	ConnectorDVII
	ConnectorDVID
	ConnectorDVIA
	ConnectorComposite
	ConnectorSVideo
	ConnectorLVDS
	ConnectorComponent
	Connector9PinDIN
	ConnectorDisplayPort
	ConnectorHDMIA
	ConnectorHDMIB
)

var connectorEnumList = []struct {
	value int64
	name  string
}{
	{ConnectorUnknown, "Unknown"},
	{ConnectorVGA, "VGA"},
	{ConnectorDVII, "DVI-I"},
	{ConnectorDVID, "DVI-D"},
	{ConnectorDVIA, "DVI-A"},
	{ConnectorComposite, "Composite"},
	{ConnectorSVideo, "SVIDEO"},
	{ConnectorLVDS, "LVDS"},
	{ConnectorComponent, "Component"},
	{Connector9PinDIN, "9-pin DIN"},
	{ConnectorDisplayPort, "DisplayPort"},
	{ConnectorHDMIA, "HDMI Type A"},
	{ConnectorHDMIB, "HDMI Type B"},
}

// OutputDriver is the per-output hardware callback table. All calls are
// made synchronously under the Manager lock and must not call back into
// the Manager.
type OutputDriver interface {
	// Detect reports whether a sink is attached to the output.
	Detect(o *Output) ConnectionStatus
	// GetModes enumerates the native modes into o's probed list via
	// o.addProbedMode and returns how many were added.
	GetModes(o *Output) int
	// ModeValid judges a single probed mode.
	ModeValid(o *Output, mode *Mode) ModeStatus
	// ModeFixup may adjust the working copy of the mode; returning
	// false rejects the mode entirely.
	ModeFixup(o *Output, mode *Mode, adjusted *Mode) bool
	// Prepare blanks the output ahead of a mode switch.
	Prepare(o *Output)
	// ModeSet programs the output for the adjusted mode.
	ModeSet(o *Output, mode *Mode, adjusted *Mode)
	// Commit re-enables signal output after a mode switch.
	Commit(o *Output)
	// Dpms sets the output power state.
	Dpms(o *Output, mode int32)
}

// CrtcDriver is the per-CRTC hardware callback table.
type CrtcDriver interface {
	Dpms(c *Crtc, mode int32)
	ModeFixup(c *Crtc, mode *Mode, adjusted *Mode) bool
	Prepare(c *Crtc)
	ModeSet(c *Crtc, mode *Mode, adjusted *Mode, x, y int32)
	Commit(c *Crtc)
}

// Optional CRTC capabilities; asserted at the call sites that need them.
type crtcBaseSetter interface {
	// ModeSetBase moves the scan-out origin without re-timing.
	ModeSetBase(c *Crtc, x, y int32)
}

type crtcCursor interface {
	CursorSet(c *Crtc, bo *BufferObject, width, height uint32) error
	CursorMove(c *Crtc, x, y int32) error
}

// Optional output capability for applying property values.
type outputPropertySetter interface {
	SetProperty(o *Output, prop *Property, value uint64) error
}

// Optional output capability for simulated or externally reported
// connection changes; drivers that re-detect in hardware skip it.
type outputHotplugSetter interface {
	SetConnected(o *Output, connected bool)
}

// DeviceDriver covers the whole-device callbacks: creating, resizing and
// reclaiming the framebuffers the driver owns.
type DeviceDriver interface {
	FbProbe(m *Manager, crtc *Crtc, o *Output) error
	FbResize(m *Manager, crtc *Crtc) error
	FbRemove(m *Manager, fb *Framebuffer)
}
