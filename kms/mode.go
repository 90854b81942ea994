// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import (
	"fmt"
	"sort"
)

const modeNameLen = 32

// Mode flags, bit-compatible with the kernel mode flags.
const (
	ModeFlagPHSync    uint32 = 1 << 0
	ModeFlagNHSync    uint32 = 1 << 1
	ModeFlagPVSync    uint32 = 1 << 2
	ModeFlagNVSync    uint32 = 1 << 3
	ModeFlagInterlace uint32 = 1 << 4
	ModeFlagDblScan   uint32 = 1 << 5
	ModeFlagCSync     uint32 = 1 << 6
)

// Mode type bits.
const (
	ModeTypeBuiltin   uint32 = 1 << 0
	ModeTypePreferred uint32 = 1 << 3
	ModeTypeDefault   uint32 = 1 << 4
	ModeTypeUserDef   uint32 = 1 << 5
	ModeTypeDriver    uint32 = 1 << 6
)

// ModeStatus is the prober's verdict on a single mode.
type ModeStatus int32

const (
	ModeOK ModeStatus = iota
	ModeUnverified
	ModeBad
	ModeVirtualX // width exceeds the device limit
	ModeVirtualY // height exceeds the device limit
)

// adjust flags for setCrtcInfo
const crtcInterlaceHalveV = 1 << 0

// Mode is a full timing descriptor for one resolution/refresh pair.
// Two modes are considered the same mode iff all timing fields and the
// flags match; id, name, type and status never take part in comparison.
type Mode struct {
	ID     uint32
	Name   string
	Type   uint32
	Status ModeStatus

	Clock      int32 // in kHz
	HDisplay   int32
	HSyncStart int32
	HSyncEnd   int32
	HTotal     int32
	HSkew      int32
	VDisplay   int32
	VSyncStart int32
	VSyncEnd   int32
	VTotal     int32
	VScan      int32
	Flags      uint32

	VRefresh float64

	// scan-out timing as programmed into the CRTC, derived by
	// setCrtcInfo from the nominal fields above
	CrtcHDisplay   int32
	CrtcHSyncStart int32
	CrtcHSyncEnd   int32
	CrtcHTotal     int32
	CrtcVDisplay   int32
	CrtcVSyncStart int32
	CrtcVSyncEnd   int32
	CrtcVTotal     int32
}

// stdMode is the builtin 640x480@60Hz fallback inserted when probing a
// connected output yields no usable mode at all.
var stdMode = Mode{
	Name:       "640x480",
	Type:       ModeTypeDefault,
	Clock:      25200,
	HDisplay:   640,
	HSyncStart: 656,
	HSyncEnd:   752,
	HTotal:     800,
	VDisplay:   480,
	VSyncStart: 490,
	VSyncEnd:   492,
	VTotal:     525,
	Flags:      ModeFlagNHSync | ModeFlagNVSync,
}

func (m *Mode) String() string {
	return fmt.Sprintf("<Mode id=%d name=%s %dx%d %.2fHz>",
		m.ID, m.Name, m.HDisplay, m.VDisplay, m.VRefresh)
}

// equal reports structural equality over the timing fields and flags.
func (m *Mode) equal(other *Mode) bool {
	return m.Clock == other.Clock &&
		m.HDisplay == other.HDisplay &&
		m.HSyncStart == other.HSyncStart &&
		m.HSyncEnd == other.HSyncEnd &&
		m.HTotal == other.HTotal &&
		m.HSkew == other.HSkew &&
		m.VDisplay == other.VDisplay &&
		m.VSyncStart == other.VSyncStart &&
		m.VSyncEnd == other.VSyncEnd &&
		m.VTotal == other.VTotal &&
		m.VScan == other.VScan &&
		m.Flags == other.Flags
}

// calcVRefresh derives the vertical refresh rate from the timing fields.
// Doublescan doubles the number of lines; interlace splits the frame into
// two fields, the field rate is what monitors typically report.
func (m *Mode) calcVRefresh() float64 {
	vTotal := float64(m.VTotal)
	if m.Flags&ModeFlagDblScan != 0 {
		vTotal *= 2
	}
	if m.Flags&ModeFlagInterlace != 0 {
		vTotal /= 2
	}
	if m.VScan > 1 {
		vTotal *= float64(m.VScan)
	}

	if m.HTotal == 0 || vTotal == 0 {
		return 0
	}
	return float64(m.Clock) * 1000 / (float64(m.HTotal) * vTotal)
}

// setCrtcInfo fills in the crtc-prefixed scan-out fields. With
// crtcInterlaceHalveV, interlaced modes get their vertical sync fields
// halved because the CRTC is programmed per field, not per frame.
func (m *Mode) setCrtcInfo(adjustFlags int) {
	m.CrtcHDisplay = m.HDisplay
	m.CrtcHSyncStart = m.HSyncStart
	m.CrtcHSyncEnd = m.HSyncEnd
	m.CrtcHTotal = m.HTotal
	m.CrtcVDisplay = m.VDisplay
	m.CrtcVSyncStart = m.VSyncStart
	m.CrtcVSyncEnd = m.VSyncEnd
	m.CrtcVTotal = m.VTotal

	if m.Flags&ModeFlagInterlace != 0 && adjustFlags&crtcInterlaceHalveV != 0 {
		m.CrtcVDisplay /= 2
		m.CrtcVSyncStart /= 2
		m.CrtcVSyncEnd /= 2
		m.CrtcVTotal /= 2
		m.CrtcVTotal |= 1
	}

	if m.Flags&ModeFlagDblScan != 0 {
		m.CrtcVDisplay *= 2
		m.CrtcVSyncStart *= 2
		m.CrtcVSyncEnd *= 2
		m.CrtcVTotal *= 2
	}

	if m.VScan > 1 {
		m.CrtcVDisplay *= m.VScan
		m.CrtcVSyncStart *= m.VScan
		m.CrtcVSyncEnd *= m.VScan
		m.CrtcVTotal *= m.VScan
	}
}

// sortModes orders a catalog by desirability: preferred modes first,
// then larger resolutions, then higher refresh rates.
func sortModes(modes []*Mode) {
	sort.SliceStable(modes, func(i, j int) bool {
		mi, mj := modes[i], modes[j]
		pi := mi.Type & ModeTypePreferred
		pj := mj.Type & ModeTypePreferred
		if pi != pj {
			return pi != 0
		}
		areaI := int64(mi.HDisplay) * int64(mi.VDisplay)
		areaJ := int64(mj.HDisplay) * int64(mj.VDisplay)
		if areaI != areaJ {
			return areaI > areaJ
		}
		return mi.calcVRefresh() > mj.calcVRefresh()
	})
}

func findFirstMode(modes []*Mode, fn func(mode *Mode) bool) *Mode {
	for _, mode := range modes {
		if fn(mode) {
			return mode
		}
	}
	return nil
}

// ModeInfo is the public record of a Mode, as carried over the bus.
type ModeInfo struct {
	Clock      int32
	HDisplay   int32
	HSyncStart int32
	HSyncEnd   int32
	HTotal     int32
	HSkew      int32
	VDisplay   int32
	VSyncStart int32
	VSyncEnd   int32
	VTotal     int32
	VScan      int32
	VRefresh   float64
	Flags      uint32
	Type       uint32
	Name       string
}

func truncateModeName(name string) string {
	if len(name) >= modeNameLen {
		return name[:modeNameLen-1]
	}
	return name
}

func toModeInfo(in *Mode) ModeInfo {
	return ModeInfo{
		Clock:      in.Clock,
		HDisplay:   in.HDisplay,
		HSyncStart: in.HSyncStart,
		HSyncEnd:   in.HSyncEnd,
		HTotal:     in.HTotal,
		HSkew:      in.HSkew,
		VDisplay:   in.VDisplay,
		VSyncStart: in.VSyncStart,
		VSyncEnd:   in.VSyncEnd,
		VTotal:     in.VTotal,
		VScan:      in.VScan,
		VRefresh:   in.VRefresh,
		Flags:      in.Flags,
		Type:       in.Type,
		Name:       truncateModeName(in.Name),
	}
}

func fromModeInfo(out *Mode, in ModeInfo) {
	out.Clock = in.Clock
	out.HDisplay = in.HDisplay
	out.HSyncStart = in.HSyncStart
	out.HSyncEnd = in.HSyncEnd
	out.HTotal = in.HTotal
	out.HSkew = in.HSkew
	out.VDisplay = in.VDisplay
	out.VSyncStart = in.VSyncStart
	out.VSyncEnd = in.VSyncEnd
	out.VTotal = in.VTotal
	out.VScan = in.VScan
	out.VRefresh = in.VRefresh
	out.Flags = in.Flags
	out.Type = in.Type
	out.Name = truncateModeName(in.Name)
}
