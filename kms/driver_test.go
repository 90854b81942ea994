// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import "fmt"

// scriptable fake drivers shared by the package tests; every hardware
// callback records itself into the shared call log so tests can assert
// on the exact sequence.

type fakeOutputDriver struct {
	connected   bool
	templates   []Mode
	rejectFixup bool
	calls       *[]string
}

func (d *fakeOutputDriver) log(format string, args ...interface{}) {
	if d.calls != nil {
		*d.calls = append(*d.calls, fmt.Sprintf(format, args...))
	}
}

func (d *fakeOutputDriver) Detect(o *Output) ConnectionStatus {
	if d.connected {
		return ConnectionConnected
	}
	return ConnectionDisconnected
}

func (d *fakeOutputDriver) GetModes(o *Output) int {
	count := 0
	for i := range d.templates {
		mode, err := o.m.duplicateMode(&d.templates[i])
		if err != nil {
			break
		}
		o.addProbedMode(mode)
		count++
	}
	return count
}

func (d *fakeOutputDriver) ModeValid(o *Output, mode *Mode) ModeStatus {
	return ModeOK
}

func (d *fakeOutputDriver) ModeFixup(o *Output, mode *Mode, adjusted *Mode) bool {
	d.log("output%d:fixup", o.ID)
	return !d.rejectFixup
}

func (d *fakeOutputDriver) Prepare(o *Output) {
	d.log("output%d:prepare", o.ID)
}

func (d *fakeOutputDriver) ModeSet(o *Output, mode *Mode, adjusted *Mode) {
	d.log("output%d:modeset:%s", o.ID, adjusted.Name)
}

func (d *fakeOutputDriver) Commit(o *Output) {
	d.log("output%d:commit", o.ID)
}

func (d *fakeOutputDriver) Dpms(o *Output, mode int32) {
	d.log("output%d:dpms:%s", o.ID, getDpmsName(mode))
}

type fakeCrtcDriver struct {
	rejectFixup bool
	calls       *[]string
}

func (d *fakeCrtcDriver) log(format string, args ...interface{}) {
	if d.calls != nil {
		*d.calls = append(*d.calls, fmt.Sprintf(format, args...))
	}
}

func (d *fakeCrtcDriver) Dpms(c *Crtc, mode int32) {
	d.log("crtc%d:dpms:%s", c.ID, getDpmsName(mode))
}

func (d *fakeCrtcDriver) ModeFixup(c *Crtc, mode *Mode, adjusted *Mode) bool {
	d.log("crtc%d:fixup", c.ID)
	return !d.rejectFixup
}

func (d *fakeCrtcDriver) Prepare(c *Crtc) {
	d.log("crtc%d:prepare", c.ID)
}

func (d *fakeCrtcDriver) ModeSet(c *Crtc, mode *Mode, adjusted *Mode, x, y int32) {
	d.log("crtc%d:modeset:%s", c.ID, adjusted.Name)
}

func (d *fakeCrtcDriver) Commit(c *Crtc) {
	d.log("crtc%d:commit", c.ID)
}

// fakeBaseCrtcDriver additionally supports moving the scan-out origin.
type fakeBaseCrtcDriver struct {
	fakeCrtcDriver
}

func (d *fakeBaseCrtcDriver) ModeSetBase(c *Crtc, x, y int32) {
	d.log("crtc%d:base:%d+%d", c.ID, x, y)
}

type fakeDeviceDriver struct {
	buffers    *BufferTable
	nextHandle uint64
	removed    []*Framebuffer
}

func (d *fakeDeviceDriver) FbProbe(m *Manager, crtc *Crtc, o *Output) error {
	if crtc.fb != nil {
		return nil
	}
	d.nextHandle++
	bo := &BufferObject{Handle: d.nextHandle, Type: BufferTypeKernel, Size: 1 << 24}
	d.buffers.Register(bo)
	fb, err := m.createFramebuffer()
	if err != nil {
		return err
	}
	fb.Width = uint32(crtc.desiredMode.HDisplay)
	fb.Height = uint32(crtc.desiredMode.VDisplay)
	fb.Pitch = fb.Width * 4
	fb.BitsPerPixel = 32
	fb.Depth = 24
	fb.bo = bo
	crtc.fb = fb
	return nil
}

func (d *fakeDeviceDriver) FbResize(m *Manager, crtc *Crtc) error {
	return nil
}

func (d *fakeDeviceDriver) FbRemove(m *Manager, fb *Framebuffer) {
	d.removed = append(d.removed, fb)
}

var testMode1024 = Mode{
	Name: "1024x768", Type: ModeTypeDriver | ModeTypePreferred,
	Clock:    65000,
	HDisplay: 1024, HSyncStart: 1048, HSyncEnd: 1184, HTotal: 1344,
	VDisplay: 768, VSyncStart: 771, VSyncEnd: 777, VTotal: 806,
	Flags: ModeFlagNHSync | ModeFlagNVSync,
}

var testMode800 = Mode{
	Name: "800x600", Type: ModeTypeDriver,
	Clock:    40000,
	HDisplay: 800, HSyncStart: 840, HSyncEnd: 968, HTotal: 1056,
	VDisplay: 600, VSyncStart: 601, VSyncEnd: 605, VTotal: 628,
	Flags: ModeFlagPHSync | ModeFlagPVSync,
}

// newTestManager wires a Manager with no bus connection, one fake
// device driver and a fresh buffer table.
func newTestManager() (*Manager, *fakeDeviceDriver) {
	buffers := NewBufferTable()
	dev := &fakeDeviceDriver{buffers: buffers}
	m := NewManager(nil, dev, buffers)
	m.userConfig = make(UserConfig)
	return m, dev
}

// addTestPipeline creates one CRTC (with base-set support) and one
// connected output able to use every CRTC created so far.
func addTestPipeline(m *Manager, calls *[]string, templates ...Mode) (*Crtc, *Output, *fakeOutputDriver) {
	crtc, err := m.CreateCrtc(&fakeBaseCrtcDriver{fakeCrtcDriver{calls: calls}})
	if err != nil {
		panic(err)
	}
	od := &fakeOutputDriver{connected: true, templates: templates, calls: calls}
	o, err := m.CreateOutput(od, OutputTypeTMDS)
	if err != nil {
		panic(err)
	}
	o.PossibleCrtcs = 1<<uint(len(m.crtcs)) - 1
	return crtc, o, od
}
