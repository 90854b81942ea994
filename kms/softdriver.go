// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import (
	"golang.org/x/xerrors"
)

// SoftDevice is a purely software device: two CRTCs, a panel output and
// a digital output, VESA mode catalogs and driver-owned framebuffers
// carved out of the shared buffer table. It backs the daemon when no
// hardware driver is wired in and carries the whole test suite.
type SoftDevice struct {
	buffers    *BufferTable
	nextHandle uint64

	outputs map[*Output]*softOutputState
	crtcs   map[*Crtc]*softCrtcState
}

type softOutputState struct {
	connected bool
	templates []Mode
	dpms      int32
}

type softCrtcState struct {
	dpms    int32
	baseX   int32
	baseY   int32
	cursor  *BufferObject
	cursorX int32
	cursorY int32
}

var softVesaModes = []Mode{
	{
		Name: "1024x768", Type: ModeTypeDriver | ModeTypePreferred,
		Clock:    65000,
		HDisplay: 1024, HSyncStart: 1048, HSyncEnd: 1184, HTotal: 1344,
		VDisplay: 768, VSyncStart: 771, VSyncEnd: 777, VTotal: 806,
		Flags: ModeFlagNHSync | ModeFlagNVSync,
	},
	{
		Name: "800x600", Type: ModeTypeDriver,
		Clock:    40000,
		HDisplay: 800, HSyncStart: 840, HSyncEnd: 968, HTotal: 1056,
		VDisplay: 600, VSyncStart: 601, VSyncEnd: 605, VTotal: 628,
		Flags: ModeFlagPHSync | ModeFlagPVSync,
	},
	stdMode,
}

func NewSoftDevice(buffers *BufferTable) *SoftDevice {
	return &SoftDevice{
		buffers: buffers,
		outputs: make(map[*Output]*softOutputState),
		crtcs:   make(map[*Crtc]*softCrtcState),
	}
}

// softCrtcDriver adapts SoftDevice to the CRTC callback table; the
// method sets of the output and CRTC sides overlap in name, so the CRTC
// side lives on its own type.
type softCrtcDriver struct {
	d *SoftDevice
}

func (s *softCrtcDriver) Dpms(c *Crtc, mode int32) {
	s.d.CrtcDpms(c, mode)
}

func (s *softCrtcDriver) ModeFixup(c *Crtc, mode *Mode, adjusted *Mode) bool {
	return s.d.CrtcModeFixup(c, mode, adjusted)
}

func (s *softCrtcDriver) Prepare(c *Crtc) {
	s.d.CrtcPrepare(c)
}

func (s *softCrtcDriver) ModeSet(c *Crtc, mode *Mode, adjusted *Mode, x, y int32) {
	s.d.CrtcModeSet(c, mode, adjusted, x, y)
}

func (s *softCrtcDriver) Commit(c *Crtc) {
	s.d.CrtcCommit(c)
}

func (s *softCrtcDriver) ModeSetBase(c *Crtc, x, y int32) {
	s.d.ModeSetBase(c, x, y)
}

func (s *softCrtcDriver) CursorSet(c *Crtc, bo *BufferObject, width, height uint32) error {
	return s.d.CursorSet(c, bo, width, height)
}

func (s *softCrtcDriver) CursorMove(c *Crtc, x, y int32) error {
	return s.d.CursorMove(c, x, y)
}

// Register populates m with this device's CRTCs and outputs. The panel
// output can only use the first CRTC; the digital one can use both and
// clone with itself.
func (d *SoftDevice) Register(m *Manager) error {
	crtcDriver := &softCrtcDriver{d: d}
	for i := 0; i < 2; i++ {
		c, err := m.CreateCrtc(crtcDriver)
		if err != nil {
			return err
		}
		d.crtcs[c] = &softCrtcState{dpms: DpmsModeOff}
	}

	panel, err := m.CreateOutput(d, OutputTypeLVDS)
	if err != nil {
		return err
	}
	panel.PossibleCrtcs = 1 << 0
	panel.MmWidth = 310
	panel.MmHeight = 174
	d.outputs[panel] = &softOutputState{
		connected: true,
		templates: softVesaModes,
		dpms:      DpmsModeOff,
	}
	d.setupConnectorProperties(m, panel, ConnectorLVDS, 1)

	digital, err := m.CreateOutput(d, OutputTypeTMDS)
	if err != nil {
		return err
	}
	digital.PossibleCrtcs = 1<<0 | 1<<1
	digital.PossibleClones = 1 << 0
	d.outputs[digital] = &softOutputState{
		connected: false,
		templates: softVesaModes,
		dpms:      DpmsModeOff,
	}
	d.setupConnectorProperties(m, digital, ConnectorDVID, 2)

	return nil
}

func (d *SoftDevice) setupConnectorProperties(m *Manager, o *Output, connType int64, connNum uint64) {
	err := o.attachProperty(m.connTypeProp, uint64(connType))
	if err != nil {
		logger.Warning(err)
	}
	err = o.attachProperty(m.connNumProp, connNum)
	if err != nil {
		logger.Warning(err)
	}
	err = m.updateEdidProperty(o, fakeEdid(o.name()))
	if err != nil {
		logger.Warning(err)
	}
}

// fakeEdid builds a 128-byte block carrying the standard EDID magic and
// the output name, enough for clients that only sniff the header.
func fakeEdid(name string) []byte {
	edid := make([]byte, 128)
	copy(edid, []byte{0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x00})
	copy(edid[8:], name)
	return edid
}

// SetConnected flips the output's simulated cable state; callers follow
// up with a hotplug notification.
func (d *SoftDevice) SetConnected(o *Output, connected bool) {
	st := d.outputs[o]
	if st == nil {
		return
	}
	st.connected = connected
}

// OutputDriver

func (d *SoftDevice) Detect(o *Output) ConnectionStatus {
	st := d.outputs[o]
	if st == nil {
		return ConnectionUnknown
	}
	if st.connected {
		return ConnectionConnected
	}
	return ConnectionDisconnected
}

func (d *SoftDevice) GetModes(o *Output) int {
	st := d.outputs[o]
	if st == nil {
		return 0
	}
	count := 0
	for i := range st.templates {
		mode, err := o.m.duplicateMode(&st.templates[i])
		if err != nil {
			logger.Warning(err)
			break
		}
		o.addProbedMode(mode)
		count++
	}
	return count
}

func (d *SoftDevice) ModeValid(o *Output, mode *Mode) ModeStatus {
	// no scaler, refuse anything above the single-link pixel clock
	if mode.Clock > 165000 {
		return ModeBad
	}
	return ModeOK
}

func (d *SoftDevice) ModeFixup(o *Output, mode *Mode, adjusted *Mode) bool {
	return true
}

func (d *SoftDevice) Prepare(o *Output) {
	d.Dpms(o, DpmsModeOff)
}

func (d *SoftDevice) ModeSet(o *Output, mode *Mode, adjusted *Mode) {
	logger.Debugf("soft: %s modeset to %s", o.name(), adjusted.Name)
}

func (d *SoftDevice) Commit(o *Output) {
	d.Dpms(o, DpmsModeOn)
}

func (d *SoftDevice) Dpms(o *Output, mode int32) {
	st := d.outputs[o]
	if st == nil {
		return
	}
	st.dpms = mode
	logger.Debugf("soft: %s dpms %s", o.name(), getDpmsName(mode))
}

// SetProperty implements the optional property application hook; DPMS is
// the only property this device acts on.
func (d *SoftDevice) SetProperty(o *Output, prop *Property, value uint64) error {
	if prop == o.m.dpmsProp {
		d.Dpms(o, int32(value))
	}
	return nil
}

// CrtcDriver

func (d *SoftDevice) CrtcDpms(c *Crtc, mode int32) {
	st := d.crtcs[c]
	if st == nil {
		return
	}
	st.dpms = mode
	logger.Debugf("soft: crtc %d dpms %s", c.ID, getDpmsName(mode))
}

func (d *SoftDevice) CrtcModeFixup(c *Crtc, mode *Mode, adjusted *Mode) bool {
	return true
}

func (d *SoftDevice) CrtcPrepare(c *Crtc) {
	d.CrtcDpms(c, DpmsModeOff)
}

func (d *SoftDevice) CrtcModeSet(c *Crtc, mode *Mode, adjusted *Mode, x, y int32) {
	st := d.crtcs[c]
	if st == nil {
		return
	}
	st.baseX, st.baseY = x, y
	logger.Debugf("soft: crtc %d modeset to %s at %d+%d", c.ID, adjusted.Name, x, y)
}

func (d *SoftDevice) CrtcCommit(c *Crtc) {
	d.CrtcDpms(c, DpmsModeOn)
}

func (d *SoftDevice) ModeSetBase(c *Crtc, x, y int32) {
	st := d.crtcs[c]
	if st == nil {
		return
	}
	st.baseX, st.baseY = x, y
	logger.Debugf("soft: crtc %d base moved to %d+%d", c.ID, x, y)
}

func (d *SoftDevice) CursorSet(c *Crtc, bo *BufferObject, width, height uint32) error {
	st := d.crtcs[c]
	if st == nil {
		return ErrNotFound
	}
	if bo == nil {
		st.cursor = nil
		return nil
	}
	if bo.Size < uint64(width)*uint64(height)*4 {
		return xerrors.Errorf("cursor buffer too small for %dx%d: %w",
			width, height, ErrInvalidArgument)
	}
	st.cursor = bo
	return nil
}

func (d *SoftDevice) CursorMove(c *Crtc, x, y int32) error {
	st := d.crtcs[c]
	if st == nil {
		return ErrNotFound
	}
	st.cursorX, st.cursorY = x, y
	return nil
}

// DeviceDriver

// FbProbe creates a driver-owned framebuffer fitting the CRTC's desired
// mode and attaches it for scan-out.
func (d *SoftDevice) FbProbe(m *Manager, crtc *Crtc, o *Output) error {
	if crtc.desiredMode == nil {
		return ErrInvalidArgument
	}
	if crtc.fb != nil {
		return nil
	}
	fb, err := d.allocFb(m, uint32(crtc.desiredMode.HDisplay),
		uint32(crtc.desiredMode.VDisplay))
	if err != nil {
		return err
	}
	crtc.fb = fb
	return nil
}

// FbResize grows the CRTC's framebuffer when the desired mode no longer
// fits in it.
func (d *SoftDevice) FbResize(m *Manager, crtc *Crtc) error {
	if crtc.desiredMode == nil {
		return ErrInvalidArgument
	}
	w := uint32(crtc.desiredMode.HDisplay)
	h := uint32(crtc.desiredMode.VDisplay)
	if crtc.fb != nil && crtc.fb.Width >= w && crtc.fb.Height >= h {
		return nil
	}
	if crtc.fb != nil {
		old := crtc.fb
		d.FbRemove(m, old)
		m.destroyFramebuffer(old)
	}
	fb, err := d.allocFb(m, w, h)
	if err != nil {
		return err
	}
	crtc.fb = fb
	return nil
}

// FbRemove releases the backing buffer of a driver-owned framebuffer.
func (d *SoftDevice) FbRemove(m *Manager, fb *Framebuffer) {
	if fb.bo != nil {
		d.buffers.Unregister(fb.bo.Handle)
		fb.bo = nil
	}
}

func (d *SoftDevice) allocFb(m *Manager, width, height uint32) (*Framebuffer, error) {
	d.nextHandle++
	bo := &BufferObject{
		Handle: d.nextHandle,
		Type:   BufferTypeKernel,
		Size:   uint64(width) * uint64(height) * 4,
	}
	d.buffers.Register(bo)

	fb, err := m.createFramebuffer()
	if err != nil {
		d.buffers.Unregister(bo.Handle)
		return nil, err
	}
	fb.Width = width
	fb.Height = height
	fb.Pitch = width * 4
	fb.BitsPerPixel = 32
	fb.Depth = 24
	fb.bo = bo
	return fb, nil
}
