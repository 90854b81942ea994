// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
	ofdbus "github.com/linuxdeepin/go-dbus-factory/session/org.freedesktop.dbus"
	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/log"
	"github.com/linuxdeepin/go-lib/strv"
)

// default device size limits, drivers may override
const (
	defaultMinWidth  = 320
	defaultMinHeight = 200
	defaultMaxWidth  = 2048
	defaultMaxHeight = 2048
)

// Manager is the per-device mode-configuration aggregate: the id
// registry, every CRTC, output, framebuffer, property and blob, and the
// size limits. One coarse lock serializes everything; cross-entity
// invariants (a CRTC's enabled state depends on scanning all outputs)
// need consistent global snapshots, so no finer locking is attempted.
type Manager struct {
	service    *dbusutil.Service
	sigLoop    *dbusutil.SignalLoop
	dbusDaemon ofdbus.DBus

	mu       sync.Mutex
	registry *idRegistry
	crtcs    []*Crtc
	outputs  Outputs
	fbs      []*Framebuffer
	props    []*Property
	blobs    []*PropertyBlob

	MinWidth  uint32
	MinHeight uint32
	MaxWidth  uint32
	MaxHeight uint32

	hotplugCount uint32 // accessed atomically, readable without mu

	buffers *BufferTable
	driver  DeviceDriver

	// framebuffers owned by each bus client, keyed by the unique name
	sessions map[string][]*Framebuffer

	userConfig UserConfig

	edidProp     *Property
	dpmsProp     *Property
	connTypeProp *Property
	connNumProp  *Property
}

// NewManager builds an empty device configuration. driver supplies the
// whole-device framebuffer callbacks, buffers the external buffer-object
// table (its own lock domain, see BufferTable).
func NewManager(service *dbusutil.Service, driver DeviceDriver, buffers *BufferTable) *Manager {
	m := &Manager{
		service:   service,
		registry:  newIDRegistry(),
		MinWidth:  defaultMinWidth,
		MinHeight: defaultMinHeight,
		MaxWidth:  defaultMaxWidth,
		MaxHeight: defaultMaxHeight,
		buffers:   buffers,
		driver:    driver,
		sessions:  make(map[string][]*Framebuffer),
	}
	m.createStandardProperties()
	return m
}

// SetSizeLimits overrides the device min/max framebuffer dimensions.
func (m *Manager) SetSizeLimits(minW, minH, maxW, maxH uint32) {
	m.mu.Lock()
	m.MinWidth = minW
	m.MinHeight = minH
	m.MaxWidth = maxW
	m.MaxHeight = maxH
	m.mu.Unlock()
}

// createStandardProperties makes the properties every output carries.
func (m *Manager) createStandardProperties() {
	var err error
	m.edidProp, err = m.CreateProperty(PropFlagBlob|PropFlagImmutable, "EDID", 0)
	if err != nil {
		logger.Error("failed to create EDID property:", err)
	}

	m.dpmsProp, err = m.CreateProperty(PropFlagEnum, "DPMS", len(dpmsEnumList))
	if err != nil {
		logger.Error("failed to create DPMS property:", err)
	} else {
		for i, e := range dpmsEnumList {
			err = m.dpmsProp.AddEnum(i, uint64(e.value), e.name)
			if err != nil {
				logger.Warning(err)
			}
		}
	}

	m.connTypeProp, err = m.CreateProperty(PropFlagEnum|PropFlagImmutable,
		"Connector Type", len(connectorEnumList))
	if err != nil {
		logger.Error("failed to create Connector Type property:", err)
	} else {
		for i, e := range connectorEnumList {
			err = m.connTypeProp.AddEnum(i, uint64(e.value), e.name)
			if err != nil {
				logger.Warning(err)
			}
		}
	}

	m.connNumProp, err = m.CreateProperty(PropFlagRange|PropFlagImmutable,
		"Connector ID", 2)
	if err != nil {
		logger.Error("failed to create Connector ID property:", err)
	} else {
		m.connNumProp.Values[0] = 0
		m.connNumProp.Values[1] = 20
	}
}

// Cleanup tears the whole device configuration down. Outputs go first
// because they hold the back-references that must be cleared, then
// properties, then framebuffers (driver-owned ones are handed back to
// the driver), then CRTCs.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.outputs) > 0 {
		m.destroyOutput(m.outputs[0])
	}
	for len(m.props) > 0 {
		m.destroyProperty(m.props[0])
	}
	for len(m.blobs) > 0 {
		m.destroyPropertyBlob(m.blobs[0])
	}
	for len(m.fbs) > 0 {
		fb := m.fbs[0]
		if fb.bo != nil && fb.bo.Type == BufferTypeKernel {
			m.destroyFramebuffer(fb)
			m.driver.FbRemove(m, fb)
		} else {
			m.destroyFramebuffer(fb)
		}
	}
	for len(m.crtcs) > 0 {
		m.destroyCrtc(m.crtcs[0])
	}
}

// getOutputsId returns a stable identifier for the current set of
// connected outputs, used as the config key.
func (m *Manager) getOutputsId() string {
	var names strv.Strv
	for _, o := range m.outputs {
		if o.Status != ConnectionConnected {
			continue
		}
		name := o.name()
		if !names.Contains(name) {
			names = append(names, name)
		}
	}
	return strings.Join(names, ",")
}

func (m *Manager) dumpInfoForDebug() {
	if logger.GetLogLevel() != log.LevelDebug {
		return
	}
	for _, o := range m.outputs {
		crtcID := uint32(0)
		if o.crtc != nil {
			crtcID = o.crtc.ID
		}
		logger.Debugf("output %v crtc: %v, possible crtcs: %#x, clones: %#x, modes: %s",
			o.name(), crtcID, o.PossibleCrtcs, o.PossibleClones,
			spew.Sdump(o.modes))
	}
	for _, c := range m.crtcs {
		logger.Debugf("crtc %v enabled: %v at %v+%v mode %v",
			c.ID, c.Enabled, c.X, c.Y, c.Mode.Name)
	}
}

// hotplugCounter returns the monotonic hotplug counter. Lock-free.
func (m *Manager) hotplugCounter() uint32 {
	return atomic.LoadUint32(&m.hotplugCount)
}

func (m *Manager) bumpHotplugCounter() {
	atomic.AddUint32(&m.hotplugCount, 1)
}

// listenSessionReleased watches bus clients going away and destroys the
// framebuffers they own.
func (m *Manager) listenSessionReleased() {
	if m.service == nil {
		return
	}
	m.sigLoop = dbusutil.NewSignalLoop(m.service.Conn(), 10)
	m.sigLoop.Start()
	m.dbusDaemon = ofdbus.NewDBus(m.service.Conn())
	m.dbusDaemon.InitSignalExt(m.sigLoop, true)
	_, err := m.dbusDaemon.ConnectNameOwnerChanged(func(name, oldOwner, newOwner string) {
		if strings.HasPrefix(name, ":") && newOwner == "" {
			m.releaseSession(name)
		}
	})
	if err != nil {
		logger.Warning("failed to watch NameOwnerChanged:", err)
	}
}
