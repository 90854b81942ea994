// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import (
	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/log"
)

var logger = log.NewLogger("daemon/kms")

const (
	dbusServiceName = "org.deepin.dde.Kms1"
	dbusInterface   = "org.deepin.dde.Kms1"
	dbusPath        = "/org/deepin/dde/Kms1"
)

var _mgr *Manager

// Start brings up the mode-setting service on the software device and
// exports it on the bus.
func Start(service *dbusutil.Service) error {
	buffers := NewBufferTable()
	dev := NewSoftDevice(buffers)
	m := NewManager(service, dev, buffers)
	err := dev.Register(m)
	if err != nil {
		return err
	}

	m.loadUserConfig()
	m.InitialConfig()

	err = service.Export(dbusPath, m)
	if err != nil {
		return err
	}
	err = service.RequestName(dbusServiceName)
	if err != nil {
		return err
	}
	m.listenSessionReleased()
	_mgr = m
	return nil
}

// Stop tears the exported service down and releases every entity.
func Stop() {
	if _mgr == nil {
		return
	}
	if _mgr.sigLoop != nil {
		_mgr.sigLoop.Stop()
	}
	_mgr.Cleanup()
	_mgr = nil
}

func SetLogLevel(level log.Priority) {
	logger.SetLogLevel(level)
}
