// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"
	"github.com/linuxdeepin/go-lib/log"
	"github.com/linuxdeepin/go-lib/xdg/basedir"
	"golang.org/x/xerrors"
)

const configVersion = "1.0"

var (
	// ~/.config/deepin/kmsd/config.json
	configFile string
	// ~/.config/deepin/kmsd/config.version
	configVersionFile string
)

func init() {
	cfgDir := filepath.Join(basedir.GetUserConfigDir(), "deepin/kmsd")
	configFile = filepath.Join(cfgDir, "config.json")
	configVersionFile = filepath.Join(cfgDir, "config.version")
}

// UserConfig remembers the last applied configuration per output name,
// so a replugged output comes back at the mode the user chose.
type UserConfig map[string]*OutputConfig

type OutputConfig struct {
	Enabled  bool
	ModeName string
	X        int32
	Y        int32
}

func loadUserConfigFile(filename string) (UserConfig, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var c UserConfig
	err = json.Unmarshal(data, &c)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c UserConfig) save(filename string) error {
	var data []byte
	var err error
	if logger.GetLogLevel() == log.LevelDebug {
		data, err = json.MarshalIndent(c, "", "    ")
	} else {
		data, err = json.Marshal(c)
	}
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(filename), 0755)
	if err != nil {
		return err
	}
	err = ioutil.WriteFile(filename, data, 0644)
	if err != nil {
		return xerrors.Errorf("write config: %w", err)
	}
	return nil
}

func (m *Manager) loadUserConfig() {
	cfg, err := loadUserConfigFile(configFile)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warning("failed to load user config:", err)
		}
		m.userConfig = make(UserConfig)
		return
	}
	m.userConfig = cfg
	if logger.GetLogLevel() == log.LevelDebug {
		logger.Debug("loaded user config:", spew.Sdump(cfg))
	}
}

func (m *Manager) saveUserConfig() {
	err := m.userConfig.save(configFile)
	if err != nil {
		logger.Warning("failed to save user config:", err)
		return
	}
	err = ioutil.WriteFile(configVersionFile, []byte(configVersion), 0644)
	if err != nil {
		logger.Warning("failed to save config version:", err)
	}
}

// recordOutputConfig captures the applied state of every output driven
// by crtc into the user config.
func (m *Manager) recordOutputConfig(crtc *Crtc) {
	for _, o := range m.outputs {
		if o.crtc != crtc {
			continue
		}
		m.userConfig[o.name()] = &OutputConfig{
			Enabled:  crtc.Enabled,
			ModeName: crtc.Mode.Name,
			X:        crtc.X,
			Y:        crtc.Y,
		}
	}
}

// applyUserConfig overrides the desired mode computed by assignment
// with the remembered one, when the output still advertises it.
func (m *Manager) applyUserConfig() {
	for _, o := range m.outputs {
		cfg := m.userConfig[o.name()]
		if cfg == nil || o.crtc == nil {
			continue
		}
		if !cfg.Enabled {
			continue
		}
		mode := findFirstMode(o.modes, func(mode *Mode) bool {
			return mode.Name == cfg.ModeName
		})
		if mode == nil {
			continue
		}
		o.crtc.desiredMode = mode
		o.initialX = cfg.X
		o.initialY = cfg.Y
	}
}
