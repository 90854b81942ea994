// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"flag"
	"os"

	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/linuxdeepin/go-lib/log"
	"github.com/linuxdeepin/kmsd/kms"
)

var logger = log.NewLogger("daemon/kmsd")

var debug = flag.Bool("d", false, "enable debug logging")

func main() {
	flag.Parse()
	if *debug || os.Getenv("KMSD_DEBUG") != "" {
		logger.SetLogLevel(log.LevelDebug)
		kms.SetLogLevel(log.LevelDebug)
	}

	service, err := dbusutil.NewSessionService()
	if err != nil {
		logger.Fatal("failed to connect to session bus:", err)
	}

	err = kms.Start(service)
	if err != nil {
		logger.Fatal("failed to start mode-setting service:", err)
	}
	defer kms.Stop()

	service.Wait()
}
