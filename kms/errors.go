// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kms

import "errors"

// Error kinds returned by the entity store, the property system and the
// committer. The DBus façade converts them with dbusutil.ToError, so the
// message text is what a caller sees.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("object not found")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrCapacityExceeded  = errors.New("property slot table is full")
	ErrConfigRejected    = errors.New("mode rejected by fixup")
	ErrUnsupported       = errors.New("operation not supported by driver")
	ErrPermissionDenied  = errors.New("caller does not own this object")
	ErrFault             = errors.New("request marshaling fault")
)
