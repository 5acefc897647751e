// Copyright (C) 2026 The Stower Authors.
// See LICENSE for copying information.

// Package redisserver is a package for starting a redis test server.
package redisserver

import (
	"github.com/alicebob/miniredis/v2"
)

// Start starts an in-process miniredis server for tests.
func Start() (addr string, cleanup func(), err error) {
	server, err := miniredis.Run()
	if err != nil {
		return "", nil, err
	}

	return server.Addr(), func() {
		server.Close()
	}, nil
}
