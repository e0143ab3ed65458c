// Copyright (c) 2024 Contributors to the Eclipse Foundation
//
// See the NOTICE file(s) distributed with this work for additional
// information regarding copyright ownership.
//
// This program and the accompanying materials are made available under the
// terms of the Apache Software License 2.0 which is available at
// https://www.apache.org/licenses/LICENSE-2.0, or the MIT license
// which is available at https://opensource.org/licenses/MIT.
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Command iceoryx2ctl inspects and cleans up a service registry root: it
// is not part of the substrate itself, just a thin consumer of
// internal/registry's discovery and cleanup surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "iceoryx2ctl",
		Short:         "Inspect and clean up an iceoryx2-go service registry",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch logLevel {
			case "trace":
				log.SetLevel(log.LevelTrace)
			case "debug":
				log.SetLevel(log.LevelDebug)
			case "warn":
				log.SetLevel(log.LevelWarn)
			case "error":
				log.SetLevel(log.LevelError)
			default:
				log.SetLevel(log.LevelInfo)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: trace|debug|info|warn|error")
	root.PersistentFlags().String("root", "", "registry root path (defaults to $XDG_RUNTIME_DIR/iceoryx2 or $TMPDIR/iceoryx2)")

	root.AddCommand(newServiceCmd())
	root.AddCommand(newNodeCmd())

	return root
}
