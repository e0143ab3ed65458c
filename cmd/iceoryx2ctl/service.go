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

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/config"
	"github.com/eclipse-iceoryx/iceoryx2-go/pkg/iceoryx2"
)

func openNode(root string) (*iceoryx2.Node, error) {
	cfg := config.Defaults()
	if root != "" {
		cfg.Global.RootPath = root
	}
	return iceoryx2.NewNodeBuilder().Name("iceoryx2ctl").Config(cfg).Create()
}

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Inspect services known to the registry",
	}
	cmd.AddCommand(newServiceListCmd())
	cmd.AddCommand(newServiceDetailsCmd())
	return cmd
}

func newServiceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every service currently known to the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			n, err := openNode(root)
			if err != nil {
				return err
			}
			defer n.Close()

			names, err := n.ListServices()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Println("no services found")
				return nil
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func newServiceDetailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "details <name>",
		Short: "Print a service's published static configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			n, err := openNode(root)
			if err != nil {
				return err
			}
			defer n.Close()

			details, err := n.ServiceDetails(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("name:    %s\n", details.Name)
			fmt.Printf("pattern: %s\n", details.Pattern)
			switch {
			case details.PubSub != nil:
				p := details.PubSub
				fmt.Printf("max publishers:              %d\n", p.MaxPublishers)
				fmt.Printf("max subscribers:             %d\n", p.MaxSubscribers)
				fmt.Printf("max nodes:                   %d\n", p.MaxNodes)
				fmt.Printf("subscriber max buffer size:  %d\n", p.SubscriberMaxBufferSize)
				fmt.Printf("subscriber max borrowed:     %d\n", p.SubscriberMaxBorrowedSamples)
				fmt.Printf("publisher history size:      %d\n", p.PublisherHistorySize)
				fmt.Printf("safe overflow enabled:       %t\n", p.EnableSafeOverflow)
			case details.Event != nil:
				e := details.Event
				fmt.Printf("max listeners:     %d\n", e.MaxListeners)
				fmt.Printf("max notifiers:     %d\n", e.MaxNotifiers)
				fmt.Printf("max nodes:         %d\n", e.MaxNodes)
				fmt.Printf("event id max value: %d\n", e.EventIdMaxValue)
			}
			return nil
		},
	}
}
