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

// Package iceoryx2 is a pure-Go, zero-copy inter-process communication
// substrate: independent processes on the same host exchange typed
// messages through shared-memory regions, without serialization or
// kernel round-trips on the data path.
//
// A minimal publish-subscribe exchange:
//
//	node, err := iceoryx2.NewNodeBuilder().Name("my_node").Create()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer node.Close()
//
//	factory, err := iceoryx2.PublishSubscribe[uint64](node.ServiceBuilder("my_funky_service"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer factory.Close()
//
//	publisher, err := factory.PublisherBuilder().Create()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer publisher.Close()
//
//	sample, err := publisher.LoanUninit()
//	if err != nil {
//		log.Fatal(err)
//	}
//	*sample.Payload() = 42
//	if _, err := sample.Send(); err != nil {
//		log.Fatal(err)
//	}
//
// Event notification follows the same Node → ServiceBuilder → port
// shape, substituting iceoryx2.Event for iceoryx2.PublishSubscribe.
package iceoryx2
