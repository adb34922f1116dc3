// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

//go:build tamago && arm

package main

import (
	"context"
	"log"
	"time"

	"github.com/usbarmory/armory-hashcrypt/internal/config"
	"github.com/usbarmory/armory-hashcrypt/internal/crypto"
	"github.com/usbarmory/armory-hashcrypt/internal/driver"
	"github.com/usbarmory/armory-hashcrypt/internal/hashcrypt"
	"github.com/usbarmory/armory-hashcrypt/internal/kernel"
	"github.com/usbarmory/armory-hashcrypt/internal/mmio"
	"github.com/usbarmory/armory-hashcrypt/internal/syscon"
)

// interrupt line sampling period
const IRQ_SAMPLE = 100 * time.Microsecond

func init() {
	log.SetFlags(0)
}

func main() {
	cfg := config.Default()
	lf := cfg.Logging.LoggerFactory()

	bus, cpu := hashcrypt.NewMMIO()
	engine := hashcrypt.New(bus, cpu, lf)

	ep := kernel.NewEndpoint(kernel.EndpointConfig{Queue: 1, LoggerFactory: lf})
	ep.BindInterrupt(cfg.Driver.NotificationMask, engine)

	dc := cfg.DriverConfig()
	dc.Engine = engine
	dc.Kernel = ep
	dc.Syscon = syscon.NewRegisters(mmio.Map(syscon.SYSCON_BASE), lf)

	drv := driver.New(dc)
	drv.Init()

	ctx := context.Background()

	go ep.Sample(ctx, IRQ_SAMPLE)

	go func() {
		passed, err := crypto.SelfTest(ctx, ep)

		if err != nil {
			log.Fatalf("self test failed, %v", err)
		}

		log.Printf("self test passed (%d vectors)", len(passed))
	}()

	if err := drv.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
