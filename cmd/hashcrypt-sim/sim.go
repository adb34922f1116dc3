// Copyright (c) F-Secure Corporation
// https://foundry.f-secure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/usbarmory/armory-hashcrypt/api"
	"github.com/usbarmory/armory-hashcrypt/internal/config"
	"github.com/usbarmory/armory-hashcrypt/internal/crypto"
	"github.com/usbarmory/armory-hashcrypt/internal/driver"
	"github.com/usbarmory/armory-hashcrypt/internal/hashcrypt"
	"github.com/usbarmory/armory-hashcrypt/internal/hashcrypt/emulator"
	"github.com/usbarmory/armory-hashcrypt/internal/kernel"
	"github.com/usbarmory/armory-hashcrypt/internal/syscon"
)

// system represents the simulated tasks.
type system struct {
	task     *kernel.Endpoint
	syscon   *kernel.Endpoint
	host     *syscon.Host
	driver   *driver.Driver
	registry *prometheus.Registry
}

func newSystem(conf *Config) (sys *system, err error) {
	cfg := config.Default()

	if len(conf.configFile) > 0 {
		if cfg, err = config.LoadFile(conf.configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file '%v': %v", conf.configFile, err)
		}
	}

	lf := cfg.Logging.LoggerFactory()
	emu := emulator.New()

	sys = &system{
		task:     kernel.NewEndpoint(kernel.EndpointConfig{Queue: 1, LoggerFactory: lf}),
		syscon:   kernel.NewEndpoint(kernel.EndpointConfig{Queue: 1, LoggerFactory: lf}),
		host:     syscon.NewHost(lf),
		registry: prometheus.NewRegistry(),
	}

	sys.host.Register(cfg.Driver.Peripheral, emu)

	sys.task.BindInterrupt(cfg.Driver.NotificationMask, emu)
	emu.SetNotifier(sys.task.Kick)

	dc := cfg.DriverConfig()
	dc.Engine = hashcrypt.New(emu, emu, lf)
	dc.Kernel = sys.task
	dc.Syscon = &syscon.Client{Endpoint: sys.syscon}
	dc.Registerer = sys.registry

	sys.driver = driver.New(dc)

	return
}

// run starts the controller and driver tasks and invokes fn as their
// client, tasks are stopped once fn returns.
func (sys *system) run(ctx context.Context, conf *Config, fn func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	tasks, cancel := context.WithCancel(ctx)

	g.Go(func() error {
		return sys.host.Serve(tasks, sys.syscon)
	})

	// the controller task must be running to power on the engine
	sys.driver.Init()

	g.Go(func() error {
		return sys.driver.Run(tasks)
	})

	if len(conf.metrics) > 0 {
		srv := &http.Server{
			Addr:              conf.metrics,
			Handler:           promhttp.HandlerFor(sys.registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		})

		g.Go(func() error {
			<-tasks.Done()
			return srv.Shutdown(context.Background())
		})
	}

	g.Go(func() (err error) {
		if err = fn(ctx); err != nil {
			cancel()
			return
		}

		if len(conf.metrics) > 0 {
			log.Printf("serving metrics on %s, interrupt to exit", conf.metrics)
			<-ctx.Done()
		}

		cancel()

		return
	})

	err := g.Wait()
	cancel()

	stats := sys.driver.Stats()
	log.Printf("blocks fed:%d drained:%d completed:%d failed:%d faults:%d",
		stats.BlocksFed, stats.BlocksDrained, stats.Completed, stats.Failed, stats.HardwareFaults)

	return err
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}

	return os.ReadFile(path)
}

func writeOutput(path string, buf []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(buf)
		return err
	}

	return os.WriteFile(path, buf, 0600)
}

func encryptFile(ctx context.Context, conf *Config) (err error) {
	key, err := hex.DecodeString(conf.key)

	if err != nil || len(key) != api.KeySize {
		return fmt.Errorf("invalid argument: key must be %d hex encoded bytes", api.KeySize)
	}

	src, err := readInput(conf.input)

	if err != nil {
		return
	}

	if len(src) == 0 || len(src)%api.BlockSize != 0 {
		return fmt.Errorf("invalid argument: input length %d is not a multiple of %d", len(src), api.BlockSize)
	}

	sys, err := newSystem(conf)

	if err != nil {
		return
	}

	dst := make([]byte, len(src))

	err = sys.run(ctx, conf, func(ctx context.Context) error {
		return crypto.EncryptECB(ctx, sys.task, key, dst, src)
	})

	if err != nil {
		return
	}

	return writeOutput(conf.output, dst)
}

func selftest(ctx context.Context, conf *Config) (err error) {
	sys, err := newSystem(conf)

	if err != nil {
		return
	}

	return sys.run(ctx, conf, func(ctx context.Context) error {
		passed, err := crypto.SelfTest(ctx, sys.task)

		for _, name := range passed {
			log.Printf("%s: PASS", name)
		}

		return err
	})
}
