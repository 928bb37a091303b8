// Command workstation is the thin command-line front-end around core_engine: it
// supplies ROM/floppy paths and scripted key events to the core and never touches
// core semantics itself (§2.2), grounded on oisee-z80-optimizer/cmd/z80opt/main.go's
// single cobra root command with flag-backed subcommand state.
package main

import (
	"fmt"
	"os"
	"plugin"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unknown-technologies/emulator/core_engine"
	"github.com/unknown-technologies/emulator/core_engine/devices"
	"github.com/unknown-technologies/emulator/core_engine/media"
	"github.com/unknown-technologies/emulator/core_engine/trace"
)

func main() {
	var (
		romPath     string
		floppyPath  string
		tracePath   string
		cpuPlugin   string
		pressKeys   []string
		patchSerial bool
		debug       bool
	)

	root := &cobra.Command{
		Use:   "workstation",
		Short: "Run the workstation core against a ROM and floppy image",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(runConfig{
				romPath:     romPath,
				floppyPath:  floppyPath,
				tracePath:   tracePath,
				cpuPlugin:   cpuPlugin,
				pressKeys:   pressKeys,
				patchSerial: patchSerial,
				debug:       debug,
			})
		},
	}

	root.Flags().StringVar(&romPath, "rom", "", "path to the 1024-byte EPROM image (required)")
	root.Flags().StringVar(&floppyPath, "floppy", "", "path to the 35*3584-byte floppy image (required)")
	root.Flags().StringVar(&tracePath, "trace", "", "write a binary execution trace to this path")
	root.Flags().StringVar(&cpuPlugin, "cpu-plugin", "", "Go plugin (.so) exporting NewCPU() core_engine.CPU — the external Z80 interpreter")
	root.Flags().StringArrayVar(&pressKeys, "press-key", nil, "press a key before running; raw id (0-71) or midi:<id> (0-48), repeatable")
	root.Flags().BoolVar(&patchSerial, "patch-serial", false, "patch the floppy's serial-number bytes from the ROM image before running")
	root.Flags().BoolVar(&debug, "debug", false, "enable verbose device logging")

	root.MarkFlagRequired("rom")
	root.MarkFlagRequired("floppy")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

type runConfig struct {
	romPath, floppyPath, tracePath, cpuPlugin string
	pressKeys                                 []string
	patchSerial, debug                        bool
}

func run(cfg runConfig) error {
	rawROM, err := media.LoadFile(cfg.romPath, 1024)
	if err != nil {
		return fmt.Errorf("workstation: %w", err)
	}
	floppy, err := media.LoadFloppy(cfg.floppyPath)
	if err != nil {
		return fmt.Errorf("workstation: %w", err)
	}

	var sink trace.Sink
	if cfg.tracePath != "" {
		f, err := os.Create(cfg.tracePath)
		if err != nil {
			return fmt.Errorf("workstation: %w", err)
		}
		defer f.Close()
		w, err := trace.NewWriter(f)
		if err != nil {
			return fmt.Errorf("workstation: %w", err)
		}
		sink = w
	}

	e, err := core_engine.New(rawROM, floppy, sink)
	if err != nil {
		return fmt.Errorf("workstation: %w", err)
	}
	e.Debug = cfg.debug
	e.PIO.Debug = cfg.debug
	e.SIO.Debug = cfg.debug
	e.CTC.Debug = cfg.debug
	e.DMA.Debug = cfg.debug
	e.FDD.Debug = cfg.debug
	e.Keyboard.Debug = cfg.debug

	if cfg.patchSerial {
		if err := e.PatchFloppySerial(rawROM); err != nil {
			return fmt.Errorf("workstation: %w", err)
		}
	}

	for _, spec := range cfg.pressKeys {
		id, err := parseKeySpec(spec)
		if err != nil {
			return fmt.Errorf("workstation: --press-key %q: %w", spec, err)
		}
		e.Keyboard.PressKey(id)
	}

	if cfg.cpuPlugin == "" {
		fmt.Println("workstation: no --cpu-plugin given; core initialized and key events applied, not run")
		return nil
	}

	cpu, err := loadCPUPlugin(cfg.cpuPlugin)
	if err != nil {
		return fmt.Errorf("workstation: %w", err)
	}

	drv := core_engine.NewDriver(e, cpu)
	drv.Debug = cfg.debug
	if err := drv.Run(); err != nil {
		return fmt.Errorf("workstation: %w", err)
	}
	return nil
}

// parseKeySpec accepts either a raw key id (0..71) or a midi:<id> spec run through the
// firmware's own EMUKeyboardToKey table (0..48, id = midi ^ 7), matching main.c's -m flag.
func parseKeySpec(spec string) (uint8, error) {
	if rest, ok := strings.CutPrefix(spec, "midi:"); ok {
		note, err := strconv.ParseUint(rest, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("invalid MIDI key id: %w", err)
		}
		id, ok := devices.KeyFromMIDI(uint8(note))
		if !ok {
			return 0, fmt.Errorf("MIDI key id %d is outside the keyboard's compass", note)
		}
		return id, nil
	}

	id, err := strconv.ParseUint(spec, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid key id: %w", err)
	}
	if id > 71 {
		return 0, fmt.Errorf("key id %d out of range (0-71)", id)
	}
	return uint8(id), nil
}

// loadCPUPlugin opens a Go plugin exporting a NewCPU() core_engine.CPU symbol. The
// interpreter itself is an external collaborator (§6, §9 "cyclic ownership") — this
// module never ships one.
func loadCPUPlugin(path string) (core_engine.CPU, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening CPU plugin: %w", err)
	}
	sym, err := p.Lookup("NewCPU")
	if err != nil {
		return nil, fmt.Errorf("CPU plugin missing NewCPU: %w", err)
	}
	ctor, ok := sym.(func() core_engine.CPU)
	if !ok {
		return nil, fmt.Errorf("CPU plugin's NewCPU has the wrong signature")
	}
	return ctor(), nil
}
