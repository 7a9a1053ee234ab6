// main.go - machine assembly and command line

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/intuitionamiga/nyxbox/logger"
	"github.com/intuitionamiga/nyxbox/statsview"
)

func boilerPlate() {
	fmt.Println("\n\033[38;2;255;20;147mIntuition Engine\033[0m IE32 + VDP machine")
	fmt.Println("(c) 2024 - 2026 Zayn Otley")
	fmt.Println("License: GPLv3 or later")
}

type options struct {
	rom         string
	script      string
	frames      uint64
	cable       uint32
	logEcho     bool
	stats       bool
	rawTerminal bool
}

func parseFlags(args []string) (options, error) {
	opts := options{}

	flagSet := flag.NewFlagSet("nyxbox", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&opts.rom, "rom", "", "boot ROM image, or IE32 assembly when the name ends in .asm (default: built-in demo)")
	flagSet.StringVar(&opts.script, "script", "", "Lua script run before the CPU starts")
	flagSet.Func("frames", "stop after this many frames (0 runs until interrupted)", func(v string) error {
		n, err := strconv.ParseUint(v, 0, 64)
		opts.frames = n
		return err
	})
	flagSet.Func("cable", "display cable: 0 VGA, 1 composite, 2 S-video, 3 component", func(v string) error {
		n, err := strconv.ParseUint(v, 0, 32)
		if err == nil && n > VDP_DISPLAY_CABLE_MASK {
			err = fmt.Errorf("cable %d out of range", n)
		}
		opts.cable = uint32(n)
		return err
	})
	flagSet.BoolVar(&opts.logEcho, "log", false, "echo the diagnostic log to stderr")
	flagSet.BoolVar(&opts.stats, "statsview", false, "run the runtime stats server (statsview builds only)")
	flagSet.BoolVar(&opts.rawTerminal, "raw-terminal", false, "put the terminal in raw mode while feeding stdin to the UART")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: nyxbox [-rom file] [-script boot.lua] [-frames n] [-cable n] [-log] [-statsview] [-raw-terminal]")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if flagSet.NArg() > 0 {
		return opts, fmt.Errorf("unexpected argument %q", flagSet.Arg(0))
	}
	return opts, nil
}

// loadROM returns the boot ROM image. An empty path selects the demo ROM.
func loadROM(path string) ([]byte, error) {
	if path == "" {
		return demoROM()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ROM: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".asm") {
		img, err := AssembleIE32(string(data), BOOT_ROM_BEGIN)
		if err != nil {
			return nil, fmt.Errorf("assemble %s: %w", path, err)
		}
		data = img
	}
	if len(data) > BOOT_ROM_SIZE {
		return nil, fmt.Errorf("ROM is %d bytes, limit %d", len(data), BOOT_ROM_SIZE)
	}
	return data, nil
}

// system is a fully mapped machine that has not been started.
type system struct {
	machine *Machine
	clock   *Clock
	uart    *UART
	vdp     *VDP
}

func newSystem(rom []byte, backend VDPBackend, tx io.Writer) (*system, error) {
	if len(rom) > BOOT_ROM_SIZE {
		return nil, fmt.Errorf("ROM is %d bytes, limit %d", len(rom), BOOT_ROM_SIZE)
	}
	romMem := make([]byte, BOOT_ROM_SIZE)
	copy(romMem, rom)

	vdp, err := NewVDP(backend)
	if err != nil {
		return nil, err
	}

	bus := NewAddressSpace()
	s := &system{
		machine: NewMachine(NewIE32Engine(bus, MAIN_RAM_BEGIN+MAIN_RAM_SIZE), bus, NewWakeSignal()),
		clock:   NewClock(),
		uart:    NewUART(tx),
		vdp:     vdp,
	}
	s.machine.SetBootPC(BOOT_ROM_BEGIN)

	if err := s.machine.MapMemory(BOOT_ROM_BEGIN, romMem, PERM_READ|PERM_EXEC); err != nil {
		vdp.Destroy()
		return nil, err
	}
	if err := s.machine.MapMemory(MAIN_RAM_BEGIN, make([]byte, MAIN_RAM_SIZE), PERM_ALL); err != nil {
		vdp.Destroy()
		return nil, err
	}
	peripherals := []struct {
		base, size uint32
		dev        Peripheral
	}{
		{CLOCK_BEGIN, CLOCK_SIZE, s.clock},
		{UART_BEGIN, UART_SIZE, s.uart},
		{VDP_REG_BEGIN, VDP_REG_SIZE, s.vdp},
		{VDP_VRAM_BEGIN, VDP_VRAM_SIZE, s.vdp.VRAMAperture()},
	}
	for _, p := range peripherals {
		if err := s.machine.MapPeripheral(p.base, p.size, p.dev); err != nil {
			vdp.Destroy()
			return nil, err
		}
	}
	return s, nil
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	boilerPlate()
	if opts.logEcho {
		logger.SetEcho(os.Stderr)
	}
	if opts.stats {
		if statsview.Available() {
			statsview.Launch(os.Stdout)
		} else {
			fmt.Println("statsview not available in this build (build with -tags statsview)")
		}
	}

	rom, err := loadROM(opts.rom)
	if err != nil {
		return err
	}

	backend := NewVulkanBackend()
	fmt.Printf("VDP backend: %s\n", backend.DeviceName())

	var tx io.Writer = os.Stdout
	if opts.rawTerminal {
		tx = crlfWriter{os.Stdout}
	}
	sys, err := newSystem(rom, backend, tx)
	if err != nil {
		return err
	}
	defer sys.vdp.Destroy()
	sys.vdp.SetCable(opts.cable)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var script *ScriptHost
	if opts.script != "" {
		script = NewScriptHost(sys.machine.Bus(), sys.vdp, sys.uart, cancel)
		defer script.Close()
		if err := script.RunFile(opts.script); err != nil {
			return err
		}
	}

	runCtx, err := sys.machine.Run()
	if err != nil {
		return err
	}
	defer runCtx.Stop()

	driver := NewFrameDriver(runCtx, sys.vdp)
	if script != nil {
		driver.OnFrame(script.OnFrame)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return NewUARTHost(sys.uart, opts.rawTerminal, cancel).Run(gctx)
	})

	cfg := frontendConfig{
		driver:    driver,
		vdp:       sys.vdp,
		uart:      sys.uart,
		run:       runCtx,
		maxFrames: opts.frames,
		title:     "Intuition Engine IE32 + VDP",
	}
	err = runFrontend(gctx, cfg)
	cancel()
	if werr := g.Wait(); err == nil {
		err = werr
	}
	runCtx.Stop()

	fmt.Printf("\n%s\n", statusLine(&cfg))
	return err
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
