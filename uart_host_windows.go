//go:build windows

// uart_host_windows.go - stdin feeder for the UART (Windows console)

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
Buy me a coffee: https://ko-fi.com/intuition/tip

License: GPLv3 or later
*/

package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"
)

type UARTHost struct {
	uart        *UART
	raw         bool
	onInterrupt func()
}

func NewUARTHost(uart *UART, raw bool, onInterrupt func()) *UARTHost {
	return &UARTHost{uart: uart, raw: raw, onInterrupt: onInterrupt}
}

// Run feeds stdin until ctx is cancelled or stdin reaches end of file. The
// console has no non-blocking reads, so a read in flight at cancellation is
// abandoned.
func (h *UARTHost) Run(ctx context.Context) error {
	fd := int(os.Stdin.Fd())

	if h.raw && term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("uart host: raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, oldState) }()
	}

	type chunk struct {
		data []byte
		err  error
	}
	reads := make(chan chunk)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := os.Stdin.Read(buf)
			c := chunk{data: append([]byte(nil), buf[:n]...), err: err}
			select {
			case reads <- c:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-reads:
			h.push(c.data)
			if c.err != nil {
				return nil
			}
		}
	}
}

func (h *UARTHost) push(data []byte) {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if h.raw && b == 0x03 && h.onInterrupt != nil {
			h.onInterrupt()
			continue
		}
		out = append(out, hostInputByte(b))
	}
	if len(out) > 0 {
		h.uart.PushInput(out)
	}
}
