//go:build !windows

// uart_host.go - stdin feeder for the UART

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
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// UARTHost reads host stdin and pushes the bytes into the UART receive queue.
// In raw mode the terminal's echo and line editing are disabled and Ctrl+C
// arrives as a byte, so it is turned into an interrupt request instead.
type UARTHost struct {
	uart        *UART
	raw         bool
	onInterrupt func()
}

func NewUARTHost(uart *UART, raw bool, onInterrupt func()) *UARTHost {
	return &UARTHost{uart: uart, raw: raw, onInterrupt: onInterrupt}
}

// Run feeds stdin until ctx is cancelled or stdin reaches end of file. The
// terminal state is restored before it returns.
func (h *UARTHost) Run(ctx context.Context) error {
	fd := int(os.Stdin.Fd())

	if h.raw && term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("uart host: raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, oldState) }()
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		return fmt.Errorf("uart host: nonblocking stdin: %w", err)
	}
	defer func() { _ = unix.SetNonblock(fd, false) }()

	buf := make([]byte, 256)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := unix.Read(fd, buf)
		if n > 0 {
			h.push(buf[:n])
		}
		switch {
		case err == unix.EAGAIN || err == unix.EINTR:
			time.Sleep(5 * time.Millisecond)
		case err != nil:
			return fmt.Errorf("uart host: read stdin: %w", err)
		case n == 0:
			return nil
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
