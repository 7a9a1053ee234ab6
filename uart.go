// uart.go - serial console peripheral

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
	"io"
	"sync"

	"github.com/intuitionamiga/nyxbox/logger"
)

const (
	UART_STATUS = 0x00
	UART_TX     = 0x01
	UART_RX     = 0x02
)

const (
	UART_STATUS_RESET    = 1 // write
	UART_STATUS_TX_EMPTY = 2
	UART_STATUS_RX_EMPTY = 8
)

// UART is a byte-oriented serial port. Guest writes to TX go straight to the
// output sink; input arrives out of band through PushInput and is popped one
// byte per RX read.
type UART struct {
	mu sync.Mutex
	rx []byte
	tx io.Writer
}

// flusher is satisfied by buffered sinks such as *bufio.Writer.
type flusher interface {
	Flush() error
}

func NewUART(tx io.Writer) *UART {
	if tx == nil {
		tx = io.Discard
	}
	return &UART{tx: tx}
}

// PushInput appends host bytes to the receive queue.
func (u *UART) PushInput(input []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rx = append(u.rx, input...)
}

// Pending returns the number of bytes waiting in the receive queue.
func (u *UART) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.rx)
}

func (u *UART) Read(reg uint32) uint32 {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch reg {
	case UART_STATUS:
		return UART_STATUS_TX_EMPTY | boolBit(len(u.rx) == 0, UART_STATUS_RX_EMPTY)
	case UART_RX:
		if len(u.rx) == 0 {
			return 0
		}
		b := u.rx[0]
		u.rx = u.rx[1:]
		return uint32(b)
	}
	return 0
}

func (u *UART) Write(reg uint32, value uint32) {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch reg {
	case UART_STATUS:
		if value&UART_STATUS_RESET != 0 {
			u.rx = nil
			u.flush()
		}
	case UART_TX:
		if _, err := u.tx.Write([]byte{byte(value)}); err != nil {
			logger.Logf("uart", "tx write: %v", err)
		}
	}
}

func (u *UART) flush() {
	if f, ok := u.tx.(flusher); ok {
		if err := f.Flush(); err != nil {
			logger.Logf("uart", "tx flush: %v", err)
		}
	}
}

// hostInputByte maps raw terminal keys to what guest software expects: CR
// for Enter becomes LF and DEL for Backspace becomes BS.
func hostInputByte(b byte) byte {
	switch b {
	case '\r':
		return '\n'
	case 0x7F:
		return 0x08
	}
	return b
}

// crlfWriter expands LF to CRLF for a terminal in raw mode.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	for i, b := range p {
		var err error
		if b == '\n' {
			_, err = c.w.Write([]byte{'\r', '\n'})
		} else {
			_, err = c.w.Write(p[i : i+1])
		}
		if err != nil {
			return i, err
		}
	}
	return len(p), nil
}
