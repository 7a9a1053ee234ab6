//go:build !headless

// frontend_ebiten.go - windowed frontend: VDP frame, keyboard and status bar

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
	"image/color"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.design/x/clipboard"
	"golang.org/x/image/font/basicfont"
)

const statusBarHeight = 18

type ebitenFrontend struct {
	ctx context.Context
	cfg *frontendConfig

	screen        *ebiten.Image
	frameW        int
	frameH        int
	showStatusBar bool

	clipboardOnce sync.Once
	clipboardOK   bool
}

func runFrontend(ctx context.Context, cfg frontendConfig) error {
	f := &ebitenFrontend{
		ctx:           ctx,
		cfg:           &cfg,
		showStatusBar: true,
	}

	ebiten.SetWindowSize(DISPLAY_WIDTH, DISPLAY_HEIGHT)
	ebiten.SetWindowTitle(cfg.title)
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetTPS(FRAME_RATE)

	if err := ebiten.RunGame(f); err != nil {
		return fmt.Errorf("ebiten: %w", err)
	}
	return nil
}

func (f *ebitenFrontend) Update() error {
	if ebiten.IsWindowBeingClosed() || f.ctx.Err() != nil || f.cfg.framesDone() {
		return ebiten.Termination
	}

	f.cfg.driver.Advance(time.Now())

	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		f.showStatusBar = !f.showStatusBar
	}
	f.handleKeyboardInput()
	return nil
}

func (f *ebitenFrontend) handleKeyboardInput() {
	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	shift := ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight)

	if ctrl && shift && inpututil.IsKeyJustPressed(ebiten.KeyV) {
		f.handleClipboardPaste()
		return
	}

	var input []byte
	for _, r := range ebiten.AppendInputChars(nil) {
		if b, ok := runeToInputByte(r); ok {
			input = append(input, b)
		}
	}
	for _, key := range specialKeys {
		if inpututil.IsKeyJustPressed(key) {
			if seq, ok := translateSpecialKey(key); ok {
				input = append(input, seq...)
			}
		}
	}
	if len(input) > 0 {
		f.cfg.uart.PushInput(input)
	}
}

var specialKeys = []ebiten.Key{
	ebiten.KeyEnter,
	ebiten.KeyNumpadEnter,
	ebiten.KeyBackspace,
	ebiten.KeyTab,
	ebiten.KeyEscape,
	ebiten.KeyArrowUp,
	ebiten.KeyArrowDown,
	ebiten.KeyArrowRight,
	ebiten.KeyArrowLeft,
	ebiten.KeyHome,
	ebiten.KeyEnd,
	ebiten.KeyDelete,
}

func runeToInputByte(r rune) (byte, bool) {
	if r <= 0 || r > 0xFF {
		return 0, false
	}
	return byte(r), true
}

func translateSpecialKey(key ebiten.Key) ([]byte, bool) {
	switch key {
	case ebiten.KeyEnter, ebiten.KeyNumpadEnter:
		return []byte{'\n'}, true
	case ebiten.KeyBackspace:
		return []byte{'\b'}, true
	case ebiten.KeyTab:
		return []byte{'\t'}, true
	case ebiten.KeyEscape:
		return []byte{0x1B}, true
	case ebiten.KeyArrowUp:
		return []byte{0x1B, '[', 'A'}, true
	case ebiten.KeyArrowDown:
		return []byte{0x1B, '[', 'B'}, true
	case ebiten.KeyArrowRight:
		return []byte{0x1B, '[', 'C'}, true
	case ebiten.KeyArrowLeft:
		return []byte{0x1B, '[', 'D'}, true
	case ebiten.KeyHome:
		return []byte{0x1B, '[', 'H'}, true
	case ebiten.KeyEnd:
		return []byte{0x1B, '[', 'F'}, true
	case ebiten.KeyDelete:
		return []byte{0x1B, '[', '3', '~'}, true
	}
	return nil, false
}

func (f *ebitenFrontend) handleClipboardPaste() {
	f.clipboardOnce.Do(func() {
		f.clipboardOK = clipboard.Init() == nil
	})
	if !f.clipboardOK {
		return
	}
	data := clipboard.Read(clipboard.FmtText)
	if len(data) == 0 {
		return
	}
	f.cfg.uart.PushInput(capPasteText(normalizePasteText(data), PASTE_LIMIT))
}

func (f *ebitenFrontend) Draw(screen *ebiten.Image) {
	frame, w, h := f.cfg.vdp.Frame()
	if w > 0 && h > 0 && len(frame) == w*h*4 {
		if f.screen == nil || f.frameW != w || f.frameH != h {
			f.screen = ebiten.NewImage(w, h)
			f.frameW, f.frameH = w, h
		}
		f.screen.WritePixels(frame)

		op := &ebiten.DrawImageOptions{}
		op.GeoM.Scale(float64(DISPLAY_WIDTH)/float64(w), float64(DISPLAY_HEIGHT)/float64(h))
		op.Filter = ebiten.FilterNearest
		screen.DrawImage(f.screen, op)
	}
	if f.showStatusBar {
		f.drawStatusBar(screen)
	}
}

func (f *ebitenFrontend) drawStatusBar(screen *ebiten.Image) {
	y := DISPLAY_HEIGHT - statusBarHeight
	ebitenutil.DrawRect(screen, 0, float64(y), DISPLAY_WIDTH, statusBarHeight, color.RGBA{0, 0, 0, 180})

	c := color.RGBA{0xC0, 0xC0, 0xC0, 0xFF}
	if f.cfg.vdp.ErrMode() != VDP_ERR_NONE {
		c = color.RGBA{0xFF, 0x60, 0x60, 0xFF}
	}
	text.Draw(screen, statusLine(f.cfg), basicfont.Face7x13, 4, y+13, c)
}

func (f *ebitenFrontend) Layout(_, _ int) (int, int) {
	return DISPLAY_WIDTH, DISPLAY_HEIGHT
}
