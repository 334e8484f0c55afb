// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gogpu/gg"

	"github.com/aplane-algo/kestrel/internal/util"
)

// keyHold is how long a key counts as held after the terminal reports it.
// Terminals send repeats but no release events.
const keyHold = 150 * time.Millisecond

var (
	termTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	termStatusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Term presents the canvas in the terminal as half-block cells, two canvas
// rows per text row, and feeds key presses back as input.
type Term struct{}

// NewTerm creates the terminal backend.
func NewTerm() *Term {
	return &Term{}
}

// Name returns "term".
func (t *Term) Name() string { return "term" }

// CreateWindow starts a full-screen bubbletea program on the terminal.
func (t *Term) CreateWindow(s Settings) (Window, error) {
	if !util.IsTerminalStdout() {
		return nil, errors.New("term backend needs an interactive terminal")
	}
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("invalid window size %dx%d", s.Width, s.Height)
	}

	cols, rows := util.TerminalSize()
	w := &termWindow{
		settings: s,
		dc:       gg.NewContext(s.Width, s.Height),
		step:     s.FrameDuration(),
		held:     make(map[string]time.Time),
		cols:     cols,
		rows:     rows,
		done:     make(chan struct{}),
		start:    time.Now(),
	}
	w.last = w.start

	w.prog = tea.NewProgram(termModel{win: w}, tea.WithAltScreen())
	go func() {
		defer close(w.done)
		if _, err := w.prog.Run(); err != nil {
			util.Logger.Error("terminal window failed", "error", err)
		}
		w.mu.Lock()
		w.quit = true
		w.mu.Unlock()
	}()
	return w, nil
}

// termWindow is shared between the driver goroutine and the bubbletea
// program goroutine; mu guards the input and size fields.
type termWindow struct {
	settings Settings
	dc       *gg.Context
	step     time.Duration
	prog     *tea.Program
	done     chan struct{}

	start  time.Time
	last   time.Time
	closed bool
	frames uint64

	mu   sync.Mutex
	held map[string]time.Time
	quit bool
	cols int
	rows int
}

func (w *termWindow) PollFrame() FrameInput {
	// Frame pacing: wait out the rest of this frame's interval.
	if wait := w.step - time.Since(w.last); wait > 0 {
		time.Sleep(wait)
	}
	now := time.Now()
	delta := now.Sub(w.last)
	w.last = now
	w.frames++

	w.mu.Lock()
	defer w.mu.Unlock()
	keys := make([]string, 0, len(w.held))
	for k, at := range w.held {
		if now.Sub(at) > keyHold {
			delete(w.held, k)
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return FrameInput{
		Width:          w.settings.Width,
		Height:         w.settings.Height,
		Delta:          delta,
		Elapsed:        now.Sub(w.start),
		Keys:           keys,
		CloseRequested: w.quit || w.closed,
	}
}

func (w *termWindow) Render(scene *Scene) error {
	if w.closed {
		return ErrWindowClosed
	}
	scene.Draw(w.dc)
	return nil
}

func (w *termWindow) Present() error {
	if w.closed {
		return ErrWindowClosed
	}
	w.mu.Lock()
	cols, rows := w.cols, w.rows
	w.mu.Unlock()

	status := fmt.Sprintf("frame %d  %s", w.frames, time.Since(w.start).Truncate(time.Second))
	header := termTitleStyle.Render(w.settings.Title) + " " + termStatusStyle.Render(status)
	body := HalfBlocks(w.dc.Image(), cols, rows-1)
	w.prog.Send(frameMsg(header + "\n" + body))
	return nil
}

func (w *termWindow) Canvas() *gg.Context {
	return w.dc
}

func (w *termWindow) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.prog.Quit()
	select {
	case <-w.done:
	case <-time.After(time.Second):
	}
	return w.dc.Close()
}

func (w *termWindow) keyPressed(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.held[key] = time.Now()
}

func (w *termWindow) resize(cols, rows int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cols, w.rows = cols, rows
}

func (w *termWindow) requestClose() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quit = true
}

// frameMsg carries a rendered frame into the bubbletea program.
type frameMsg string

type termModel struct {
	win  *termWindow
	view string
}

func (m termModel) Init() tea.Cmd {
	return nil
}

func (m termModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.win.requestClose()
			return m, nil
		}
		m.win.keyPressed(keyName(msg))
	case tea.WindowSizeMsg:
		m.win.resize(msg.Width, msg.Height)
	case frameMsg:
		m.view = string(msg)
	}
	return m, nil
}

func (m termModel) View() string {
	return m.view
}

// keyName maps terminal key events onto the names scripts test with
// input.down: single characters, "space", "up", "down", "left", "right",
// "enter", "tab".
func keyName(msg tea.KeyMsg) string {
	switch msg.Type {
	case tea.KeySpace:
		return "space"
	case tea.KeyUp:
		return "up"
	case tea.KeyDown:
		return "down"
	case tea.KeyLeft:
		return "left"
	case tea.KeyRight:
		return "right"
	case tea.KeyEnter:
		return "enter"
	case tea.KeyTab:
		return "tab"
	}
	return strings.ToLower(msg.String())
}

// HalfBlocks renders img into at most cols x rows text cells using the
// upper half block, sampling two pixel rows per cell with nearest-neighbour
// scaling that keeps the aspect ratio.
func HalfBlocks(img image.Image, cols, rows int) string {
	b := img.Bounds()
	if cols <= 0 || rows <= 0 || b.Dx() == 0 || b.Dy() == 0 {
		return ""
	}

	scale := float64(b.Dx()) / float64(cols)
	if s := float64(b.Dy()) / float64(rows*2); s > scale {
		scale = s
	}
	if scale < 1 {
		scale = 1
	}
	outW := int(float64(b.Dx()) / scale)
	outH := int(float64(b.Dy()) / scale / 2)

	var sb strings.Builder
	for row := 0; row < outH; row++ {
		for col := 0; col < outW; col++ {
			x := b.Min.X + int(float64(col)*scale)
			top := img.At(x, b.Min.Y+int(float64(row*2)*scale))
			bottom := img.At(x, b.Min.Y+int(float64(row*2+1)*scale))
			sb.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(hexColor(top))).
				Background(lipgloss.Color(hexColor(bottom))).
				Render("▀"))
		}
		if row < outH-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func hexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
