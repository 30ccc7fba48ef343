// Package panel is the interactive terminal control surface used by
// overlayctl.
package panel

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/gogpu/overlay"
	"github.com/gogpu/overlay/rpc"
)

// Controller is the subset of the control client the panel drives.
type Controller interface {
	Toggle(ctx context.Context) (overlay.State, error)
	ChangeShader(ctx context.Context, effectID string) (overlay.State, error)
}

var (
	styleTitle  = tcell.StyleDefault.Bold(true)
	styleOn     = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleOff    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleCursor = tcell.StyleDefault.Reverse(true)
	styleError  = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleHelp   = tcell.StyleDefault.Dim(true)
)

const helpLine = "space: toggle  enter: select  j/k: move  q: quit"

// stateEvent carries a pushed state into the event loop.
type stateEvent struct{ st overlay.State }

type quitEvent struct{}

// Panel renders the overlay state and effect list and maps keys to
// control requests.
type Panel struct {
	screen  tcell.Screen
	ctl     Controller
	effects []rpc.EffectInfo

	state  overlay.State
	cursor int
	status string
}

// New creates a panel on an initialized screen. The cursor starts on the
// current effect.
func New(screen tcell.Screen, ctl Controller, effects []rpc.EffectInfo, st overlay.State) *Panel {
	p := &Panel{screen: screen, ctl: ctl, effects: effects, state: st}
	for i, e := range effects {
		if e.ID == st.EffectID {
			p.cursor = i
		}
	}
	return p
}

// State returns the last known state.
func (p *Panel) State() overlay.State { return p.state }

// Cursor returns the index of the highlighted effect.
func (p *Panel) Cursor() int { return p.cursor }

// Run draws and handles events until the user quits, ctx is done, or the
// screen is finalized. States received on updates replace the displayed
// state.
func (p *Panel) Run(ctx context.Context, updates <-chan overlay.State) error {
	go func() {
		for {
			select {
			case st, ok := <-updates:
				if !ok {
					return
				}
				p.screen.PostEvent(tcell.NewEventInterrupt(stateEvent{st}))
			case <-ctx.Done():
				p.screen.PostEvent(tcell.NewEventInterrupt(quitEvent{}))
				return
			}
		}
	}()

	p.Draw()
	for {
		ev := p.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return nil
		case *tcell.EventResize:
			p.screen.Sync()
		case *tcell.EventInterrupt:
			switch data := ev.Data().(type) {
			case stateEvent:
				p.state = data.st
			case quitEvent:
				return ctx.Err()
			}
		case *tcell.EventKey:
			if p.HandleKey(ctx, ev) {
				return nil
			}
		}
		p.Draw()
	}
}

// HandleKey applies a key press and reports whether the panel should quit.
func (p *Panel) HandleKey(ctx context.Context, ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyCtrlC, tcell.KeyEscape:
		return true
	case tcell.KeyUp:
		p.move(-1)
	case tcell.KeyDown:
		p.move(1)
	case tcell.KeyEnter:
		p.selectEffect(ctx)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return true
		case ' ', 't':
			p.apply(p.ctl.Toggle(ctx))
		case 'k':
			p.move(-1)
		case 'j':
			p.move(1)
		}
	}
	return false
}

func (p *Panel) move(delta int) {
	if len(p.effects) == 0 {
		return
	}
	p.cursor = (p.cursor + delta + len(p.effects)) % len(p.effects)
}

func (p *Panel) selectEffect(ctx context.Context) {
	if len(p.effects) == 0 {
		return
	}
	p.apply(p.ctl.ChangeShader(ctx, p.effects[p.cursor].ID))
}

func (p *Panel) apply(st overlay.State, err error) {
	if err != nil {
		p.status = err.Error()
		return
	}
	p.status = ""
	p.state = st
}

// Draw renders the whole panel.
func (p *Panel) Draw() {
	s := p.screen
	s.Clear()
	_, h := s.Size()

	put(s, 1, 0, "overlay", styleTitle)
	if p.state.Enabled {
		put(s, 1, 1, "state:  on", styleOn)
	} else {
		put(s, 1, 1, "state:  off", styleOff)
	}
	put(s, 1, 2, "effect: "+p.state.EffectID, tcell.StyleDefault)

	for i, e := range p.effects {
		mark := ' '
		if e.ID == p.state.EffectID {
			mark = '*'
		}
		style := tcell.StyleDefault
		if i == p.cursor {
			style = styleCursor
		}
		put(s, 1, 4+i, fmt.Sprintf("%c %-10s %s", mark, e.ID, e.Name), style)
	}

	if p.status != "" {
		put(s, 1, h-2, p.status, styleError)
	}
	put(s, 1, h-1, helpLine, styleHelp)
	s.Show()
}

func put(s tcell.Screen, x, y int, text string, style tcell.Style) {
	for _, r := range text {
		s.SetContent(x, y, r, nil, style)
		x++
	}
}
