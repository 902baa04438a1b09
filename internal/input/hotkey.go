// Package input toggles listening from a global keyboard shortcut.
package input

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.design/x/hotkey"
)

// Toggler is told the new state every time the hotkey is pressed
type Toggler func(ctx context.Context, active bool)

// HotkeyManager registers one global hotkey and flips a listening flag on
// every key press
type HotkeyManager struct {
	mu       sync.Mutex
	hk       *hotkey.Hotkey
	active   bool
	onToggle Toggler
	log      *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewHotkeyManager creates a manager. active is the initial state, so the
// first press turns it the other way.
func NewHotkeyManager(active bool, onToggle Toggler, log *slog.Logger) *HotkeyManager {
	if log == nil {
		log = slog.Default()
	}
	return &HotkeyManager{
		active:   active,
		onToggle: onToggle,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start registers combo ("ctrl+shift+space") and handles presses until ctx
// is done or Stop is called.
func (h *HotkeyManager) Start(ctx context.Context, combo string) error {
	mods, key, err := parseHotkey(combo)
	if err != nil {
		return fmt.Errorf("invalid hotkey: %w", err)
	}

	h.hk = hotkey.New(mods, key)
	if err := h.hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey %q: %w", combo, err)
	}
	h.log.Info("hotkey registered", "keys", combo)

	ctx, h.cancel = context.WithCancel(ctx)

	go func() {
		defer close(h.done)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-h.hk.Keydown():
				if !ok {
					return
				}
				h.toggle(ctx)
			}
		}
	}()

	return nil
}

func (h *HotkeyManager) toggle(ctx context.Context) {
	h.mu.Lock()
	h.active = !h.active
	active := h.active
	h.mu.Unlock()

	h.log.Debug("hotkey pressed", "active", active)
	if h.onToggle != nil {
		h.onToggle(ctx, active)
	}
}

// Stop unregisters the hotkey
func (h *HotkeyManager) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	if h.hk != nil {
		if err := h.hk.Unregister(); err != nil {
			h.log.Debug("hotkey unregister failed", "error", err)
		}
	}
	select {
	case <-h.done:
	case <-time.After(100 * time.Millisecond):
	}
}

// Active returns the current state
func (h *HotkeyManager) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Set overrides the state without calling the toggler, for when listening
// is started or stopped elsewhere.
func (h *HotkeyManager) Set(active bool) {
	h.mu.Lock()
	h.active = active
	h.mu.Unlock()
}

var keys = map[string]hotkey.Key{
	"space": hotkey.KeySpace, "return": hotkey.KeyReturn, "enter": hotkey.KeyReturn,
	"tab": hotkey.KeyTab, "escape": hotkey.KeyEscape, "esc": hotkey.KeyEscape,

	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD, "e": hotkey.KeyE,
	"f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH, "i": hotkey.KeyI, "j": hotkey.KeyJ,
	"k": hotkey.KeyK, "l": hotkey.KeyL, "m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO,
	"p": hotkey.KeyP, "q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX, "y": hotkey.KeyY,
	"z": hotkey.KeyZ,

	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3, "4": hotkey.Key4,
	"5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7, "8": hotkey.Key8, "9": hotkey.Key9,

	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}

func modifier(name string) (hotkey.Modifier, bool) {
	switch name {
	case "ctrl", "control":
		return hotkey.ModCtrl, true
	case "shift":
		return hotkey.ModShift, true
	case "alt", "option":
		return modAlt(), true
	case "cmd", "command", "super", "win":
		return modSuper(), true
	}
	return 0, false
}

// parseHotkey parses "ctrl+shift+space" into modifiers and exactly one key
func parseHotkey(s string) ([]hotkey.Modifier, hotkey.Key, error) {
	if strings.TrimSpace(s) == "" {
		return nil, 0, fmt.Errorf("empty hotkey string")
	}

	var (
		mods     []hotkey.Modifier
		key      hotkey.Key
		keyFound bool
	)
	for _, part := range strings.Split(strings.ToLower(s), "+") {
		part = strings.TrimSpace(part)
		if mod, ok := modifier(part); ok {
			mods = append(mods, mod)
			continue
		}
		k, ok := keys[part]
		if !ok {
			return nil, 0, fmt.Errorf("unknown key: %q", part)
		}
		if keyFound {
			return nil, 0, fmt.Errorf("multiple keys specified")
		}
		key, keyFound = k, true
	}
	if !keyFound {
		return nil, 0, fmt.Errorf("no key specified")
	}
	return mods, key, nil
}
