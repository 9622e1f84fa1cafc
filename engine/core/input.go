package core

type Button int

const (
	BUTTON_LEFT Button = iota
	BUTTON_RIGHT
	BUTTON_MIDDLE
	BUTTON_MAX_BUTTONS
)

// KeyCode values follow the Windows virtual key table, so letters and digits
// equal their ASCII codes.
type KeyCode int

const (
	KEY_BACKSPACE KeyCode = 0x08
	KEY_TAB       KeyCode = 0x09
	KEY_ENTER     KeyCode = 0x0D
	KEY_ESCAPE    KeyCode = 0x1B
	KEY_SPACE     KeyCode = 0x20
	KEY_LEFT      KeyCode = 0x25
	KEY_UP        KeyCode = 0x26
	KEY_RIGHT     KeyCode = 0x27
	KEY_DOWN      KeyCode = 0x28

	KEY_0 KeyCode = 0x30
	KEY_9 KeyCode = 0x39

	KEY_A KeyCode = 0x41
	KEY_D KeyCode = 0x44
	KEY_H KeyCode = 0x48
	KEY_R KeyCode = 0x52
	KEY_S KeyCode = 0x53
	KEY_W KeyCode = 0x57
	KEY_Z KeyCode = 0x5A

	KEY_F1  KeyCode = 0x70
	KEY_F2  KeyCode = 0x71
	KEY_F12 KeyCode = 0x7B

	KEY_LSHIFT   KeyCode = 0xA0
	KEY_RSHIFT   KeyCode = 0xA1
	KEY_LCONTROL KeyCode = 0xA2
	KEY_RCONTROL KeyCode = 0xA3

	KEYS_MAX_KEYS KeyCode = 0x100
)

type MouseState struct {
	X, Y    float64
	Buttons [BUTTON_MAX_BUTTONS]bool
}

type KeyboardState struct {
	Keys [KEYS_MAX_KEYS]bool
}

// Input holds the current and previous keyboard and mouse states. Platform
// callbacks write the current state; Update rolls it into the previous one
// once per frame.
type Input struct {
	KeyboardCurrent  KeyboardState
	KeyboardPrevious KeyboardState
	MouseCurrent     MouseState
	MousePrevious    MouseState
	// Wheel accumulates scroll offsets since the last Update.
	Wheel float64
}

func NewInput() *Input {
	return &Input{}
}

func validKey(key KeyCode) bool {
	return key >= 0 && key < KEYS_MAX_KEYS
}

func validButton(button Button) bool {
	return button >= 0 && button < BUTTON_MAX_BUTTONS
}

// Update copies the current states to the previous ones. Call it after all
// input for the frame has been consumed.
func (in *Input) Update() {
	in.KeyboardPrevious = in.KeyboardCurrent
	in.MousePrevious = in.MouseCurrent
	in.Wheel = 0
}

func (in *Input) IsKeyDown(key KeyCode) bool {
	return validKey(key) && in.KeyboardCurrent.Keys[key]
}

func (in *Input) IsKeyUp(key KeyCode) bool {
	return !in.IsKeyDown(key)
}

func (in *Input) WasKeyDown(key KeyCode) bool {
	return validKey(key) && in.KeyboardPrevious.Keys[key]
}

// KeyPressed reports a key that went down since the last Update.
func (in *Input) KeyPressed(key KeyCode) bool {
	return in.IsKeyDown(key) && !in.WasKeyDown(key)
}

// ProcessKey records a key transition and reports whether the state changed.
func (in *Input) ProcessKey(key KeyCode, pressed bool) bool {
	if !validKey(key) || in.KeyboardCurrent.Keys[key] == pressed {
		return false
	}
	in.KeyboardCurrent.Keys[key] = pressed
	return true
}

func (in *Input) IsButtonDown(button Button) bool {
	return validButton(button) && in.MouseCurrent.Buttons[button]
}

func (in *Input) WasButtonDown(button Button) bool {
	return validButton(button) && in.MousePrevious.Buttons[button]
}

func (in *Input) ProcessButton(button Button, pressed bool) bool {
	if !validButton(button) || in.MouseCurrent.Buttons[button] == pressed {
		return false
	}
	in.MouseCurrent.Buttons[button] = pressed
	return true
}

func (in *Input) ProcessMouseMove(x, y float64) {
	in.MouseCurrent.X, in.MouseCurrent.Y = x, y
}

func (in *Input) ProcessMouseWheel(delta float64) {
	in.Wheel += delta
}

func (in *Input) MousePosition() (float64, float64) {
	return in.MouseCurrent.X, in.MouseCurrent.Y
}

// MouseDelta is the cursor movement since the last Update.
func (in *Input) MouseDelta() (float64, float64) {
	return in.MouseCurrent.X - in.MousePrevious.X, in.MouseCurrent.Y - in.MousePrevious.Y
}
