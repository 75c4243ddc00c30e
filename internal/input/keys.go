package input

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Key identifies a physical or logical key by name.
// KeyUnknown marks a key the native layer could only report by raw code.
type Key int

const (
	KeyUnknown Key = iota

	// Modifiers and editing
	KeyAlt
	KeyAltGr
	KeyBackspace
	KeyCapsLock
	KeyControlLeft
	KeyControlRight
	KeyDelete
	KeyDownArrow
	KeyEnd
	KeyEscape

	// Function row
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12

	// Navigation
	KeyHome
	KeyLeftArrow
	KeyMetaLeft
	KeyMetaRight
	KeyPageDown
	KeyPageUp
	KeyReturn
	KeyRightArrow
	KeyShiftLeft
	KeyShiftRight
	KeySpace
	KeyTab
	KeyUpArrow
	KeyPrintScreen
	KeyScrollLock
	KeyPause
	KeyNumLock

	// Digit row
	KeyBackQuote
	KeyNum1
	KeyNum2
	KeyNum3
	KeyNum4
	KeyNum5
	KeyNum6
	KeyNum7
	KeyNum8
	KeyNum9
	KeyNum0
	KeyMinus
	KeyEqual

	// Letters and punctuation
	KeyQ
	KeyW
	KeyE
	KeyR
	KeyT
	KeyY
	KeyU
	KeyI
	KeyO
	KeyP
	KeyLeftBracket
	KeyRightBracket
	KeyA
	KeyS
	KeyD
	KeyF
	KeyG
	KeyH
	KeyJ
	KeyK
	KeyL
	KeySemiColon
	KeyQuote
	KeyBackSlash
	KeyIntlBackslash
	KeyZ
	KeyX
	KeyC
	KeyV
	KeyB
	KeyN
	KeyM
	KeyComma
	KeyDot
	KeySlash
	KeyInsert

	// Numpad
	KeyKpReturn
	KeyKpMinus
	KeyKpPlus
	KeyKpMultiply
	KeyKpDivide
	KeyKp0
	KeyKp1
	KeyKp2
	KeyKp3
	KeyKp4
	KeyKp5
	KeyKp6
	KeyKp7
	KeyKp8
	KeyKp9
	KeyKpDelete
	KeyFunction

	keyCount
)

// keyNames holds the wire names, indexed by Key.
var keyNames = [keyCount]string{
	KeyUnknown:       "Unknown",
	KeyAlt:           "Alt",
	KeyAltGr:         "AltGr",
	KeyBackspace:     "Backspace",
	KeyCapsLock:      "CapsLock",
	KeyControlLeft:   "ControlLeft",
	KeyControlRight:  "ControlRight",
	KeyDelete:        "Delete",
	KeyDownArrow:     "DownArrow",
	KeyEnd:           "End",
	KeyEscape:        "Escape",
	KeyF1:            "F1",
	KeyF2:            "F2",
	KeyF3:            "F3",
	KeyF4:            "F4",
	KeyF5:            "F5",
	KeyF6:            "F6",
	KeyF7:            "F7",
	KeyF8:            "F8",
	KeyF9:            "F9",
	KeyF10:           "F10",
	KeyF11:           "F11",
	KeyF12:           "F12",
	KeyHome:          "Home",
	KeyLeftArrow:     "LeftArrow",
	KeyMetaLeft:      "MetaLeft",
	KeyMetaRight:     "MetaRight",
	KeyPageDown:      "PageDown",
	KeyPageUp:        "PageUp",
	KeyReturn:        "Return",
	KeyRightArrow:    "RightArrow",
	KeyShiftLeft:     "ShiftLeft",
	KeyShiftRight:    "ShiftRight",
	KeySpace:         "Space",
	KeyTab:           "Tab",
	KeyUpArrow:       "UpArrow",
	KeyPrintScreen:   "PrintScreen",
	KeyScrollLock:    "ScrollLock",
	KeyPause:         "Pause",
	KeyNumLock:       "NumLock",
	KeyBackQuote:     "BackQuote",
	KeyNum1:          "Num1",
	KeyNum2:          "Num2",
	KeyNum3:          "Num3",
	KeyNum4:          "Num4",
	KeyNum5:          "Num5",
	KeyNum6:          "Num6",
	KeyNum7:          "Num7",
	KeyNum8:          "Num8",
	KeyNum9:          "Num9",
	KeyNum0:          "Num0",
	KeyMinus:         "Minus",
	KeyEqual:         "Equal",
	KeyQ:             "KeyQ",
	KeyW:             "KeyW",
	KeyE:             "KeyE",
	KeyR:             "KeyR",
	KeyT:             "KeyT",
	KeyY:             "KeyY",
	KeyU:             "KeyU",
	KeyI:             "KeyI",
	KeyO:             "KeyO",
	KeyP:             "KeyP",
	KeyLeftBracket:   "LeftBracket",
	KeyRightBracket:  "RightBracket",
	KeyA:             "KeyA",
	KeyS:             "KeyS",
	KeyD:             "KeyD",
	KeyF:             "KeyF",
	KeyG:             "KeyG",
	KeyH:             "KeyH",
	KeyJ:             "KeyJ",
	KeyK:             "KeyK",
	KeyL:             "KeyL",
	KeySemiColon:     "SemiColon",
	KeyQuote:         "Quote",
	KeyBackSlash:     "BackSlash",
	KeyIntlBackslash: "IntlBackslash",
	KeyZ:             "KeyZ",
	KeyX:             "KeyX",
	KeyC:             "KeyC",
	KeyV:             "KeyV",
	KeyB:             "KeyB",
	KeyN:             "KeyN",
	KeyM:             "KeyM",
	KeyComma:         "Comma",
	KeyDot:           "Dot",
	KeySlash:         "Slash",
	KeyInsert:        "Insert",
	KeyKpReturn:      "KpReturn",
	KeyKpMinus:       "KpMinus",
	KeyKpPlus:        "KpPlus",
	KeyKpMultiply:    "KpMultiply",
	KeyKpDivide:      "KpDivide",
	KeyKp0:           "Kp0",
	KeyKp1:           "Kp1",
	KeyKp2:           "Kp2",
	KeyKp3:           "Kp3",
	KeyKp4:           "Kp4",
	KeyKp5:           "Kp5",
	KeyKp6:           "Kp6",
	KeyKp7:           "Kp7",
	KeyKp8:           "Kp8",
	KeyKp9:           "Kp9",
	KeyKpDelete:      "KpDelete",
	KeyFunction:      "Function",
}

var keysByName = func() map[string]Key {
	m := make(map[string]Key, len(keyNames)-1)
	for k := KeyUnknown + 1; k < keyCount; k++ {
		m[keyNames[k]] = k
	}
	return m
}()

// String returns the wire name of the key.
func (k Key) String() string {
	if k < 0 || k >= keyCount {
		return fmt.Sprintf("Key(%d)", int(k))
	}
	return keyNames[k]
}

// LookupKey resolves a wire name to a named key. Matching is case-sensitive.
func LookupKey(name string) (Key, bool) {
	k, ok := keysByName[name]
	return k, ok
}

// Keys returns every named key in table order, excluding KeyUnknown.
func Keys() []Key {
	out := make([]Key, 0, keyCount-1)
	for k := KeyUnknown + 1; k < keyCount; k++ {
		out = append(out, k)
	}
	return out
}

// CodeForm records how a raw code appeared on the wire so that it is
// encoded back in the same form.
type CodeForm uint8

const (
	// FormTagged is the serializer's {"Unknown": n} object.
	FormTagged CodeForm = iota
	// FormNumber is a bare integer.
	FormNumber
	// FormDebug is the debug-printed string "Unknown(n)" the native hook
	// emits for keys outside its name table.
	FormDebug
)

// KeyCode is either a named key or an unrecognized raw OS code.
type KeyCode struct {
	Key Key
	// Code is the raw OS key code; only meaningful when Key is KeyUnknown.
	Code uint32
	// Form is the wire form of Code; only meaningful when Key is KeyUnknown.
	Form CodeForm
}

// NamedKey builds a KeyCode for a recognized key.
func NamedKey(k Key) KeyCode { return KeyCode{Key: k} }

// UnknownKey builds a KeyCode carrying a raw OS code in the {"Unknown": n} form.
func UnknownKey(code uint32) KeyCode { return KeyCode{Key: KeyUnknown, Code: code} }

// UnknownKeyAs is UnknownKey with an explicit wire form.
func UnknownKeyAs(code uint32, form CodeForm) KeyCode {
	return KeyCode{Key: KeyUnknown, Code: code, Form: form}
}

// IsUnknown reports whether the key could only be identified by raw code.
func (c KeyCode) IsUnknown() bool { return c.Key == KeyUnknown }

func (c KeyCode) String() string {
	if c.IsUnknown() {
		return fmt.Sprintf("Unknown(%d)", c.Code)
	}
	return c.Key.String()
}

// MarshalJSON encodes named keys as their name and unknown keys in the form
// they were decoded from.
func (c KeyCode) MarshalJSON() ([]byte, error) {
	if c.IsUnknown() {
		return encodeRawCode(c.Code, c.Form)
	}
	return json.Marshal(c.Key.String())
}

// Button identifies a mouse button.
type Button int

const (
	ButtonUnknown Button = iota
	ButtonLeft
	ButtonRight
	ButtonMiddle
)

var buttonsByName = map[string]Button{
	"Left":   ButtonLeft,
	"Right":  ButtonRight,
	"Middle": ButtonMiddle,
}

func (b Button) String() string {
	switch b {
	case ButtonUnknown:
		return "Unknown"
	case ButtonLeft:
		return "Left"
	case ButtonRight:
		return "Right"
	case ButtonMiddle:
		return "Middle"
	}
	return fmt.Sprintf("Button(%d)", int(b))
}

// LookupButton resolves a wire name to a named button.
func LookupButton(name string) (Button, bool) {
	b, ok := buttonsByName[name]
	return b, ok
}

// ButtonCode is either a named button or an unrecognized raw OS code.
type ButtonCode struct {
	Button Button
	// Code is the raw OS button code; only meaningful when Button is ButtonUnknown.
	Code uint32
	Form CodeForm
}

// NamedButton builds a ButtonCode for a recognized button.
func NamedButton(b Button) ButtonCode { return ButtonCode{Button: b} }

// UnknownButton builds a ButtonCode carrying a raw OS code in the {"Unknown": n} form.
func UnknownButton(code uint32) ButtonCode { return ButtonCode{Button: ButtonUnknown, Code: code} }

// UnknownButtonAs is UnknownButton with an explicit wire form.
func UnknownButtonAs(code uint32, form CodeForm) ButtonCode {
	return ButtonCode{Button: ButtonUnknown, Code: code, Form: form}
}

// IsUnknown reports whether the button could only be identified by raw code.
func (c ButtonCode) IsUnknown() bool { return c.Button == ButtonUnknown }

func (c ButtonCode) String() string {
	if c.IsUnknown() {
		return fmt.Sprintf("Unknown(%d)", c.Code)
	}
	return c.Button.String()
}

// MarshalJSON encodes named buttons as their name and unknown buttons in the
// form they were decoded from.
func (c ButtonCode) MarshalJSON() ([]byte, error) {
	if c.IsUnknown() {
		return encodeRawCode(c.Code, c.Form)
	}
	return json.Marshal(c.Button.String())
}

// unknownCode is the native serializer's form for raw codes.
type unknownCode struct {
	Unknown uint32 `json:"Unknown"`
}

func encodeRawCode(code uint32, form CodeForm) ([]byte, error) {
	switch form {
	case FormNumber:
		return json.Marshal(code)
	case FormDebug:
		return json.Marshal(debugCode(code))
	}
	return json.Marshal(unknownCode{Unknown: code})
}

func debugCode(code uint32) string {
	return "Unknown(" + strconv.FormatUint(uint64(code), 10) + ")"
}

// parseDebugCode reads "Unknown(n)". Signs, leading zeros and spaces are
// rejected so that the string re-encodes byte for byte.
func parseDebugCode(s string) (uint32, bool) {
	inner, ok := strings.CutPrefix(s, "Unknown(")
	if !ok {
		return 0, false
	}
	inner, ok = strings.CutSuffix(inner, ")")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(inner, 10, 32)
	if err != nil || strconv.FormatUint(n, 10) != inner {
		return 0, false
	}
	return uint32(n), true
}
