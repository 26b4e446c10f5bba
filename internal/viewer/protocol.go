package viewer

import (
	"github.com/masskarem1/PHYS.101-Ebook/internal/aiproxy"
	"github.com/masskarem1/PHYS.101-Ebook/internal/navigator"
	"github.com/masskarem1/PHYS.101-Ebook/internal/search"
)

// Event types sent by the browser.
const (
	EvOpen         = "open"
	EvGoTo         = "goto"
	EvNext         = "next"
	EvPrev         = "prev"
	EvJump         = "jump"
	EvChapter      = "chapter"
	EvKey          = "key"
	EvResize       = "resize"
	EvMode         = "mode"
	EvTool         = "tool"
	EvColor        = "color"
	EvBrush        = "brush"
	EvClear        = "clear"
	EvPointerDown  = "pointer_down"
	EvPointerMove  = "pointer_move"
	EvPointerUp    = "pointer_up"
	EvPointerLeave = "pointer_leave"
	EvPinchStart   = "pinch_start"
	EvPinchMove    = "pinch_move"
	EvPinchEnd     = "pinch_end"
	EvSearch       = "search"
	EvAsk          = "ask"
	EvTranslate    = "translate"
	EvState        = "state"
)

// Message types sent to the browser.
const (
	MsgPage      = "page"
	MsgMedia     = "media"
	MsgOverlay   = "overlay"
	MsgTransform = "transform"
	MsgSettings  = "settings"
	MsgDigits    = "digits"
	MsgSearch    = "search"
	MsgAI        = "ai"
	MsgAIBusy    = "ai_busy"
	MsgError     = "error"
)

// Event is one input from the browser. Coordinates are in the page box's
// untransformed pixel space.
type Event struct {
	Type   string  `json:"type"`
	Page   int     `json:"page,omitempty"`
	Input  string  `json:"input,omitempty"`
	Index  int     `json:"index,omitempty"`
	Key    string  `json:"key,omitempty"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	Factor float64 `json:"factor,omitempty"`
	On     bool    `json:"on,omitempty"`
	Tool   string  `json:"tool,omitempty"`
	Color  string  `json:"color,omitempty"`
	Size   float64 `json:"size,omitempty"`
	Query  string  `json:"query,omitempty"`
	Mode   string  `json:"mode,omitempty"`
	Action string  `json:"action,omitempty"`
	Text   string  `json:"text,omitempty"`
}

// TransformState is the viewport transform plus its CSS rendering.
type TransformState struct {
	Scale float64 `json:"scale"`
	PanX  float64 `json:"pan_x"`
	PanY  float64 `json:"pan_y"`
	CSS   string  `json:"css"`
}

// SettingsState is the annotation tool configuration as shown in the UI.
type SettingsState struct {
	Mode      bool    `json:"mode"`
	Tool      string  `json:"tool"`
	Color     string  `json:"color"`
	BrushSize float64 `json:"brush_size"`
}

// Message is one update for the browser.
type Message struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	Page      *navigator.Shown `json:"page,omitempty"`
	Indicator string           `json:"indicator,omitempty"`
	Media     *navigator.Media `json:"media,omitempty"`
	Overlay   string           `json:"overlay,omitempty"`
	Transform *TransformState  `json:"transform,omitempty"`
	Settings  *SettingsState   `json:"settings,omitempty"`
	Digits    string           `json:"digits,omitempty"`
	Query     string           `json:"query,omitempty"`
	Results   []search.Result  `json:"results,omitempty"`
	Reply     *aiproxy.Reply   `json:"reply,omitempty"`
	Error     string           `json:"error,omitempty"`
}
