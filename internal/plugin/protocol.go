// Package plugin speaks the Stream Deck / Stream Dock plugin protocol: JSON
// events over a local WebSocket.
package plugin

import (
	"encoding/json"

	"github.com/phinze/mixdeck/internal/action"
)

// Inbound event names.
const (
	EventWillAppear                    = "willAppear"
	EventWillDisappear                 = "willDisappear"
	EventDidReceiveSettings            = "didReceiveSettings"
	EventDidReceiveGlobalSettings      = "didReceiveGlobalSettings"
	EventKeyDown                       = "keyDown"
	EventKeyUp                         = "keyUp"
	EventDialDown                      = "dialDown"
	EventDialUp                        = "dialUp"
	EventDialRotate                    = "dialRotate"
	EventPropertyInspectorDidAppear    = "propertyInspectorDidAppear"
	EventPropertyInspectorDidDisappear = "propertyInspectorDidDisappear"
	EventSendToPlugin                  = "sendToPlugin"
	EventTitleParametersDidChange      = "titleParametersDidChange"
	EventSystemDidWakeUp               = "systemDidWakeUp"
	EventDeviceDidConnect              = "deviceDidConnect"
	EventDeviceDidDisconnect           = "deviceDidDisconnect"
	EventApplicationDidLaunch          = "applicationDidLaunch"
	EventApplicationDidTerminate       = "applicationDidTerminate"
)

// Outbound event names.
const (
	EventSetImage                = "setImage"
	EventSetTitle                = "setTitle"
	EventSendToPropertyInspector = "sendToPropertyInspector"
	EventGetGlobalSettings       = "getGlobalSettings"
	EventSetGlobalSettings       = "setGlobalSettings"
	EventLogMessage              = "logMessage"
)

// Message is an event received from the host.
type Message struct {
	Event   string          `json:"event"`
	Action  string          `json:"action,omitempty"`
	Context string          `json:"context,omitempty"`
	Device  string          `json:"device,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// settingsPayload is the payload of willAppear and didReceiveSettings.
type settingsPayload struct {
	Settings action.Settings `json:"settings"`
}

type dialPayload struct {
	Ticks int `json:"ticks"`
}

// outbound is an event sent to the host.
type outbound struct {
	Event   string `json:"event"`
	UUID    string `json:"uuid,omitempty"`
	Action  string `json:"action,omitempty"`
	Context string `json:"context,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

type imagePayload struct {
	Target int    `json:"target"`
	Image  string `json:"image"`
}

type titlePayload struct {
	Title  string `json:"title"`
	Target int    `json:"target"`
}

type logPayload struct {
	Message string `json:"message"`
}

// inputKinds maps input events onto action input kinds.
var inputKinds = map[string]action.InputKind{
	EventKeyDown:    action.KeyDown,
	EventKeyUp:      action.KeyUp,
	EventDialDown:   action.DialDown,
	EventDialUp:     action.DialUp,
	EventDialRotate: action.DialRotate,
}

// decodeSettings extracts payload.settings, tolerating an absent payload.
func decodeSettings(raw json.RawMessage) (action.Settings, error) {
	var p settingsPayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
	}
	if p.Settings == nil {
		p.Settings = action.Settings{}
	}
	return p.Settings, nil
}

// decodeObject decodes a payload that is a plain JSON object.
func decodeObject(raw json.RawMessage) (action.Settings, error) {
	out := action.Settings{}
	if len(raw) == 0 || string(raw) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
