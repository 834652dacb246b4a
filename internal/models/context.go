package models

// Mode selects the onboarding path: a simulated demo machine or a live one.
type Mode string

const (
	ModeDemo Mode = "demo"
	ModeLive Mode = "live"
)

// MQTTConnection holds the broker parameters handed to the user when a live
// device is spawned. Purely presentational in the demo; nothing connects.
type MQTTConnection struct {
	BrokerEndpoint string `json:"broker_endpoint"`
	BrokerPort     int    `json:"broker_port"`
	Topic          string `json:"topic"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	SampleSchema   string `json:"sample_schema"`
}

// FlowContext carries the data accumulated across a conversation flow.
// Known fields are typed; Extra is the escape hatch for values that are
// genuinely optional across all branches.
type FlowContext struct {
	Email         string          `json:"email,omitempty"`
	Name          string          `json:"name,omitempty"`
	OTP           string          `json:"otp,omitempty"`
	AccountExists bool            `json:"account_exists,omitempty"`
	Verified      bool            `json:"verified,omitempty"`
	ProfileKey    string          `json:"profile_key,omitempty"`
	Mode          Mode            `json:"mode,omitempty"`
	DeviceID      string          `json:"device_id,omitempty"`
	MQTT          *MQTTConnection `json:"mqtt,omitempty"`
	InvitedUsers  []string        `json:"invited_users,omitempty"`
	Notifications bool            `json:"notifications,omitempty"`
	TicketID      string          `json:"ticket_id,omitempty"`
	SessionID     string          `json:"session_id,omitempty"`
	TransferredTo string          `json:"transferred_to,omitempty"`
	ResetToken    string          `json:"reset_token,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// NewFlowContext returns an empty context ready for mutation.
func NewFlowContext() *FlowContext {
	return &FlowContext{}
}

// Clone returns a deep copy. The engine runs actions against a clone and
// commits it only when the action completes, so a panicking or erroring
// action never corrupts the committed context.
func (c *FlowContext) Clone() *FlowContext {
	if c == nil {
		return NewFlowContext()
	}
	out := *c
	if c.MQTT != nil {
		mqtt := *c.MQTT
		out.MQTT = &mqtt
	}
	if c.InvitedUsers != nil {
		out.InvitedUsers = append([]string(nil), c.InvitedUsers...)
	}
	if c.Extra != nil {
		out.Extra = make(map[string]string, len(c.Extra))
		for k, v := range c.Extra {
			out.Extra[k] = v
		}
	}
	return &out
}

// SetExtra writes an open-ended key, allocating the map on first use.
func (c *FlowContext) SetExtra(key, value string) {
	if c.Extra == nil {
		c.Extra = make(map[string]string)
	}
	c.Extra[key] = value
}

// GetExtra reads an open-ended key, tolerating a nil map.
func (c *FlowContext) GetExtra(key string) string {
	if c.Extra == nil {
		return ""
	}
	return c.Extra[key]
}
