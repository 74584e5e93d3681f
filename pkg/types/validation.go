package types

// MaxMessageBytes caps a single inbound WebSocket frame. Larger frames are
// rejected before dispatch.
const MaxMessageBytes = 64 * 1024

var inboundTypes = map[string]bool{
	MessageTypeUserJoin:             true,
	MessageTypeDashboardStateUpdate: true,
	MessageTypeUserActivity:         true,
	MessageTypeAIInteraction:        true,
	MessageTypeCursorMovement:       true,
	MessageTypeRequestCurrentState:  true,
}

var activities = map[string]bool{
	ActivityEditing: true,
	ActivityViewing: true,
	ActivityAIChat:  true,
	ActivityIdle:    true,
}

// IsValidInboundType reports whether t is a client-initiated message type.
func IsValidInboundType(t string) bool {
	return inboundTypes[t]
}

// IsValidActivity reports whether a is a known activity tag.
func IsValidActivity(a string) bool {
	return activities[a]
}

// Validate checks the envelope of an inbound message.
func (m *Message) Validate() error {
	if m.Type == "" {
		return ErrMissingType
	}
	if !IsValidInboundType(m.Type) {
		return ErrUnknownType
	}
	return nil
}
