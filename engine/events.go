package engine

// EventType represents the type of event in the engine
type EventType string

// Event type constants
const (
	// EventFormat is fired by the Lua side on BufWritePre and by the
	// :NvfmtFormat command.
	EventFormat EventType = "format"
	// EventConfigReload drops all cached formatter resolutions, forcing the
	// next format to re-walk for .nvfmt.yaml.
	EventConfigReload EventType = "config_reload"
)

// Event represents an event in the engine
type Event struct {
	Type EventType
	Data any
}

var eventTypeMap map[string]EventType

func init() {
	eventTypeMap = buildEventTypeMap()
}

func buildEventTypeMap() map[string]EventType {
	eventMap := make(map[string]EventType)

	allEventTypes := []EventType{
		EventFormat,
		EventConfigReload,
	}

	for _, eventType := range allEventTypes {
		eventMap[string(eventType)] = eventType
	}

	return eventMap
}

// EventTypeFromString converts a string to EventType
func EventTypeFromString(s string) EventType {
	if eventType, exists := eventTypeMap[s]; exists {
		return eventType
	}
	return ""
}
