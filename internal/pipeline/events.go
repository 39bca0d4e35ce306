package pipeline

import (
	"encoding/json"
	"log"
	"time"
)

// logEvent writes one structured JSON line for a pipeline event.
func logEvent(kind Kind, instance, eventType string, data map[string]interface{}) {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = kind.String()
	data["event_type"] = eventType
	data["instance"] = instance

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[%s] Failed to marshal log event: %v", kind, err)
		return
	}

	log.Println(string(jsonData))
}
