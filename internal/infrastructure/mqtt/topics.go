package mqtt

import "fmt"

// TopicPrefix is the root of every medminder topic.
const TopicPrefix = "medminder"

// Topics provides builders for medminder MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.State("home", "aspirin") // "medminder/state/home/aspirin"
type Topics struct{}

// =============================================================================
// Outbound
// =============================================================================

// Notify is where user-facing notifications are published.
//
// Example: medminder/notify
func (Topics) Notify() string {
	return TopicPrefix + "/notify"
}

// Event returns the topic for a state-change event type.
//
// Example: medminder/event/medication_updated
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// State returns the retained state topic of one medication.
//
// Example: medminder/state/home/aspirin
func (Topics) State(entryID, medicationID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, entryID, medicationID)
}

// SystemStatus carries the retained online/offline status and the LWT.
//
// Example: medminder/system/status
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// =============================================================================
// Inbound
// =============================================================================

// Service returns the topic for an inbound service call.
//
// Example: medminder/service/record_dose
func (Topics) Service(name string) string {
	return fmt.Sprintf("%s/service/%s", TopicPrefix, name)
}

// ServiceRecordDose is the record_dose service topic.
func (t Topics) ServiceRecordDose() string {
	return t.Service("record_dose")
}

// ServiceUpdateInventory is the update_inventory service topic.
func (t Topics) ServiceUpdateInventory() string {
	return t.Service("update_inventory")
}

// TagScanned is where NFC readers announce scanned tags.
//
// Example: medminder/event/tag_scanned
func (t Topics) TagScanned() string {
	return t.Event("tag_scanned")
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllStates matches every retained medication state.
//
// Pattern: medminder/state/+/+
func (Topics) AllStates() string {
	return TopicPrefix + "/state/+/+"
}

// AllEvents matches every event topic.
//
// Pattern: medminder/event/+
func (Topics) AllEvents() string {
	return TopicPrefix + "/event/+"
}

// AllTopics matches all medminder traffic.
//
// Pattern: medminder/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
