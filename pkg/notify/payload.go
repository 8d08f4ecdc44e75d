package notify

// Payload is the notification content handed to the multicast channel.
// Ephemeral; constructed per dispatch and never persisted.
type Payload struct {
	Title string
	Body  string
	Data  map[string]string
}
