package redisstream

// Stream entry fields.
const (
	fieldID         = "id"
	fieldName       = "name"
	fieldPayload    = "payload"    // raw bytes, no base64
	fieldProducedAt = "producedAt" // unix nanoseconds
	fieldMetaPrefix = "meta:"

	// dead-letter entries
	fieldOrigTopic = "orig_topic"
	fieldOrigID    = "orig_id"
	fieldError     = "error"
)
