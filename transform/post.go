package transform

import (
	"encoding/json"
	"strings"
	"time"
)

// DestinationMetadataKey is the metadata key under which format stages record
// the resolved destination of a message.
const DestinationMetadataKey = "destination"

// encodePost builds the chat-style poke document the sink expects: a single
// post with an author, a sender-side timestamp, the message body and a
// signature line in a blockquote, identified by a monotone sequence id.
func encodePost(id int64, author, destination, body, signature string, sent time.Time) ([]byte, error) {
	post := []map[string]interface{}{{
		"id":     id,
		"action": "poke",
		"ship":   strings.TrimPrefix(author, "~"),
		"app":    "channels",
		"mark":   "channel-action",
		"json": map[string]interface{}{
			"channel": map[string]interface{}{
				"nest": destination,
				"action": map[string]interface{}{
					"post": map[string]interface{}{
						"add": map[string]interface{}{
							"kind-data": map[string]interface{}{
								"chat": nil,
							},
							"author": author,
							// milliseconds since epoch from sender
							"sent": sent.UnixMilli(),
							"content": []interface{}{
								map[string]interface{}{
									"inline": []interface{}{
										body,
										map[string]interface{}{"break": nil},
										map[string]interface{}{"blockquote": []interface{}{
											signature,
											map[string]interface{}{"break": nil},
										}},
									},
								},
							},
						},
					},
				},
			},
		},
	}}

	return json.Marshal(post)
}
