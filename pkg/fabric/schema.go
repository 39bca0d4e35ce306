package fabric

import (
	"fmt"
	"strings"
)

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so that
// several pipelines can share one Redis server without interference.
//
// Key pattern: pisim:{instance_name}:{pattern}:{endpoint}[:...]

// MaxTopicLength is the number of leading message bytes carried in a
// broadcast channel name. Prefix filters longer than this cannot match.
const MaxTopicLength = 256

// BroadcastChannel returns the Pub/Sub channel a broadcast message is
// published on. The message's leading bytes form the channel suffix.
// Pattern: pisim:{instance_name}:bcast:{name}:{topic}
func BroadcastChannel(instanceName, name, msg string) string {
	return fmt.Sprintf("%s%s", broadcastRoot(instanceName, name), topicOf(msg))
}

// BroadcastPattern returns the PSUBSCRIBE pattern matching every broadcast
// message on the endpoint that starts with prefix. Glob metacharacters in the
// prefix are escaped so they match literally.
// Pattern: pisim:{instance_name}:bcast:{name}:{prefix}*
func BroadcastPattern(instanceName, name, prefix string) string {
	return broadcastRoot(instanceName, name) + escapeGlob(prefix) + "*"
}

// QueueKey returns the Redis list backing a work queue.
// Pattern: pisim:{instance_name}:queue:{name}
func QueueKey(instanceName, name string) string {
	return fmt.Sprintf("pisim:%s:queue:%s", instanceName, name)
}

// ServiceRequestsKey returns the Redis list a service reads requests from.
// Pattern: pisim:{instance_name}:svc:{name}:requests
func ServiceRequestsKey(instanceName, name string) string {
	return fmt.Sprintf("pisim:%s:svc:%s:requests", instanceName, name)
}

// ServiceReplyKey returns the Redis list a single reply is delivered on.
// Pattern: pisim:{instance_name}:svc:{name}:reply:{request_id}
func ServiceReplyKey(instanceName, name, requestID string) string {
	return fmt.Sprintf("pisim:%s:svc:%s:reply:%s", instanceName, name, requestID)
}

func broadcastRoot(instanceName, name string) string {
	return fmt.Sprintf("pisim:%s:bcast:%s:", instanceName, name)
}

func topicOf(msg string) string {
	if len(msg) > MaxTopicLength {
		return msg[:MaxTopicLength]
	}
	return msg
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// normalizePrefixes drops duplicate prefixes and any prefix already covered
// by a shorter one, so that each message matches at most one pattern.
// An empty prefix covers everything.
func normalizePrefixes(prefixes []string) []string {
	if len(prefixes) == 0 {
		return []string{""}
	}

	kept := make([]string, 0, len(prefixes))
	for i, p := range prefixes {
		covered := false
		for j, q := range prefixes {
			if i == j {
				continue
			}
			if strings.HasPrefix(p, q) && (len(q) < len(p) || j < i) {
				covered = true
				break
			}
		}
		if !covered {
			kept = append(kept, p)
		}
	}
	return kept
}
