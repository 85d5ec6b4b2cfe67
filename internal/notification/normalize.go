// Package notification turns heterogeneous queue payloads into canonical
// units of work. All payload-shape branching lives here; the pipeline only
// ever sees the tagged Outcome variant.
package notification

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// uploadsPrefix is the mandatory first segment of every valid object key.
const uploadsPrefix = "uploads"

// testEventName marks the synthetic ping storage services emit when a
// notification target is configured. It carries no object and is dropped.
const testEventName = "s3:TestEvent"

// Kind tags an Outcome.
type Kind int

const (
	// KindIgnore is a synthetic/test notification; drop without side effects.
	KindIgnore Kind = iota
	// KindReject is a payload that can never be processed; consume it so it
	// is not redelivered forever.
	KindReject
	// KindEvent is a canonical unit of work for the state machine.
	KindEvent
)

// ObjectPutEvent is one storage put, with the target video id already
// recovered from the object key.
type ObjectPutEvent struct {
	VideoID string
	Bucket  string
	Key     string
	Size    int64
}

// Outcome is the classification of one inner storage event (or of the whole
// delivery when it cannot be decomposed).
type Outcome struct {
	Kind   Kind
	Event  ObjectPutEvent
	Reason string
}

func reject(format string, args ...any) Outcome {
	return Outcome{Kind: KindReject, Reason: fmt.Sprintf(format, args...)}
}

// envelope mirrors the wrapped S3-style notification shape. Unknown fields
// are ignored on purpose.
type envelope struct {
	Event   string `json:"Event"`
	Records []struct {
		S3 struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key  string `json:"key"`
				Size int64  `json:"size"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// Normalize classifies one raw queue message. A single delivery may bundle
// several storage events; each inner event gets its own Outcome so a bad
// sibling cannot poison the rest of the batch.
func Normalize(body []byte) []Outcome {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return []Outcome{reject("malformed payload: %s", err)}
	}
	if env.Event == testEventName {
		return []Outcome{{Kind: KindIgnore}}
	}
	if len(env.Records) == 0 {
		return []Outcome{reject("no storage records in payload")}
	}

	outcomes := make([]Outcome, 0, len(env.Records))
	for _, rec := range env.Records {
		outcomes = append(outcomes, classify(rec.S3.Bucket.Name, rec.S3.Object.Key, rec.S3.Object.Size))
	}
	return outcomes
}

func classify(bucket, rawKey string, size int64) Outcome {
	if bucket == "" {
		return reject("record missing bucket name")
	}
	if rawKey == "" {
		return reject("record missing object key")
	}
	// Keys arrive URL-encoded ("+" for space) the way S3 writes them into
	// event notifications.
	key, err := url.QueryUnescape(rawKey)
	if err != nil {
		return reject("undecodable object key %q: %s", rawKey, err)
	}

	videoID, ok := videoIDFromKey(key)
	if !ok {
		return reject("object key %q does not match %s/<videoId>/<name>", key, uploadsPrefix)
	}
	return Outcome{
		Kind: KindEvent,
		Event: ObjectPutEvent{
			VideoID: videoID,
			Bucket:  bucket,
			Key:     key,
			Size:    size,
		},
	}
}

// videoIDFromKey extracts the video id from an uploads/<videoId>/<name> key.
func videoIDFromKey(key string) (string, bool) {
	parts := strings.Split(key, "/")
	if len(parts) < 3 || parts[0] != uploadsPrefix {
		return "", false
	}
	if parts[1] == "" || parts[2] == "" {
		return "", false
	}
	return parts[1], true
}
