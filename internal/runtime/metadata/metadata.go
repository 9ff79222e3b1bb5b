// Package metadata names the Watermill metadata entries that carry a Kafka
// record's envelope (key, timestamp, headers, origin) through the relay.
package metadata

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Reserved keys. Everything the codec owns lives under Prefix so that metadata
// added by router middleware never reaches the destination as a header.
const (
	Prefix       = "kafka."
	HeaderPrefix = Prefix + "header."

	// Key holds the base64 encoded record key. Absent means a null key.
	Key = Prefix + "key"
	// Tombstone is "true" when the record value was null.
	Tombstone = Prefix + "tombstone"
	// Timestamp is the record timestamp in Unix milliseconds.
	Timestamp = Prefix + "timestamp"
	Topic     = Prefix + "topic"
	Partition = Prefix + "partition"
	Offset    = Prefix + "offset"
)

// Metadata is a view over a Watermill message's metadata map.
type Metadata map[string]string

// Of returns the metadata of msg without copying it.
func Of(msg *message.Message) Metadata {
	if msg.Metadata == nil {
		msg.Metadata = message.Metadata{}
	}
	return Metadata(msg.Metadata)
}

// SetHeader stores a record header. A later value for the same name wins.
func (m Metadata) SetHeader(name, value string) {
	m[HeaderPrefix+name] = value
}

// Header returns the value of the named record header.
func (m Metadata) Header(name string) (string, bool) {
	v, ok := m[HeaderPrefix+name]
	return v, ok
}

// HeaderNames returns the record header names in sorted order.
func (m Metadata) HeaderNames() []string {
	var names []string
	for k := range m {
		if strings.HasPrefix(k, HeaderPrefix) {
			names = append(names, strings.TrimPrefix(k, HeaderPrefix))
		}
	}
	sort.Strings(names)
	return names
}

// Position returns the source partition and offset, or ok=false when the
// record did not come from a Kafka consumer.
func (m Metadata) Position() (partition int32, offset int64, ok bool) {
	p, err := strconv.ParseInt(m[Partition], 10, 32)
	if err != nil {
		return 0, 0, false
	}
	o, err := strconv.ParseInt(m[Offset], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return int32(p), o, true
}

// SetPosition records where the record was read from.
func (m Metadata) SetPosition(topic string, partition int32, offset int64) {
	m[Topic] = topic
	m[Partition] = strconv.FormatInt(int64(partition), 10)
	m[Offset] = strconv.FormatInt(offset, 10)
}
