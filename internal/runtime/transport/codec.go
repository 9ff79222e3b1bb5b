package transport

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	idspkg "github.com/drblury/kafkarelay/internal/runtime/ids"
	"github.com/drblury/kafkarelay/internal/runtime/metadata"
)

// RecordCodec moves a Kafka record through a Watermill message without
// touching its bytes. The value becomes the payload; key, timestamp and
// headers travel in reserved metadata entries.
//
// Kafka allows repeated header names, Watermill metadata does not: a repeated
// name keeps its last value.
type RecordCodec struct{}

var (
	_ kafka.Marshaler   = RecordCodec{}
	_ kafka.Unmarshaler = RecordCodec{}
)

// Unmarshal converts a consumed record into a message.
func (RecordCodec) Unmarshal(rec *sarama.ConsumerMessage) (*message.Message, error) {
	msg := message.NewMessage(idspkg.CreateULID(), rec.Value)
	md := metadata.Of(msg)

	if rec.Key != nil {
		md[metadata.Key] = base64.StdEncoding.EncodeToString(rec.Key)
	}
	if rec.Value == nil {
		md[metadata.Tombstone] = "true"
	}
	if !rec.Timestamp.IsZero() {
		md[metadata.Timestamp] = strconv.FormatInt(rec.Timestamp.UnixMilli(), 10)
	}
	for _, h := range rec.Headers {
		if h == nil {
			continue
		}
		md.SetHeader(string(h.Key), string(h.Value))
	}
	md.SetPosition(rec.Topic, rec.Partition, rec.Offset)

	return msg, nil
}

// Marshal converts a message back into a record for topic.
func (RecordCodec) Marshal(topic string, msg *message.Message) (*sarama.ProducerMessage, error) {
	md := metadata.Metadata(msg.Metadata)

	rec := &sarama.ProducerMessage{Topic: topic}

	if md[metadata.Tombstone] != "true" {
		payload := msg.Payload
		if payload == nil {
			// sarama writes a nil slice as a null value
			payload = []byte{}
		}
		rec.Value = sarama.ByteEncoder(payload)
	}

	if encoded, ok := md[metadata.Key]; ok {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode record key of message %s: %w", msg.UUID, err)
		}
		rec.Key = sarama.ByteEncoder(key)
	}

	if raw := md[metadata.Timestamp]; raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse record timestamp of message %s: %w", msg.UUID, err)
		}
		rec.Timestamp = time.UnixMilli(ms)
	}

	names := md.HeaderNames()
	if len(names) > 0 {
		rec.Headers = make([]sarama.RecordHeader, 0, len(names))
		for _, name := range names {
			v, _ := md.Header(name)
			rec.Headers = append(rec.Headers, sarama.RecordHeader{Key: []byte(name), Value: []byte(v)})
		}
	}

	return rec, nil
}
