package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/kafkarelay/internal/runtime/logging"
	"github.com/drblury/kafkarelay/internal/runtime/metadata"
	"github.com/drblury/kafkarelay/internal/runtime/transport"
)

func nopLogger() logging.ServiceLogger {
	return logging.NewWatermillServiceLogger(watermill.NopLogger{})
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) count(prefix string) int {
	n := 0
	for _, e := range l.snapshot() {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// partitionedSubscriber imitates the Kafka subscriber: per partition it hands
// out one record at a time and only moves on once that record was acked. A
// nacked record is delivered again.
type partitionedSubscriber struct {
	partitions map[int32][]string
	events     *eventLog

	subscribeErr   error
	subscribeDelay time.Duration

	mu     sync.Mutex
	closed int
}

func newRecord(topic string, partition int32, offset int64, payload string) *message.Message {
	msg, err := transport.RecordCodec{}.Unmarshal(&sarama.ConsumerMessage{
		Topic:     topic,
		Partition: partition,
		Offset:    offset,
		Key:       []byte("k-" + payload),
		Value:     []byte(payload),
		Timestamp: time.UnixMilli(1_700_000_000_000 + offset),
	})
	if err != nil {
		panic(err)
	}
	return msg
}

func (s *partitionedSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if s.subscribeDelay > 0 {
		time.Sleep(s.subscribeDelay)
	}
	if s.subscribeErr != nil {
		return nil, s.subscribeErr
	}

	out := make(chan *message.Message)
	var wg sync.WaitGroup
	for p, payloads := range s.partitions {
		wg.Add(1)
		go func(p int32, payloads []string) {
			defer wg.Done()
			for i, payload := range payloads {
				msg := newRecord(topic, p, int64(i), payload)
				for acked := false; !acked; {
					select {
					case out <- msg:
					case <-ctx.Done():
						return
					}
					select {
					case <-msg.Acked():
						s.events.add("ack:" + payload)
						acked = true
					case <-msg.Nacked():
						s.events.add("nack:" + payload)
						msg = msg.Copy()
					case <-ctx.Done():
						return
					}
				}
			}
		}(p, payloads)
	}
	go func() {
		wg.Wait()
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

func (s *partitionedSubscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *partitionedSubscriber) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// recordingPublisher stores what was written per source partition and can be
// told to fail the first attempts for a payload.
type recordingPublisher struct {
	events *eventLog

	mu        sync.Mutex
	failures  map[string]int
	published map[int32][]string
	last      *message.Message
	closed    int
}

func newRecordingPublisher(events *eventLog) *recordingPublisher {
	return &recordingPublisher{
		events:    events,
		failures:  make(map[string]int),
		published: make(map[int32][]string),
	}
}

func (p *recordingPublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, m := range msgs {
		payload := string(m.Payload)

		p.mu.Lock()
		if p.failures[payload] > 0 {
			p.failures[payload]--
			p.mu.Unlock()
			p.events.add("fail:" + payload)
			return errors.New("destination unavailable")
		}
		partition, _, _ := metadata.Metadata(m.Metadata).Position()
		p.published[partition] = append(p.published[partition], payload)
		p.last = m
		p.mu.Unlock()

		p.events.add("publish:" + payload)
	}
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *recordingPublisher) publishedOn(partition int32) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.published[partition]...)
}

func (p *recordingPublisher) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "dial tcp 10.0.0.1:9093: i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
