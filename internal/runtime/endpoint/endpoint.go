// Package endpoint turns the combined "<bootstrap-servers>;<topic>" descriptor
// into a structured Endpoint. The raw descriptor never travels past Parse.
package endpoint

import (
	"fmt"
	"regexp"
	"strings"

	errspkg "github.com/drblury/kafkarelay/internal/runtime/errors"
)

const (
	// ServersPattern is the grammar of the bootstrap-servers half.
	ServersPattern = `[,:a-zA-Z0-9._-]+`
	// TopicPattern is the grammar of the topic half.
	TopicPattern = `[,a-zA-Z0-9._-]+`

	separator = ";"
)

var descriptorRe = regexp.MustCompile(`^(` + ServersPattern + `)` + separator + `(` + TopicPattern + `)$`)

// Endpoint is the resolved connection target of one relay side.
type Endpoint struct {
	BootstrapServers []string
	Topic            string
}

// Parse splits descriptor into its server list and topic. An empty or
// whitespace-only descriptor is reported as missing rather than malformed.
func Parse(descriptor string) (Endpoint, error) {
	if strings.TrimSpace(descriptor) == "" {
		return Endpoint{}, &errspkg.RelayError{Kind: errspkg.KindMissingEndpointDescriptor}
	}

	m := descriptorRe.FindStringSubmatch(descriptor)
	if m == nil {
		return Endpoint{}, invalid(descriptor, "does not match <servers>;<topic>")
	}

	servers := strings.Split(m[1], ",")
	for i, s := range servers {
		if s == "" {
			return Endpoint{}, invalid(descriptor, fmt.Sprintf("empty bootstrap server at position %d", i))
		}
	}

	return Endpoint{BootstrapServers: servers, Topic: m[2]}, nil
}

// String renders the endpoint back into descriptor form.
func (e Endpoint) String() string {
	return strings.Join(e.BootstrapServers, ",") + separator + e.Topic
}

// Clone returns a copy that shares no memory with e.
func (e Endpoint) Clone() Endpoint {
	servers := make([]string, len(e.BootstrapServers))
	copy(servers, e.BootstrapServers)
	return Endpoint{BootstrapServers: servers, Topic: e.Topic}
}

func invalid(descriptor, reason string) error {
	return &errspkg.RelayError{
		Kind:       errspkg.KindInvalidEndpointDescriptor,
		Descriptor: descriptor,
		Err: fmt.Errorf("%s; bootstrap servers must match `%s` and topic must match `%s`",
			reason, ServersPattern, TopicPattern),
	}
}
