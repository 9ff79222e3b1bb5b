// Package template holds the descriptive metadata of the relay templates the
// binary can run. It is pure data and never affects relay behavior.
package template

import "sort"

// Category groups templates in listings.
type Category string

const (
	CategoryStreaming Category = "STREAMING"
	CategoryBatch     Category = "BATCH"
)

// Parameter documents one user-facing option of a template.
type Parameter struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Default     string `json:"default,omitempty"`
}

// Metadata describes a template. Values are copied out of the registry, so a
// caller can never change what Lookup returns to others.
type Metadata struct {
	Name                string      `json:"name"`
	DisplayName         string      `json:"display_name"`
	Description         string      `json:"description"`
	Category            Category    `json:"category"`
	FlexContainerName   string      `json:"flex_container_name"`
	ContactInformation  string      `json:"contact_information"`
	Hidden              bool        `json:"hidden"`
	Streaming           bool        `json:"streaming"`
	SupportsAtLeastOnce bool        `json:"supports_at_least_once"`
	SupportsExactlyOnce bool        `json:"supports_exactly_once"`
	Parameters          []Parameter `json:"parameters"`
}

func (m Metadata) clone() Metadata {
	m.Parameters = append([]Parameter(nil), m.Parameters...)
	return m
}

// KafkaToKafkaName is the registered name of the Kafka relay template.
const KafkaToKafkaName = "Kafka_to_Kafka"

var kafkaToKafka = Metadata{
	Name:                KafkaToKafkaName,
	DisplayName:         "Kafka to Kafka",
	Description:         "A pipeline that writes data to a kafka destination from another kafka source",
	Category:            CategoryStreaming,
	FlexContainerName:   "kafka-to-kafka",
	ContactInformation:  "https://cloud.google.com/support",
	Hidden:              true,
	Streaming:           false,
	SupportsAtLeastOnce: true,
	SupportsExactlyOnce: false,
	Parameters: []Parameter{
		{Name: "readBootstrapServerAndTopic", Description: "Source bootstrap servers and topic as <servers>;<topic>"},
		{Name: "kafkaReadAuthenticationMode", Description: "Source authentication mode: SASL_PLAIN or SSL"},
		{Name: "kafkaReadUsernameSecretId", Description: "Secret holding the source SASL username", Optional: true},
		{Name: "kafkaReadPasswordSecretId", Description: "Secret holding the source SASL password", Optional: true},
		{Name: "sourceTruststoreLocation", Description: "Source truststore file", Optional: true},
		{Name: "sourceTruststorePasswordSecretId", Description: "Secret holding the source truststore password", Optional: true},
		{Name: "sourceKeystoreLocation", Description: "Source keystore file", Optional: true},
		{Name: "sourceKeystorePasswordSecretId", Description: "Secret holding the source keystore password", Optional: true},
		{Name: "sourceKeyPasswordSecretId", Description: "Secret holding the source private key password", Optional: true},
		{Name: "enableCommitOffsets", Description: "Commit source offsets once records were written", Optional: true, Default: "false"},
		{Name: "writeBootstrapServerAndTopic", Description: "Destination bootstrap servers and topic as <servers>;<topic>"},
		{Name: "kafkaWriteAuthenticationMethod", Description: "Destination authentication mode: SASL_PLAIN or SSL"},
		{Name: "kafkaWriteUsernameSecretId", Description: "Secret holding the destination SASL username", Optional: true},
		{Name: "kafkaWritePasswordSecretId", Description: "Secret holding the destination SASL password", Optional: true},
		{Name: "kafkaWriteTruststoreLocation", Description: "Destination truststore file", Optional: true},
		{Name: "destinationTruststorePasswordSecretId", Description: "Secret holding the destination truststore password", Optional: true},
		{Name: "kafkaWriteKeystoreLocation", Description: "Destination keystore file", Optional: true},
		{Name: "kafkaWriteKeystorePasswordSecretId", Description: "Secret holding the destination keystore password", Optional: true},
		{Name: "kafkaWriteKeyPasswordSecretId", Description: "Secret holding the destination private key password", Optional: true},
	},
}

var registry = map[string]Metadata{
	KafkaToKafkaName: kafkaToKafka,
}

// KafkaToKafka returns the metadata of the Kafka relay template.
func KafkaToKafka() Metadata {
	return kafkaToKafka.clone()
}

// Lookup returns the metadata registered under name.
func Lookup(name string) (Metadata, bool) {
	m, ok := registry[name]
	if !ok {
		return Metadata{}, false
	}
	return m.clone(), true
}

// Names lists the registered template names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
