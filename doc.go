// Package kafkarelay copies records from a source Kafka topic to a
// destination topic without touching them. Key, value, headers and timestamp
// are carried over as they were read.
//
// A relay is described by a Config. Each side names its bootstrap servers and
// topic in one "<servers>;<topic>" descriptor and authenticates with either
// SASL_PLAIN or SSL. Credentials are secret identifiers that are resolved
// through a secrets backend (env, file or aws) only after the whole
// configuration has been validated.
//
// # Construction
//
// Build validates source authentication, destination authentication, the
// source endpoint and the destination endpoint, in that order, and stops at
// the first failure. Every failure is a *RelayError whose Kind tells the
// failure class apart:
//
//   - MissingEndpointDescriptor, InvalidEndpointDescriptor
//   - MissingCredentialField, UnsupportedAuthenticationMode
//   - SecretResolutionFailed, SecretResolutionTimeout
//   - RelaySubmissionFailed, BrokerConnectionTimeout
//
// # Delivery
//
// Records are relayed by a Watermill router with a passthrough handler. A
// record is acknowledged only after the destination accepted it; a failed
// publish is retried by redelivery. Per source partition the destination
// sees records in source order. With CommitOffsets enabled the relay joins a
// consumer group and commits offsets of acknowledged records only, which
// gives at-least-once delivery.
//
// # Observability
//
// Logs go through ServiceLogger (slog or any Watermill LoggerAdapter).
// Passing a Prometheus registerer to Start enables router metrics and the
// kafkarelay_* relay counters. Every record gets an OpenTelemetry span.
package kafkarelay
