// Package infra holds the adapters behind the core interfaces: the MQTT
// and in-process buses, metrics sinks and their HTTP server, the KPI
// store, Sentry monitoring and the zerolog logger.
package infra
