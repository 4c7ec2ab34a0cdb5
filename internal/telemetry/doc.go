// Package telemetry wires OpenTelemetry tracing for the daemon. Card server
// requests and API handlers are traced through otelhttp; the resolver opens
// one span per step.
package telemetry
