// Package infra holds the adapters around the planner: zerolog logging,
// Prometheus and InfluxDB sinks and the MQTT plan publisher. Subpackages
// implement interfaces declared under core and are wired by app.
package infra
