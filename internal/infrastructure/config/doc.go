// Package config reads config.yaml, applies CUELOGIC_* environment
// overrides and validates the result. Validate reports every problem at
// once rather than stopping at the first.
//
// Secrets (MQTT and Redis passwords, the InfluxDB token, the JWT secret)
// are best supplied through the environment:
//
//	CUELOGIC_MQTT_PASSWORD=... CUELOGIC_API_AUTH_SECRET=... cuelogic serve
package config
