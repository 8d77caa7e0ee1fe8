// Package metrics exposes engine counters in the Prometheus format.
//
// Metrics are registered on a private registry, so several instances can
// live in one process (tests, embedded engines). Handler serves that
// registry together with the Go runtime and process collectors.
//
// Exported series:
//
//	cuelogic_action_validations_total{action,result}   confirmed validations
//	cuelogic_consequences_total{status}                consequences run (ok|failed)
//	cuelogic_consequence_set_duration_seconds          time to run one set
//	cuelogic_items{manager}                            items owned per manager
//
// A nil *Metrics is valid and records nothing.
package metrics
