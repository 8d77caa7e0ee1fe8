package mqtt

import "errors"

var (
	ErrNotConnected = errors.New("mqtt: not connected to broker")
	ErrConnect      = errors.New("mqtt: connect")
	ErrPublish      = errors.New("mqtt: publish")
	ErrSubscribe    = errors.New("mqtt: subscribe")
	ErrUnsubscribe  = errors.New("mqtt: unsubscribe")

	// ErrInvalidQoS rejects levels above 2.
	ErrInvalidQoS   = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic = errors.New("mqtt: empty topic")
)
