package rabbitmq

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// headerCarrier adapts AMQP headers to the OpenTelemetry propagation carrier
type headerCarrier amqp.Table

func (h headerCarrier) Get(key string) string {
	v, ok := h[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (h headerCarrier) Set(key, value string) {
	h[key] = value
}

func (h headerCarrier) Keys() []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	return keys
}
