// Package config implements the configuration provider and hot-reload
// protocol: a JSON document parsed with json-iterator/go into a typed
// Config, published through a read-mostly GCO (Global Config Owner)
// snapshot holder (atomic.Pointer swap, no locking on the read path).
/*
 * Copyright (c) 2023, ALCP IoT. All rights reserved.
 */
package config

import (
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config is the typed snapshot of the configuration document.
// HAPCAN-specific keys the translator consumes are out of this core's
// scope but preserved verbatim in rawExtra so a translator can still
// reach them via Field.
type Config struct {
	EnableMQTT         bool     `json:"enableMQTT"`
	MQTTBroker         string   `json:"mqttBroker"`
	MQTTClientID       string   `json:"mqttClientID"`
	SubscribeTopics    []string `json:"subscribeTopics"`
	MQTTRetries        int      `json:"mqttRetries"`
	MQTTAckTimeoutMS   int      `json:"mqttAckTimeoutMs"`
	EnableSocketServer bool     `json:"enableSocketServer"`
	SocketServerPort   string   `json:"socketServerPort"`
	// EnableCAN1 gates the optional second CAN channel ("CAN0
	// (optionally CAN1)"); CAN0 is always brought up. The supervisor
	// constructs and dials can1 only when this flag is set; when it is,
	// can1 gets its own buffers and state from its own NewChannel call.
	EnableCAN1 bool `json:"enableCAN1"`
	rawExtra   map[string]jsoniter.RawMessage
}

// Default returns the zero-value configuration - failure semantics
// require that every lookup against an unparseable document fails to
// false/empty/NULL, which is exactly the Go zero value here, except
// MQTTRetries/MQTTAckTimeoutMS which need non-zero defaults to be
// usable by the mqtt package's retry loop.
func Default() *Config {
	return &Config{MQTTRetries: 3, MQTTAckTimeoutMS: 1000}
}

// Parse unmarshals raw JSON into a Config, falling back to Default() on
// any parse error: if the new configuration cannot be parsed, the
// caller keeps running on defaults rather than crashing.
func Parse(raw []byte) *Config {
	c := Default()
	var doc map[string]jsoniter.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return c
	}
	if err := json.Unmarshal(raw, c); err != nil {
		return Default()
	}
	c.rawExtra = doc
	return c
}
