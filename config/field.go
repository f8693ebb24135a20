package config

import "reflect"

// Field exposes a (level, levelIndex, field, fieldIndex, subField)
// tuple-addressed lookup surface, for non-Go HAPCAN translator callers
// that may be embedded via cgo (out of scope here, but the addressing
// surface is kept for compatibility). A level other than "" or "root"
// returns the raw JSON of that top-level key, for translator-specific
// sections not modeled by Config; fieldIndex >= 0 selects one element
// of an array-valued field (e.g. subscribeTopics). levelIndex and
// subField are not used by this lookup. Every lookup that cannot be
// resolved returns nil - this never panics.
func (c *Config) Field(level string, levelIndex int, field string, fieldIndex int, subField string) any {
	if c == nil {
		return nil
	}
	if level != "" && level != "root" {
		if c.rawExtra == nil {
			return nil
		}
		raw, ok := c.rawExtra[level]
		if !ok {
			return nil
		}
		return raw
	}

	name, ok := fieldNames[field]
	if !ok {
		return nil
	}
	v := reflect.ValueOf(c).Elem()
	fv := v.FieldByName(name)
	if !fv.IsValid() {
		return nil
	}
	if fv.Kind() == reflect.Slice && fieldIndex >= 0 {
		if fieldIndex >= fv.Len() {
			return nil
		}
		return fv.Index(fieldIndex).Interface()
	}
	return fv.Interface()
}

// fieldNames maps every supported JSON-style key to its Go struct
// field, since case-folding alone can't derive "MQTTBroker" from
// "mqttBroker".
var fieldNames = map[string]string{
	"enableMQTT":         "EnableMQTT",
	"mqttBroker":         "MQTTBroker",
	"mqttClientID":       "MQTTClientID",
	"subscribeTopics":    "SubscribeTopics",
	"mqttRetries":        "MQTTRetries",
	"mqttAckTimeoutMs":   "MQTTAckTimeoutMS",
	"enableSocketServer": "EnableSocketServer",
	"socketServerPort":   "SocketServerPort",
	"enableCAN1":         "EnableCAN1",
}
