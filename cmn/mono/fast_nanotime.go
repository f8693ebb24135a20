// Package mono provides a monotonic nanosecond counter for measuring
// elapsed durations - e.g. the MQTT publish-acknowledgement latency
// metric in mqtt.Endpoint.PublishOnce - immune to wall-clock jumps from
// NTP or manual resets. It is not the timestamp source for Frame
// timestamps (see hapcan.Timestamp / hapcan.NowMillis), which need an
// absolute epoch, not an elapsed duration.
/*
 * Copyright (c) 2023, ALCP IoT. All rights reserved.
 */
package mono

import "time"

var start = time.Now()

// NanoTime returns a monotonic nanosecond counter anchored at process
// start. It reads the monotonic component Go already attaches to
// time.Now() - a few dozen ns slower per call than a raw runtime clock
// read, immaterial next to a 100ms poll loop.
func NanoTime() int64 { return int64(time.Since(start)) }
