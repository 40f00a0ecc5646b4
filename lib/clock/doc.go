// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for
// testability.
//
// Production code accepts a Clock parameter instead of calling
// time.Now, time.After, time.NewTicker, or time.Sleep directly.
// Real() provides standard library behavior; Fake() provides a
// deterministic clock that advances only when Advance is called.
//
// Add a Clock field to structs that use time:
//
//	aggregator := &Aggregator{clock: clock.Real()}
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
//	// ... start goroutines that sleep or tick ...
//	c.WaitForTimers(1)
//	c.Advance(30 * time.Second)
//
// WaitForTimers blocks until pending timers are registered,
// eliminating the race between a goroutine arming a timer and the
// test advancing the clock.
package clock
