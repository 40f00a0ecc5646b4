// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package vat

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/switchyard-ci/switchyard/lib/codec"
)

// dialTimeout caps the TCP connect for a capability call.
const dialTimeout = 10 * time.Second

// Client calls a remote capability across vats. It is cheap and
// stateless: each call opens a fresh connection, performs one CBOR
// exchange, and closes.
type Client struct {
	address string
	service ServiceID
}

// Dial creates a client for the service a sturdy reference designates.
// No connection is opened until Call.
func Dial(ref *SturdyRef) (*Client, error) {
	hp, err := hostPort(ref.Address)
	if err != nil {
		return nil, fmt.Errorf("vat: dialing sturdy ref: %w", err)
	}
	return &Client{address: hp, service: ref.Service}, nil
}

// Call invokes method on the remote service. The payload is CBOR
// encoded; if result is non-nil the response data is decoded into it.
func (c *Client) Call(ctx context.Context, method string, payload any, result any) error {
	var encoded []byte
	if payload != nil {
		var err error
		encoded, err = codec.Marshal(payload)
		if err != nil {
			return fmt.Errorf("vat: encoding payload: %w", err)
		}
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("vat: connecting to %s: %w", c.address, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := codec.NewEncoder(conn).Encode(request{
		Service: c.service.String(),
		Method:  method,
		Payload: codec.RawMessage(encoded),
	}); err != nil {
		return fmt.Errorf("vat: sending request: %w", err)
	}

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxMessageSize)).Decode(&response); err != nil {
		return fmt.Errorf("vat: reading response: %w", err)
	}
	if !response.OK {
		return fmt.Errorf("vat: remote error: %s", response.Error)
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("vat: decoding response: %w", err)
		}
	}
	return nil
}
