// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// VerifyWebhookSignature checks the HMAC-SHA256 signature on a
// webhook payload. The signature is the hex digest, with or without
// the "sha256=" prefix forges such as GitHub and GitLab use.
//
// The returned error is safe to log: it never contains the expected
// digest, which would leak material derived from the shared secret.
func VerifyWebhookSignature(secret, body []byte, signature string) error {
	if len(secret) == 0 {
		return errors.New("webhook signature: secret is empty")
	}
	if len(body) == 0 {
		return errors.New("webhook signature: body is empty")
	}
	if signature == "" {
		return errors.New("webhook signature: signature is empty")
	}

	hexSignature := strings.TrimPrefix(signature, "sha256=")

	signatureBytes, err := hex.DecodeString(hexSignature)
	if err != nil {
		return fmt.Errorf("webhook signature: invalid hex: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	expected := mac.Sum(nil)

	if subtle.ConstantTimeCompare(expected, signatureBytes) != 1 {
		return errors.New("webhook signature: signature mismatch")
	}
	return nil
}
