// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package web is the HTTP surface of the Switchyard front-end. It
// composes the webhook ingestion route, the login route, and whatever
// routes the pipeline engine exposes into one router, and gates every
// engine route on the access policy before its handler runs.
//
// Caller identity travels in a signed session cookie issued by the
// login route. Webhook requests are authenticated by an HMAC-SHA256
// shared secret instead, since forges do not hold sessions.
package web
