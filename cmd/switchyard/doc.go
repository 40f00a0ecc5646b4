// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Command switchyard is the CI orchestration front-end. It publishes
// the pipeline engine as a capability service, serves the web surface
// (webhook ingestion, login, engine routes, metrics), and supervises
// the long-running loops as a unit: when any of them finishes, the
// process exits with that loop's outcome.
//
// Configuration comes from a single YAML file named by the --config
// flag or the SWITCHYARD_CONFIG environment variable.
package main
