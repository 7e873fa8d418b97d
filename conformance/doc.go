// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package conformance provides the fixture suite that checks every vision
// type survives a write and read through each supported format. Each
// [Case] builds a small frame of one type, persists it under its own
// directory and compares the reloaded rows with the originals.
//
// The only entry points intended for external use are [Suite] and [Run].
// The row types are exported because they serve as examples of frames of
// vision types; columns use the names a frame built from unnamed rows
// would get ("_1") unless the fixture names them.
package conformance
