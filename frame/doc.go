// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package frame converts typed Go rows to Arrow record batches and back.
//
// # Struct tags
//
// Row types are Go structs annotated with `liga` struct tags:
//
//	`liga:"column_name[,option]"`
//
// Supported options:
//
//   - int32  : use Arrow Int32 instead of the default Int64
//   - float32: use Arrow Float32 instead of the default Float64
//   - binary : store an [ArrowSerializable] value as embedded IPC bytes
//
// Pointer fields, slices and maps become nullable columns; nil values are
// written as nulls and read back as nil.
//
// # Value types
//
// Types that implement [ArrowSerializable] become Arrow struct columns whose
// children come from ArrowSchema(), matched to Go fields by `arrow` tags.
// Value types may nest. Types that also implement [TypeNamer] are recorded in
// the schema metadata under [MetaTypes].
package frame
