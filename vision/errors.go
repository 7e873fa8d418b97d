// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vision

import "errors"

// ErrInvalid is wrapped by every validation error returned from this package.
var ErrInvalid = errors.New("vision: invalid value")
