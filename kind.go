// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package querycache

import "github.com/gogpu/querycache/driver"

// Kind is an alias for driver.QueryKind, re-exported so most users never
// import the driver package directly.
type Kind = driver.QueryKind

// KindOcclusion counts samples passing the depth and stencil tests.
const KindOcclusion = driver.QueryKindOcclusion

// NumKinds is the number of supported counter kinds. Per-kind state is held
// in fixed-size arrays indexed by Kind.
const NumKinds = driver.NumQueryKinds
