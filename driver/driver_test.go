// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package driver

import "testing"

func TestQueryKindString(t *testing.T) {
	tests := []struct {
		kind QueryKind
		want string
	}{
		{QueryKindOcclusion, "occlusion"},
		{QueryKind(200), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("QueryKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestQueryKindValid(t *testing.T) {
	if !QueryKindOcclusion.Valid() {
		t.Error("QueryKindOcclusion should be valid")
	}
	if QueryKind(NumQueryKinds).Valid() {
		t.Error("kind beyond NumQueryKinds should be invalid")
	}
}
