// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletlock

import "testing"

// TestErrorCodeStringer tests that all error codes have a text
// representation and that the text representation has not drifted from the
// constant name.
func TestErrorCodeStringer(t *testing.T) {
	tests := []struct {
		in   ErrorCode
		want string
	}{
		{ErrBusy, "ErrBusy"},
		{ErrStaleLease, "ErrStaleLease"},
		{0xffff, "Unknown ErrorCode (65535)"},
	}

	if int(lastErr) != len(tests)-1 {
		t.Errorf("wrong number of errorCodeStrings entries: got %d, want %d",
			len(tests)-1, int(lastErr))
	}
	for i, test := range tests {
		if got := test.in.String(); got != test.want {
			t.Errorf("stringer #%d: got %q, want %q", i, got, test.want)
		}
	}
}
