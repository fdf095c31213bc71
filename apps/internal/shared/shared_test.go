// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package shared

import "testing"

func TestPromptBehaviorString(t *testing.T) {
	tests := []struct {
		prompt PromptBehavior
		want   string
	}{
		{PromptAuto, "Auto"},
		{PromptAlways, "Always"},
		{PromptNever, "Never"},
		{PromptBehavior(42), "Auto"},
	}

	for _, test := range tests {
		if got := test.prompt.String(); got != test.want {
			t.Errorf("PromptBehavior(%d).String(): got %q, want %q", test.prompt, got, test.want)
		}
	}
}
