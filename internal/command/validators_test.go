// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0
// no-cloc

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidators(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		validator FlagValidatorType
		wantErr   bool
	}{
		{"jammed flag", "--output", JammedFlagValidator, true},
		{"plain value", "url", JammedFlagValidator, false},
		{"empty", "  ", NotEmptyValidator, true},
		{"not empty", "v1", NotEmptyValidator, false},
		{"absolute url", "https://docs.example.com/", AbsoluteURLValidator, false},
		{"relative url", "/docs/", AbsoluteURLValidator, true},
		{"no host", "file:///tmp/site", AbsoluteURLValidator, true},
		{"output json", "json", OutputValidator, false},
		{"output csv", "csv", OutputValidator, true},
		{"storage s3", "s3", StorageValidator, false},
		{"storage gcs", "gcs", StorageValidator, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FlagValidators(tt.value, tt.validator)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFlagValidatorsStopsAtFirstError(t *testing.T) {
	err := FlagValidators("--x", JammedFlagValidator, NotEmptyValidator)
	assert.EqualError(t, err, "must not begin with '--'")
}
