package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
		wantErr bool
	}{
		{name: "valid", message: "Hi buddy", wantErr: false},
		{name: "multiline", message: "line one\nline two", wantErr: false},
		{name: "empty", message: "", wantErr: true},
		{name: "whitespace only", message: "   \n\t", wantErr: true},
		{name: "too long", message: strings.Repeat("x", maxMessageLen+1), wantErr: true},
		{name: "invalid utf8", message: string([]byte{0xff, 0xfe}), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMessage(tt.message)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
