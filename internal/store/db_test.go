package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaxOpenConns(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{"sqlite is single writer", Config{Driver: "sqlite", MaxOpenConns: 25}, 1},
		{"mysql configured", Config{Driver: "mysql", MaxOpenConns: 25}, 25},
		{"mysql zero uses default", Config{Driver: "mysql"}, DefaultMaxOpenConns},
		{"mysql negative uses default", Config{Driver: "mysql", MaxOpenConns: -1}, DefaultMaxOpenConns},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maxOpenConns(tt.cfg))
		})
	}
}
