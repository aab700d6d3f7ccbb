package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSkipMagic(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"single", "ELF", []string{"ELF"}},
		{"multiple", "ELF,JPEG,PNG", []string{"ELF", "JPEG", "PNG"}},
		{"whitespace and trailing comma", " ELF , JPEG ,", []string{"ELF", "JPEG"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, splitSkipMagic(tc.in))
		})
	}
}
