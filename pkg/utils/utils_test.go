package utils

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSHA256FromReader(t *testing.T) {
	sum, err := ComputeSHA256FromReader(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)
}

func TestKeyFromPath(t *testing.T) {
	root := filepath.Join("srv", "images")

	tests := []struct {
		name    string
		file    string
		want    string
		wantErr bool
	}{
		{name: "top level", file: filepath.Join(root, "a.png"), want: "a.png"},
		{name: "nested", file: filepath.Join(root, "2023", "b.jpg"), want: "2023/b.jpg"},
		{name: "root itself", file: root, wantErr: true},
		{name: "outside", file: filepath.Join("srv", "other.png"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := KeyFromPath(root, tt.file)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCleanKey(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"a.png", "a.png"},
		{"/a/b.png", "a/b.png"},
		{"a//b.png", "a/b.png"},
		{"a/./b.png", "a/b.png"},
		{"../../etc/passwd", "etc/passwd"},
		{"dir/", "dir/"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanKey(tt.input))
		})
	}
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden(".DS_Store"))
	assert.True(t, IsHidden("a/.git/config"))
	assert.False(t, IsHidden("a/b.png"))
	assert.False(t, IsHidden("a/b.c.png"))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBytes(tt.bytes))
		})
	}
}
