package sysinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollect(t *testing.T) {
	info := Collect()

	assert.NotEmpty(t, info.Platform)
	assert.NotEmpty(t, info.CPU)
	assert.NotEmpty(t, info.RAM)
}
