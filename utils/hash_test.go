package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyDigest(t *testing.T) {
	assert.Equal(t, KeyDigest("agent/state"), KeyDigest("agent/state"))
	assert.NotEqual(t, KeyDigest("agent/state"), KeyDigest("agent/state2"))
	assert.Regexp(t, `^[0-9a-f]{16}$`, KeyDigest(""))
	assert.Regexp(t, `^[0-9a-f]{16}$`, KeyDigest("キー 鍵 key"))
}
