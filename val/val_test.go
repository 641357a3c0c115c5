package val_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/errnotify/val"
)

type queueConfig struct {
	Policy string `yaml:"policy" validate:"oneof=unbounded block"`
	Size   int    `yaml:"size"   validate:"gte=1"`
}

type testConfig struct {
	APIKey   string      `yaml:"api_key"   validate:"required"`
	Insecure bool        `yaml:"insecure"`
	Proxy    string      `yaml:"proxy"     validate:"required_if=Insecure true"`
	Name     string      `json:"name"      validate:"max=5"`
	Queue    queueConfig `yaml:"queue"`
}

func TestStructValid(t *testing.T) {
	fields, err := val.Struct(testConfig{
		APIKey: "key",
		Name:   "abc",
		Queue:  queueConfig{Policy: "block", Size: 10},
	})
	require.NoError(t, err)
	assert.Nil(t, fields)
}

func TestStructDescribesFields(t *testing.T) {
	fields, err := val.Struct(testConfig{
		Insecure: true,
		Name:     "too long",
		Queue:    queueConfig{Policy: "lifo", Size: 0},
	})
	require.NoError(t, err)

	assert.Equal(t, "This field is required", fields["api_key"])
	assert.Equal(t, "This field is required when Insecure is true", fields["proxy"])
	assert.Equal(t, "Must be at most 5 characters", fields["name"])
	assert.Equal(t, "Must be one of: unbounded, block", fields["queue.policy"])
	assert.Equal(t, "Must be greater than or equal to 1", fields["queue.size"])
	assert.Len(t, fields, 5)
}

func TestStructRejectsNonStruct(t *testing.T) {
	_, err := val.Struct(42)
	require.Error(t, err)
}
