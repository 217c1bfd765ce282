package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Status  string  `json:"status" validate:"omitempty,oneof=pending accepted"`
	Comment *string `json:"comment" validate:"omitempty,max=5"`
	Link    *string `json:"link" validate:"omitempty,url"`
}

func TestValidate(t *testing.T) {
	long := "far too long"
	link := "not a url"

	_, err := Validate(sample{Status: "pending"})
	require.NoError(t, err)

	_, err = Validate(sample{Status: "teleported"})
	require.Error(t, err)
	assert.Equal(t, "status", InvalidField(err))
	assert.Contains(t, err.Error(), "status must be one of [pending accepted]")

	_, err = Validate(sample{Comment: &long, Link: &link})
	require.Error(t, err)
	assert.Equal(t, "comment", InvalidField(err))
	assert.Contains(t, err.Error(), "comment must be at most 5")
	assert.Contains(t, err.Error(), "link must be a valid URL")
}
