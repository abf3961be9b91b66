package helper

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUID(t *testing.T) {
	a, err := GenerateUUID()
	require.NoError(t, err)
	b, err := GenerateUUID()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	_, err = uuid.Parse(a)
	assert.NoError(t, err)
}

func TestFprettyPrint(t *testing.T) {
	var buf bytes.Buffer
	FprettyPrint(&buf, map[string]string{"paragraph_number": "§"})
	assert.Equal(t, "{\n  \"paragraph_number\": \"§\"\n}\n", buf.String())

	buf.Reset()
	FprettyPrint(&buf, make(chan int))
	assert.Empty(t, buf.String())
}
