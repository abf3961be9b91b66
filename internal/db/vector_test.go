package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVector_Value(t *testing.T) {
	v, err := Vector{0.25, -1, 3}.Value()
	require.NoError(t, err)
	assert.Equal(t, "[0.25,-1,3]", v)

	v, err = Vector(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestVector_Scan(t *testing.T) {
	tests := []struct {
		name    string
		src     any
		want    Vector
		wantErr bool
	}{
		{"string", "[0.25,-1,3]", Vector{0.25, -1, 3}, false},
		{"bytes with spaces", []byte("[ 1, 2 ]"), Vector{1, 2}, false},
		{"empty", "[]", Vector{}, false},
		{"nil", nil, nil, false},
		{"no brackets", "1,2", nil, true},
		{"bad number", "[1,x]", nil, true},
		{"wrong type", 42, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Vector
			err := v.Scan(tt.src)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
		})
	}
}
