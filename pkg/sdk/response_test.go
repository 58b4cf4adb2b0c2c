package sdk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponse_Items(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"bare array", `[{"id":1},{"id":2}]`, 2},
		{"keyed", `{"tasks":[{"id":1}]}`, 1},
		{"data array", `{"data":[{"id":1},{"id":2},{"id":3}]}`, 3},
		{"data keyed", `{"data":{"tasks":[{"id":1}]}}`, 1},
		{"no list", `{"message":"nothing here"}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := (&Response{Data: []byte(tt.body)}).Items("tasks")
			require.NoError(t, err)
			assert.NotNil(t, items)
			assert.Len(t, items, tt.want)
		})
	}

	_, err := (&Response{}).Items("tasks")
	assert.Error(t, err, "empty body")
}

func TestDecode(t *testing.T) {
	type task struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	got, err := Decode[[]task](&Response{Data: []byte(`[{"id":"t1","status":"pending"}]`)})
	require.NoError(t, err)
	assert.Equal(t, []task{{ID: "t1", Status: "pending"}}, got)

	_, err = Decode[task](&Response{Data: []byte(`not json`)})
	assert.Error(t, err)
}
