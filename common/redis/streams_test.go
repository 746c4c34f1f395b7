package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSONToStream_ReadLatest(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := PublishJSONToStream(ctx, client, "alerts", map[string]int{"n": i}, 0)
		require.NoError(t, err)
	}

	msgs, err := ReadLatest(ctx, client, "alerts", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	var decoded map[string]int
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &decoded))
	assert.Equal(t, 3, decoded["n"])
	assert.Equal(t, "alerts", msgs[0].Stream)
}

func TestStringify(t *testing.T) {
	cases := map[string]interface{}{
		"abc":       "abc",
		"42":        42,
		"7":         int64(7),
		"1.5":       1.5,
		"true":      true,
		`{"a":1}`:   map[string]int{"a": 1},
		"raw-bytes": []byte("raw-bytes"),
	}
	for want, in := range cases {
		got, err := stringify(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
