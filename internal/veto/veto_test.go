package veto

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSource(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	src := NewRedisSourceFromClient(db, "")

	tests := []struct {
		name    string
		setup   func()
		want    Decision
		wantErr bool
	}{
		{"missing key", func() { mock.ExpectGet(DefaultRedisKey).RedisNil() }, Decision{}, false},
		{"json veto", func() {
			mock.ExpectGet(DefaultRedisKey).SetVal(`{"veto":true,"reason":"FOMC minutes"}`)
		}, Decision{Vetoed: true, Reason: "FOMC minutes"}, false},
		{"plain flag", func() { mock.ExpectGet(DefaultRedisKey).SetVal("true") }, Decision{Vetoed: true, Reason: "external veto"}, false},
		{"cleared", func() { mock.ExpectGet(DefaultRedisKey).SetVal("0") }, Decision{}, false},
		{"garbage", func() { mock.ExpectGet(DefaultRedisKey).SetVal("maybe") }, Decision{}, true},
		{"server error", func() { mock.ExpectGet(DefaultRedisKey).SetErr(errors.New("timeout")) }, Decision{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			got, err := src.CheckVeto(ctx)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStaticSource(t *testing.T) {
	d, err := NewStaticSource(true, "manual").CheckVeto(context.Background())
	require.NoError(t, err)
	assert.True(t, d.Vetoed)
	assert.Equal(t, "manual", d.Reason)
}
