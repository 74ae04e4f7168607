package redis

import (
	"errors"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/product-reranker/pkg/config"
)

func TestIsNilError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"redis nil", redis.Nil, true},
		{"exported alias", ErrNil, true},
		{"wrapped", fmt.Errorf("get key: %w", redis.Nil), true},
		{"other error", errors.New("connection refused"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNilError(tt.err); got != tt.want {
				t.Errorf("IsNilError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNewClientUnreachable(t *testing.T) {
	_, err := NewClient(config.RedisConfig{Addr: "127.0.0.1:1", PoolSize: 1})
	if err == nil {
		t.Fatal("expected an error for an unreachable server")
	}
}
