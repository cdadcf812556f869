package errx

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to the unified Error type with appropriate
// status codes. All Redis failures are persistence failures: the chat store
// recovers them through its fallback tier, never the visitor.
func WrapRedis(err error) *Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return New(err, KindPersistence, http.StatusNotFound, RedisNotFoundMessage)
	}

	return New(err, KindPersistence, http.StatusBadGateway, RedisErrorMessage)
}
