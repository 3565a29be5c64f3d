package fetcher

import (
	"time"

	"github.com/rs/zerolog"

	"swapwatch/internal/httpx"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testHTTPClient() *httpx.Client {
	return httpx.New(httpx.Options{
		Timeout:         time.Second,
		MaxRetries:      1,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
	}, noopLogger())
}
