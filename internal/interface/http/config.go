package httpservice

import (
	"fmt"
	"time"
)

type Config struct {
	Port           uint32
	AllowedOrigins []string
	// RatePerMinute caps requests per client IP. Zero disables the limit.
	RatePerMinute int
	RequestTimeout time.Duration
	EnablePprof    bool
}

func (c Config) Validate() error {
	if c.Port == 0 {
		return fmt.Errorf("missing port")
	}
	if c.RatePerMinute < 0 {
		return fmt.Errorf("invalid rate limit, must be >= 0")
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("invalid request timeout, must be >= 0")
	}
	return nil
}

func (c Config) address() string {
	return fmt.Sprintf(":%d", c.Port)
}
