package cache

import (
	"context"
	"time"

	"radreject/internal/ports"
)

// NopCache never stores anything. Used when cache.driver is "none".
type NopCache struct{}

var _ ports.Cache = NopCache{}

func (NopCache) Get(context.Context, string) (string, bool, error)        { return "", false, nil }
func (NopCache) Set(context.Context, string, string, time.Duration) error { return nil }
func (NopCache) Delete(context.Context, string) error                     { return nil }
