package ioc

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

func InitGoCache() *gocache.Cache {
	const defaultExpiration = 5 * time.Minute
	const cleanupInterval = 10 * time.Minute
	return gocache.New(defaultExpiration, cleanupInterval)
}
