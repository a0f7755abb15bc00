package internal

import (
	"sjsage522/couponwatcher/internal/crawler"
	"sjsage522/couponwatcher/internal/store"
	"sjsage522/couponwatcher/internal/workflow"
	"sjsage522/couponwatcher/services/cache"
	"sjsage522/couponwatcher/services/publisher"
)

// Dependencies holds all service dependencies of an update run
type Dependencies struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Store     store.Store
	Emitter   workflow.Emitter
	Sessions  crawler.SessionFactory
	Rule      *crawler.Rule
}

// Cleanup releases the dependencies holding connections
func (d *Dependencies) Cleanup() error {
	if d.Publisher != nil {
		return d.Publisher.Close()
	}
	return nil
}
