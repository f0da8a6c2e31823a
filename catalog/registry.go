package catalog

import "sync/atomic"

// atomicCatalogPtr is a tiny wrapper over atomic.Pointer[Catalog] kept in its
// own file so Registry's lock-free contract (spec §5) is visible at a glance.
type atomicCatalogPtr struct {
	p atomic.Pointer[Catalog]
}

func (a *atomicCatalogPtr) load() *Catalog     { return a.p.Load() }
func (a *atomicCatalogPtr) store(c *Catalog)   { a.p.Store(c) }
