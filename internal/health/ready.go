package health

import "sync/atomic"

// Readiness 启动阶段就绪标记：存储就绪且 HTTP 已监听
type Readiness struct {
	storeReady atomic.Bool
	httpReady  atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetStoreReady(v bool) { r.storeReady.Store(v) }
func (r *Readiness) SetHTTPReady(v bool)  { r.httpReady.Store(v) }

func (r *Readiness) Ready() bool {
	return r.storeReady.Load() && r.httpReady.Load()
}
