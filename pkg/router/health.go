package router

// setupHealthRoutes registers the liveness endpoints backed by the health checker
func (r *Router) setupHealthRoutes() {
	handler := r.Container.Health.Handler()

	// both paths are kept for load balancers configured against either
	r.Engine.GET("/health", handler)
	r.Engine.GET("/api/health", handler)
}
