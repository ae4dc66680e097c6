package velox

// Router dispatches requests by method and exact target path. It implements
// Handler, so it can be passed directly to ListenAndServe.
type Router struct {
	routes      map[string]map[string]Handler
	notFound    Handler
	middlewares []Middleware
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		routes: make(map[string]map[string]Handler),
		notFound: HandlerFunc(func(ctx *Context) error {
			return ctx.Error(404, "Not Found")
		}),
	}
}

// Use appends middleware applied to every matched route and the not-found
// handler.
func (r *Router) Use(mw ...Middleware) {
	r.middlewares = append(r.middlewares, mw...)
}

// Handle registers a handler for a method and exact path.
func (r *Router) Handle(method, path string, h Handler) {
	byPath, ok := r.routes[method]
	if !ok {
		byPath = make(map[string]Handler)
		r.routes[method] = byPath
	}
	byPath[path] = h
}

// GET registers a GET route.
func (r *Router) GET(path string, h HandlerFunc) {
	r.Handle("GET", path, h)
}

// POST registers a POST route.
func (r *Router) POST(path string, h HandlerFunc) {
	r.Handle("POST", path, h)
}

// PUT registers a PUT route.
func (r *Router) PUT(path string, h HandlerFunc) {
	r.Handle("PUT", path, h)
}

// DELETE registers a DELETE route.
func (r *Router) DELETE(path string, h HandlerFunc) {
	r.Handle("DELETE", path, h)
}

// NotFound replaces the handler used when no route matches.
func (r *Router) NotFound(h Handler) {
	r.notFound = h
}

// Serve dispatches the request.
func (r *Router) Serve(ctx *Context) error {
	h := r.notFound
	if byPath, ok := r.routes[ctx.Method()]; ok {
		if matched, ok := byPath[ctx.Path()]; ok {
			h = matched
		}
	}
	if len(r.middlewares) > 0 {
		h = Chain(r.middlewares...)(h)
	}
	return h.Serve(ctx)
}
