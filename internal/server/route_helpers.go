package server

import (
	"net/http"
	"sort"
	"strings"

	"github.com/ternarybob/yojana/internal/handlers"
)

// RouteHandler is a function type for HTTP handlers
type RouteHandler func(http.ResponseWriter, *http.Request)

// MethodRouter maps HTTP methods to handlers
type MethodRouter map[string]RouteHandler

// RouteByMethod dispatches on r.Method. Unknown methods get a JSON 405 with
// an Allow header listing the registered ones.
func RouteByMethod(w http.ResponseWriter, r *http.Request, routes MethodRouter) {
	handler, ok := routes[r.Method]
	if !ok {
		allowed := make([]string, 0, len(routes))
		for method := range routes {
			allowed = append(allowed, method)
		}
		sort.Strings(allowed)
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		handlers.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	handler(w, r)
}

// RouteResourceCollection handles the list + create pattern:
// GET lists, POST creates
func RouteResourceCollection(w http.ResponseWriter, r *http.Request, list, create RouteHandler) {
	routes := make(MethodRouter)
	if list != nil {
		routes[http.MethodGet] = list
	}
	if create != nil {
		routes[http.MethodPost] = create
	}
	RouteByMethod(w, r, routes)
}
