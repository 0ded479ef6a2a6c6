package app

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/pterm/pterm"

	"github.com/ollagate/ollagate/internal/logger"
	"github.com/ollagate/ollagate/internal/util"
)

// RouteInfo describes one registered route for wiring and the startup table.
type RouteInfo struct {
	Handler     http.HandlerFunc
	Description string
	Method      string
	Pattern     string
	Order       int
	Gated       bool
}

// RouteRegistry collects routes before the mux is built. Gated routes pass
// through the admission chain; open routes are served directly.
type RouteRegistry struct {
	routes   []RouteInfo
	logger   *logger.StyledLogger
	orderSeq int
}

func NewRouteRegistry(styledLogger *logger.StyledLogger) *RouteRegistry {
	return &RouteRegistry{logger: styledLogger}
}

func (r *RouteRegistry) RegisterOpen(method, pattern string, handler http.HandlerFunc, description string) {
	r.register(method, pattern, handler, description, false)
}

func (r *RouteRegistry) RegisterGated(method, pattern string, handler http.HandlerFunc, description string) {
	r.register(method, pattern, handler, description, true)
}

func (r *RouteRegistry) register(method, pattern string, handler http.HandlerFunc, description string, gated bool) {
	r.routes = append(r.routes, RouteInfo{
		Handler:     handler,
		Description: description,
		Method:      method,
		Pattern:     pattern,
		Order:       r.orderSeq,
		Gated:       gated,
	})
	r.orderSeq++
}

// WireUp installs every route on the mux, wrapping gated routes with the
// supplied middleware.
func (r *RouteRegistry) WireUp(mux *http.ServeMux, gate func(http.Handler) http.Handler) {
	for _, info := range r.routes {
		var handler http.Handler = info.Handler
		if info.Gated && gate != nil {
			handler = gate(handler)
		}
		mux.Handle(info.Method+" "+info.Pattern, handler)
	}
	r.logRoutesTable()
}

func (r *RouteRegistry) logRoutesTable() {
	if len(r.routes) == 0 {
		return
	}

	entries := make([]RouteInfo, len(r.routes))
	copy(entries, r.routes)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Order < entries[j].Order
	})

	tableData := [][]string{
		{"ROUTE", "METHOD", "DESCRIPTION"},
	}
	for _, entry := range entries {
		tableData = append(tableData, []string{
			entry.Pattern,
			entry.Method,
			entry.Description,
		})
	}

	r.logger.InfoWithCount("Registered web routes", len(entries))
	if util.ShouldUseColors() {
		tableString, _ := pterm.DefaultTable.WithHasHeader().WithData(tableData).Srender()
		fmt.Print(tableString)
	}
}
