package pluginengine

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
)

// pluginSummary is the JSON shape served by the debug handler.
type pluginSummary struct {
	Name           string `json:"name"`
	PackageName    string `json:"packageName,omitempty"`
	PackageVersion string `json:"packageVersion,omitempty"`
	Version        string `json:"version,omitempty"`
	Title          string `json:"title,omitempty"`
	Description    string `json:"description,omitempty"`
}

// failureSummary is the JSON shape for failed plugin names.
type failureSummary struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

// NewDebugHandler returns a read-only HTTP handler exposing the engine's
// post-load registry for host debugging:
//
//	GET /plugins          all loaded plugins
//	GET /plugins/failed   failed names with reasons
//	GET /plugins/{name}   one loaded plugin, 404 when absent
//
// The handler only reads engine snapshots and is safe to mount any time
// after LoadPlugins returns.
func NewDebugHandler(engine *Engine) http.Handler {
	r := chi.NewRouter()

	r.Get("/plugins", func(w http.ResponseWriter, _ *http.Request) {
		active := engine.GetActivePlugins()
		out := make([]pluginSummary, 0, len(active))
		for _, name := range sortedKeys(active) {
			out = append(out, summarize(active[name]))
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/plugins/failed", func(w http.ResponseWriter, _ *http.Request) {
		loadErrors := engine.LoadErrors()
		out := make([]failureSummary, 0, len(loadErrors))
		for _, name := range engine.GetFailedPlugins() {
			fs := failureSummary{Name: name}
			if le := loadErrors[name]; le != nil {
				fs.Reason = string(le.Reason)
				if le.Err != nil {
					fs.Error = le.Err.Error()
				}
			}
			out = append(out, fs)
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/plugins/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		plugin := engine.GetPlugin(name)
		if plugin == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "plugin not loaded", "name": name})
			return
		}
		writeJSON(w, http.StatusOK, summarize(plugin))
	})

	return r
}

func summarize(p *PluginInstance) pluginSummary {
	return pluginSummary{
		Name:           p.Name(),
		PackageName:    p.PackageName(),
		PackageVersion: p.PackageVersion(),
		Version:        p.Version(),
		Title:          p.Title(),
		Description:    p.Description(),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
