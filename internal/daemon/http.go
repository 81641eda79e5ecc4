package daemon

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// Handler builds the daemon's HTTP surface: /metrics (Prometheus
// exposition, see internal/obsmetrics) plus /controllers/{id}/{action} for
// the lifecycle RPCs, grounded on apps/control-actuator-go/main.go's
// http.HandleFunc("/metrics", ...) pattern, generalized to a small control
// surface instead of a read-only JSON dump.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metrics.Handler())
	mux.HandleFunc("/controllers", d.handleList)
	mux.HandleFunc("/controllers/", d.handleControllerAction)
	return mux
}

func (d *Daemon) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"controllers": d.List()})
}

// handleControllerAction routes POST /controllers/{id}/{action}[?value=x].
func (d *Daemon) handleControllerAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/controllers/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		http.Error(w, "expected /controllers/{id}/{action}", http.StatusBadRequest)
		return
	}
	id, action := parts[0], parts[1]

	var err error
	switch action {
	case "hold":
		err = d.Hold(id)
	case "pause":
		err = d.Pause(id)
	case "resume":
		err = d.Resume(id)
	case "stop":
		err = d.StopController(id)
	case "reload":
		err = d.Reload(r.Context(), id)
	case "set_setpoint":
		var value float64
		value, err = strconv.ParseFloat(r.URL.Query().Get("value"), 64)
		if err == nil {
			err = d.SetSetpoint(id, value)
		}
	default:
		http.Error(w, "unknown action: "+action, http.StatusNotFound)
		return
	}

	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
