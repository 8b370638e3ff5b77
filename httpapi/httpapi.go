// Package httpapi wires a service.Service onto net/http: plain handler
// funcs, no router dependency, JSON in and out.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/amcolex/sump-surfer/service"
)

// Server answers the /api/ila route tree and logs one line per request.
// The zero Server is not usable; construct one with NewServer.
type Server struct {
	mux *http.ServeMux

	// Logger receives one line per request. A nil Logger falls back to
	// log.Default(), the same way http.Server.ErrorLog does.
	Logger *log.Logger
}

// NewServer builds the /api/ila route tree described for the external
// interface: every route replies 200 and carries success/failure in the
// body rather than the status line.
func NewServer(svc *service.Service) *Server {
	return &Server{mux: newMux(svc)}
}

func (s *Server) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

// ServeHTTP dispatches to the route tree and logs the request line
// (method, path, status, duration) after the handler returns.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	s.mux.ServeHTTP(rec, r)

	s.logger().Printf("httpapi: %s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
}

// statusRecorder captures the status code the wrapped handler writes, so
// ServeHTTP can log it after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func newMux(svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/ila/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Info())
	})

	mux.HandleFunc("GET /api/ila/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	mux.HandleFunc("POST /api/ila/reset", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Reset())
	})

	mux.HandleFunc("POST /api/ila/init", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Init())
	})

	mux.HandleFunc("POST /api/ila/arm", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Arm())
	})

	mux.HandleFunc("POST /api/ila/trigger", func(w http.ResponseWriter, r *http.Request) {
		var cfg service.TriggerConfig
		if r.Body != nil {
			// A missing or malformed body configures the all-defaults
			// trigger rather than failing the request: trigger_type,
			// trigger_bits and post_trigger are all optional per the
			// route table.
			json.NewDecoder(r.Body).Decode(&cfg)
		}
		writeJSON(w, svc.ConfigureTrigger(cfg))
	})

	mux.HandleFunc("GET /api/ila/capture/{count}", func(w http.ResponseWriter, r *http.Request) {
		count, err := strconv.Atoi(r.PathValue("count"))
		if err != nil {
			writeJSON(w, service.ActionResult{Success: false, Message: "invalid count"})
			return
		}
		writeJSON(w, svc.Capture(0, 0, count))
	})

	mux.HandleFunc("GET /api/ila/capture/{hub}/{pod}/{count}", func(w http.ResponseWriter, r *http.Request) {
		hub, errHub := strconv.Atoi(r.PathValue("hub"))
		pod, errPod := strconv.Atoi(r.PathValue("pod"))
		count, errCount := strconv.Atoi(r.PathValue("count"))
		if errHub != nil || errPod != nil || errCount != nil {
			writeJSON(w, service.ActionResult{Success: false, Message: "invalid path parameters"})
			return
		}
		writeJSON(w, svc.Capture(uint8(hub), uint8(pod), count))
	})

	mux.HandleFunc("GET /api/ila/reg/{offset}", func(w http.ResponseWriter, r *http.Request) {
		offset, err := strconv.Atoi(r.PathValue("offset"))
		if err != nil {
			writeJSON(w, service.RegisterResult{})
			return
		}
		writeJSON(w, svc.ReadRegister(offset))
	})

	return mux
}

// writeJSON always answers 200, per the external interface's note that
// errors surface through the body rather than the status line.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpapi: encode response: %v", err)
	}
}
