package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mycoharvest/officeroute/internal/attendance"
	"github.com/mycoharvest/officeroute/internal/auth"
	"github.com/mycoharvest/officeroute/internal/insight"
	"github.com/mycoharvest/officeroute/internal/setting"
	"github.com/mycoharvest/officeroute/internal/sync"
	"github.com/mycoharvest/officeroute/internal/user"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			// geolocation stays permitted, clients report positions for check-in
			w.Header().Set("Permissions-Policy", "camera=(), microphone=()")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Deps carries the handlers and the auth service the routes need.
type Deps struct {
	Auth       *auth.Service
	AuthH      *auth.Handler
	Users      *user.Handler
	Attendance *attendance.Handler
	Sync       *sync.Handler
	Settings   *setting.Handler
	Insights   *insight.Handler
}

// RegisterRoutes mounts HTTP handlers on the standard library's ServeMux.
func RegisterRoutes(d Deps, logger *zap.SugaredLogger) http.Handler {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc("GET /officeroute-api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// auth
	mux.HandleFunc("POST /officeroute-api/auth/login", d.AuthH.Login)
	mux.HandleFunc("POST /officeroute-api/auth/refresh", d.AuthH.Refresh)
	mux.HandleFunc("POST /officeroute-api/auth/logout", d.AuthH.Logout)

	// attendance, any signed-in user
	mux.Handle("POST /officeroute-api/attendance/check-in", d.Auth.Require(http.HandlerFunc(d.Attendance.CheckIn)))
	mux.Handle("POST /officeroute-api/attendance/check-out", d.Auth.Require(http.HandlerFunc(d.Attendance.CheckOut)))
	mux.Handle("GET /officeroute-api/attendance/today", d.Auth.Require(http.HandlerFunc(d.Attendance.Today)))
	mux.Handle("GET /officeroute-api/attendance/history", d.Auth.Require(http.HandlerFunc(d.Attendance.History)))

	// admin dashboard
	mux.Handle("GET /officeroute-api/attendance", d.Auth.RequireAdmin(http.HandlerFunc(d.Attendance.List)))
	mux.Handle("GET /officeroute-api/attendance/export", d.Auth.RequireAdmin(http.HandlerFunc(d.Attendance.ExportCSV)))
	mux.Handle("GET /officeroute-api/attendance/stats/today", d.Auth.RequireAdmin(http.HandlerFunc(d.Attendance.TodayStats)))
	mux.Handle("GET /officeroute-api/insights/today", d.Auth.RequireAdmin(http.HandlerFunc(d.Insights.Today)))

	// employee administration
	mux.Handle("GET /officeroute-api/employees", d.Auth.RequireAdmin(http.HandlerFunc(d.Users.List)))
	mux.Handle("POST /officeroute-api/employees", d.Auth.RequireAdmin(http.HandlerFunc(d.Users.Create)))
	mux.Handle("GET /officeroute-api/employees/{id}", d.Auth.RequireAdmin(http.HandlerFunc(d.Users.Get)))
	mux.Handle("PUT /officeroute-api/employees/{id}", d.Auth.RequireAdmin(http.HandlerFunc(d.Users.Update)))

	// cloud sync
	mux.Handle("POST /officeroute-api/sync", d.Auth.RequireAdmin(http.HandlerFunc(d.Sync.Run)))
	mux.Handle("GET /officeroute-api/sync/status", d.Auth.RequireAdmin(http.HandlerFunc(d.Sync.Status)))
	mux.Handle("GET /officeroute-api/sync/config", d.Auth.RequireAdmin(http.HandlerFunc(d.Settings.GetSyncConfig)))
	mux.Handle("PUT /officeroute-api/sync/config", d.Auth.RequireAdmin(http.HandlerFunc(d.Settings.SetSyncConfig)))

	return LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux))
}
