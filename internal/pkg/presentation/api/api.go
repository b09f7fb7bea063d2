package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/space-monitor/internal/pkg/application/broadcast"
	"github.com/diwise/space-monitor/internal/pkg/application/facility"
	"github.com/diwise/space-monitor/internal/pkg/infrastructure/logging"
	"github.com/diwise/space-monitor/internal/pkg/infrastructure/metrics"
	"github.com/diwise/space-monitor/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("space-monitor/api")

type Config struct {
	UploadsDir     string
	AllowedOrigins []string
	Events         http.Handler
}

func RegisterHandlers(ctx context.Context, router *chi.Mux, cfg Config, svc facility.Facility, hub *broadcast.Hub) *chi.Mux {
	log := logging.GetLoggerFromContext(ctx)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.Handle("/metrics", metrics.Handler())

	ws := broadcast.NewWebSocketHandler(ctx, log, hub, cfg.AllowedOrigins)
	router.Get("/", ws)
	router.Get("/ws", ws)

	if cfg.UploadsDir != "" {
		FileServer(router, "/private_uploads", http.Dir(cfg.UploadsDir))
	}

	router.Route("/api", func(r chi.Router) {
		if cfg.Events != nil {
			r.Handle("/events", cfg.Events)
		}

		r.Route("/users", func(r chi.Router) {
			r.Get("/getall", getUsersHandler(log, svc))
			r.Post("/register", registerHandler(log, svc))
			r.Post("/login", loginHandler(log, svc))
		})

		r.Route("/floorplans", func(r chi.Router) {
			r.Get("/", getFloorplansHandler(log, svc))
			r.Get("/getf", getFloorplansHandler(log, svc))
			r.Get("/getsensors", getSensorInfoHandler(log, svc))
			r.Get("/getd", getDevicesHandler(log, svc))
			r.Put("/putd/{id}", moveDeviceHandler(log, svc))
			r.Post("/", createFloorplanHandler(log, svc))
			r.Get("/{id}", getFloorplanHandler(log, svc))
			r.Put("/{id}", updateFloorplanHandler(log, svc))
			r.Get("/{id}/devices", getFloorplanDevicesHandler(log, svc))
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/getd", getDevicesHandler(log, svc))
			r.Put("/putd/{id}", moveDeviceHandler(log, svc))
			r.Get("/gettypes", getDeviceTypesHandler(log, svc))
			r.Post("/postd", createDeviceHandler(log, svc))
			r.Put("/dragd/{id}", dragDeviceHandler(log, svc))
			r.Get("/{id}", getDeviceHandler(log, svc))
			r.Post("/{id}/readings", recordReadingHandler(log, svc))
		})
	})

	return router
}

func getUsersHandler(log zerolog.Logger, svc facility.Facility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-users")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		users, err := svc.GetUsers(ctx)
		if err != nil {
			writeError(w, requestLogger, err, "unable to fetch users")
			return
		}

		writeJSON(w, http.StatusOK, users)
	}
}

func registerHandler(log zerolog.Logger, svc facility.Facility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "register-user")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		credentials := types.Credentials{}
		if err = decodeBody(r, &credentials); err != nil {
			writeError(w, requestLogger, err, "invalid registration request")
			return
		}

		user, err := svc.Register(ctx, credentials)
		if err != nil {
			writeError(w, requestLogger, err, "unable to register user")
			return
		}

		writeJSON(w, http.StatusCreated, registered{Message: "User registered", ID: user.ID, Username: user.Username})
	}
}

func loginHandler(log zerolog.Logger, svc facility.Facility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "login")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		credentials := types.Credentials{}
		if err = decodeBody(r, &credentials); err != nil {
			writeError(w, requestLogger, err, "invalid login request")
			return
		}

		token, err := svc.Login(ctx, credentials)
		if err != nil {
			writeError(w, requestLogger.With().Str("username", credentials.Username).Logger(), err, "login failed")
			return
		}

		writeJSON(w, http.StatusOK, token)
	}
}

func getFloorplansHandler(log zerolog.Logger, svc facility.Facility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-floorplans")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		floorplans, err := svc.GetFloorplans(ctx)
		if err != nil {
			writeError(w, requestLogger, err, "unable to fetch floor plans")
			return
		}

		writeJSON(w, http.StatusOK, floorplans)
	}
}

func getFloorplanHandler(log zerolog.Logger, svc facility.Facility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-floorplan")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		id, err := urlParamID(r)
		if err != nil {
			writeError(w, requestLogger, err, "invalid floor plan id")
			return
		}

		floorplan, err := svc.GetFloorplan(ctx, id)
		if err != nil {
			writeError(w, requestLogger, err, "unable to fetch floor plan")
			return
		}

		writeJSON(w, http.StatusOK, floorplan)
	}
}

func createFloorplanHandler(log zerolog.Logger, svc facility.Facility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-floorplan")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		floorplan := types.Floorplan{}
		if err = decodeBody(r, &floorplan); err != nil {
			writeError(w, requestLogger, err, "invalid floor plan")
			return
		}

		created, err := svc.CreateFloorplan(ctx, floorplan)
		if err != nil {
			writeError(w, requestLogger, err, "unable to create floor plan")
			return
		}

		writeJSON(w, http.StatusCreated, created)
	}
}

func updateFloorplanHandler(log zerolog.Logger, svc facility.Facility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "update-floorplan")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		id, err := urlParamID(r)
		if err != nil {
			writeError(w, requestLogger, err, "invalid floor plan id")
			return
		}

		floorplan := types.Floorplan{}
		if err = decodeBody(r, &floorplan); err != nil {
			writeError(w, requestLogger, err, "invalid floor plan")
			return
		}

		updated, err := svc.UpdateFloorplan(ctx, id, floorplan)
		if err != nil {
			writeError(w, requestLogger, err, "unable to update floor plan")
			return
		}

		writeJSON(w, http.StatusOK, updated)
	}
}

func getFloorplanDevicesHandler(log zerolog.Logger, svc facility.Facility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-floorplan-devices")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		id, err := urlParamID(r)
		if err != nil {
			writeError(w, requestLogger, err, "invalid floor plan id")
			return
		}

		devices, err := svc.GetFloorplanDevices(ctx, id)
		if err != nil {
			writeError(w, requestLogger, err, "unable to fetch devices on floor plan")
			return
		}

		writeJSON(w, http.StatusOK, devices)
	}
}

func getSensorInfoHandler(log zerolog.Logger, svc facility.Facility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-sensor-info")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		var floorplanID *uint
		if f := r.URL.Query().Get("floorplan_id"); f != "" {
			id, parseErr := strconv.ParseUint(f, 10, 32)
			if parseErr != nil {
				err = parseErr
				writeError(w, requestLogger, badRequest(err), "invalid floorplan_id")
				return
			}
			fid := uint(id)
			floorplanID = &fid
		}

		limit := 0
		if l := r.URL.Query().Get("limit"); l != "" {
			limit, err = strconv.Atoi(l)
			if err != nil {
				writeError(w, requestLogger, badRequest(err), "invalid limit")
				return
			}
		}

		infos, err := svc.GetSensorInfo(ctx, floorplanID, limit)
		if err != nil {
			writeError(w, requestLogger, err, "unable to fetch sensor info")
			return
		}

		writeJSON(w, http.StatusOK, infos)
	}
}

func getDeviceTypesHandler(log zerolog.Logger, svc facility.Facility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-device-types")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		deviceTypes, err := svc.GetDeviceTypes(ctx)
		if err != nil {
			writeError(w, requestLogger, err, "unable to fetch device types")
			return
		}

		writeJSON(w, http.StatusOK, deviceTypes)
	}
}

func getDevicesHandler(log zerolog.Logger, svc facility.Facility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-devices")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		devices, err := svc.GetDevices(ctx)
		if err != nil {
			writeError(w, requestLogger, err, "unable to fetch devices")
			return
		}

		writeJSON(w, http.StatusOK, devices)
	}
}

func getDeviceHandler(log zerolog.Logger, svc facility.Facility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "get-device")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		id, err := urlParamID(r)
		if err != nil {
			writeError(w, requestLogger, err, "invalid device id")
			return
		}

		device, err := svc.GetDevice(ctx, id)
		if err != nil {
			writeError(w, requestLogger.With().Uint("device_id", id).Logger(), err, "unable to fetch device")
			return
		}

		writeJSON(w, http.StatusOK, device)
	}
}

func createDeviceHandler(log zerolog.Logger, svc facility.Facility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "create-device")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		device := types.NewDevice{}
		if err = decodeBody(r, &device); err != nil {
			writeError(w, requestLogger, err, "invalid device")
			return
		}

		created, err := svc.CreateDevice(ctx, device)
		if err != nil {
			writeError(w, requestLogger, err, "unable to create device")
			return
		}

		writeJSON(w, http.StatusCreated, created)
	}
}

func moveDeviceHandler(log zerolog.Logger, svc facility.Facility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "move-device")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		id, err := urlParamID(r)
		if err != nil {
			writeError(w, requestLogger, err, "invalid device id")
			return
		}

		location := types.DeviceLocation{}
		if err = decodeBody(r, &location); err != nil {
			writeError(w, requestLogger, err, "invalid device location")
			return
		}

		device, err := svc.MoveDevice(ctx, id, location)
		if err != nil {
			writeError(w, requestLogger.With().Uint("device_id", id).Logger(), err, "unable to move device")
			return
		}

		writeJSON(w, http.StatusOK, device)
	}
}

func dragDeviceHandler(log zerolog.Logger, svc facility.Facility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "drag-device")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		id, err := urlParamID(r)
		if err != nil {
			writeError(w, requestLogger, err, "invalid device id")
			return
		}

		drag := types.DeviceDrag{}
		if err = decodeBody(r, &drag); err != nil {
			writeError(w, requestLogger, err, "invalid drag")
			return
		}

		device, err := svc.DragDevice(ctx, id, drag)
		if err != nil {
			writeError(w, requestLogger.With().Uint("device_id", id).Logger(), err, "unable to drag device")
			return
		}

		writeJSON(w, http.StatusOK, device)
	}
}

func recordReadingHandler(log zerolog.Logger, svc facility.Facility) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		defer r.Body.Close()

		ctx, span := tracer.Start(r.Context(), "record-reading")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()
		ctx, requestLogger := logging.AddTraceIDToLoggerAndStoreInContext(span, log, ctx)

		id, err := urlParamID(r)
		if err != nil {
			writeError(w, requestLogger, err, "invalid device id")
			return
		}

		reading := types.Reading{}
		if err = decodeBody(r, &reading); err != nil {
			writeError(w, requestLogger, err, "invalid reading")
			return
		}

		reading.DeviceID = id
		reading.PathTopic = ""

		device, err := svc.RecordReading(ctx, reading, "api")
		if err != nil {
			writeError(w, requestLogger.With().Uint("device_id", id).Logger(), err, "unable to record reading")
			return
		}

		writeJSON(w, http.StatusCreated, device)
	}
}
