package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter creates a new HTTP router with all routes configured. fileHandler
// and metrics may be nil.
func NewRouter(
	artifactHandler *ArtifactHandler,
	fileHandler *FileHandler,
	metrics http.Handler,
	middlewares ...mux.MiddlewareFunc,
) http.Handler {
	router := mux.NewRouter()
	for _, mw := range middlewares {
		router.Use(mw)
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"artifact-stamper"}`))
	}).Methods(http.MethodGet)

	if metrics != nil {
		router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	if fileHandler != nil {
		router.HandleFunc("/files/{key}", fileHandler.ServeFile).Methods(http.MethodGet, http.MethodHead)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/artifacts", artifactHandler.UploadFile).Methods(http.MethodPost)
	api.HandleFunc("/artifacts/batch", artifactHandler.UploadBatch).Methods(http.MethodPost)
	api.HandleFunc("/artifacts/images", artifactHandler.UploadImages).Methods(http.MethodPost)
	api.HandleFunc("/uploads/{id}", artifactHandler.GetUpload).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:4173",
			"http://localhost:3000",
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
		},
		MaxAge: 300,
	})

	return c.Handler(router)
}
