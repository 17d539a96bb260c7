package main

import (
	"context"
	"errors"
	"flag"
	"myfigma-server/core"
	"myfigma-server/handlers/api/documents"
	"myfigma-server/handlers/api/elements"
	"myfigma-server/handlers/websocket"
	"myfigma-server/rooms"
	"myfigma-server/stores"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type roomSummary struct {
	ID         string `json:"id"`
	Users      int    `json:"users"`
	LastActive *int64 `json:"lastActive,omitempty"`
}

func allowLocalOrigin(r *http.Request, origin string) bool {
	parsed, err := url.Parse(origin)
	if origin == "" || err != nil {
		return false
	}

	switch parsed.Scheme {
	case "http", "https":
		switch parsed.Hostname() {
		case "localhost", "127.0.0.1", "::1":
			return true
		}
	}
	return false
}

// listRooms merges live user counts with the registry's activity times.
func listRooms(ctx context.Context, active map[string]int, registry core.RoomRegistry) []roomSummary {
	byID := make(map[string]*roomSummary, len(active))
	for id, users := range active {
		byID[id] = &roomSummary{ID: id, Users: users}
	}

	if registry != nil {
		stored, err := registry.ListRooms(ctx)
		if err != nil {
			logrus.WithError(err).Warn("failed to list rooms from registry")
		}
		for _, room := range stored {
			entry, ok := byID[room.ID]
			if !ok {
				entry = &roomSummary{ID: room.ID}
				byID[room.ID] = entry
			}
			if room.LastActive > 0 {
				last := room.LastActive
				entry.LastActive = &last
			}
		}
	}

	list := make([]roomSummary, 0, len(byID))
	for _, entry := range byID {
		list = append(list, *entry)
	}

	lastActive := func(r roomSummary) int64 {
		if r.LastActive == nil {
			return 0
		}
		return *r.LastActive
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Users != list[j].Users {
			return list[i].Users > list[j].Users
		}
		if li, lj := lastActive(list[i]), lastActive(list[j]); li != lj {
			return li > lj
		}
		return list[i].ID < list[j].ID
	})
	return list
}

func setupRouter(store stores.Store, registry core.RoomRegistry, svc *rooms.Service, hub *websocket.Hub) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  allowLocalOrigin,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v2", func(r chi.Router) {
		r.Post("/post/", documents.HandleCreate(store))
		r.Get("/{id}/", documents.HandleGet(store))
	})

	r.Get("/api/rooms", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, listRooms(r.Context(), hub.ActiveRooms(), registry))
	})

	r.Route("/api/rooms/{roomId}", func(r chi.Router) {
		elements.Routes(r, svc)
	})

	r.Handle("/socket.io/", hub.Server().ServeHandler(nil))
	return r
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	logLevel := flag.String("loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")
	listenAddr := flag.String("listen", ":3002", "Set the server listen address")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	store := stores.GetStore()
	var registry core.RoomRegistry
	if rr, ok := store.(core.RoomRegistry); ok {
		registry = rr
	}

	svc := rooms.NewService(rooms.Options{
		Shapes:    store,
		Documents: store,
		Registry:  registry,
	})
	hub := websocket.NewHub(svc, registry)
	svc.SetBroadcaster(hub)

	server := &http.Server{
		Addr:    *listenAddr,
		Handler: setupRouter(store, registry, svc, hub),
	}

	logrus.WithField("addr", *listenAddr).Info("starting server")
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(server, hub)
}

func waitForShutdown(server *http.Server, hub *websocket.Hub) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	<-ctx.Done()

	logrus.Info("Shutting down...")
	hub.Server().Close(nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("graceful shutdown failed")
	}
}
