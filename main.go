package main

import (
	"context"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mager/chromamind/catalog"
	"github.com/mager/chromamind/config"
	"github.com/mager/chromamind/database"
	catalogHandler "github.com/mager/chromamind/handler/catalog"
	"github.com/mager/chromamind/handler/health"
	streamHandler "github.com/mager/chromamind/handler/stream"
	timelineHandler "github.com/mager/chromamind/handler/timeline"
	"github.com/mager/chromamind/logger"
	"github.com/mager/chromamind/show"
	"github.com/mager/chromamind/stream"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Route is an http.Handler that knows the mux pattern
// under which it will be registered.
type Route interface {
	http.Handler

	// Pattern reports the path at which this is registered.
	Pattern() string

	// Methods reports the HTTP methods the route answers.
	Methods() []string
}

//	@title			Chromamind
//	@version		1.0
//	@description	Audio-reactive LED timelines for wearable light strips

// @host		localhost:8080
// @BasePath	/
func main() {
	fx.New(
		fx.Provide(
			fx.Annotate(
				NewHTTPServer,
				fx.ParamTags(``, ``, ``, `group:"routes"`),
			),
			config.Options,
			config.ProvideProfile,
			logger.Options,
			database.Options,
			catalog.Options,
			stream.ProvideWebsocketDialer,
			stream.ProvideScheduler,
			show.Options,

			AsRoute(health.NewHealthHandler),
			AsRoute(timelineHandler.NewLoadHandler),
			AsRoute(timelineHandler.NewGetHandler),
			AsRoute(timelineHandler.NewFrameHandler),
			AsRoute(timelineHandler.NewExportHandler),
			AsRoute(streamHandler.NewStartHandler),
			AsRoute(streamHandler.NewStopHandler),
			AsRoute(streamHandler.NewStatusHandler),
			AsRoute(catalogHandler.NewListHandler),
		),
		fx.Invoke(func(*http.Server) {}),
	).Run()
}

func NewHTTPServer(
	lc fx.Lifecycle,
	cfg config.Config,
	logger *zap.SugaredLogger,
	routes []Route,
	scheduler *stream.Scheduler,
) *http.Server {
	srv := &http.Server{Addr: cfg.Port, Handler: jsonMiddleware(NewRouter(routes))}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Infow("Starting HTTP server", "addr", srv.Addr, "routes", len(routes))
			go srv.Serve(ln)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			scheduler.Stop()
			return srv.Shutdown(ctx)
		},
	})

	return srv
}

// NewRouter registers every route under its pattern and methods.
func NewRouter(routes []Route) *mux.Router {
	r := mux.NewRouter()
	for _, route := range routes {
		r.Handle(route.Pattern(), route).Methods(route.Methods()...)
	}
	return r
}

// AsRoute annotates the given constructor to state that
// it provides a route to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
