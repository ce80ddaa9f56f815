package httpcontrol

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/udpc-agent/base"
	"github.com/relex/udpc-agent/defs"
	"github.com/relex/udpc-agent/destination"
)

// DestinationPath is the URL path to read and change the forwarding destination
const DestinationPath = "/destination"

// Server is a HTTP control plane to read and change the forwarding destination
//
//	GET /destination              returns "A.B.C.D:P\n"
//	PUT or POST /destination      with body "A.B.C.D[:P]", optionally ending with newline
type Server struct {
	logger      logger.Logger
	controller  base.DestinationController
	socket      net.Listener
	server      *http.Server
	stopRequest channels.Awaitable
	stopped     *channels.SignalAwaitable
}

// NewServer creates a control server listening on the given address
//
// The address may use port zero; the actual address is returned by Address()
func NewServer(parentLogger logger.Logger, address string, controller base.DestinationController,
	stopRequest channels.Awaitable) (*Server, error) {

	socket, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	srv := &Server{
		logger: parentLogger.WithFields(logger.Fields{
			defs.LabelComponent: "HTTPControl",
			defs.LabelAddress:   socket.Addr().String(),
		}),
		controller:  controller,
		socket:      socket,
		stopRequest: stopRequest,
		stopped:     channels.NewSignalAwaitable(),
	}
	srv.server = &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: defs.ControlShutdownTimeout,
	}
	return srv, nil
}

// AddRoutes registers control handlers
func (srv *Server) AddRoutes(r *mux.Router) {
	r.Methods("GET").Path(DestinationPath).HandlerFunc(srv.GetDestination)
	r.Methods("PUT", "POST").Path(DestinationPath).HandlerFunc(srv.SetDestination)
}

// Handler creates a router with all control handlers
func (srv *Server) Handler() *mux.Router {
	r := mux.NewRouter()
	srv.AddRoutes(r)
	return r
}

// Address returns the actual listening address
func (srv *Server) Address() string {
	return srv.socket.Addr().String()
}

// Start starts serving in background until stop is requested
func (srv *Server) Start() {
	go func() {
		srv.logger.Info("start serving")
		if err := srv.server.Serve(srv.socket); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.logger.Error("serve() error: ", err)
		}
	}()
	go func() {
		defer srv.stopped.Signal()
		srv.stopRequest.WaitForever()
		ctx, cancel := context.WithTimeout(context.Background(), defs.ControlShutdownTimeout)
		defer cancel()
		if err := srv.server.Shutdown(ctx); err != nil {
			srv.logger.Warn("shutdown error: ", err)
		}
		srv.logger.Info("stopped")
	}()
}

// Stopped returns an Awaitable which is signaled when stopped
func (srv *Server) Stopped() channels.Awaitable {
	return srv.stopped
}

// GetDestination responds with the current destination in text
func (srv *Server) GetDestination(resp http.ResponseWriter, req *http.Request) {
	srv.respondText(resp, http.StatusOK, srv.controller.CurrentConfig())
}

// SetDestination parses the request body as destination and applies it
func (srv *Server) SetDestination(resp http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(io.LimitReader(req.Body, int64(defs.MaxConfigTextLength+1)))
	if err != nil {
		http.Error(resp, err.Error(), http.StatusBadRequest)
		return
	}

	err = srv.controller.Configure(body)
	switch {
	case err == nil:
		srv.respondText(resp, http.StatusOK, srv.controller.CurrentConfig())
	case errors.Is(err, destination.ErrInputTooLong):
		http.Error(resp, err.Error(), http.StatusRequestEntityTooLarge)
	default:
		http.Error(resp, err.Error(), http.StatusBadRequest)
	}
}

func (srv *Server) respondText(resp http.ResponseWriter, status int, text string) {
	resp.Header().Set("Content-Type", "text/plain; charset=utf-8")
	resp.WriteHeader(status)
	if _, err := io.WriteString(resp, text); err != nil {
		srv.logger.Warn("write error: ", err)
	}
}
