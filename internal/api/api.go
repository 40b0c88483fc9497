package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tcfw/fedchain/internal/node"
)

// APIHandler is a JSON-RPC service exposed under its Name.
type APIHandler interface {
	Setup(*Api) error
	Name() string
}

var (
	reg = []func() APIHandler{}
)

type BaseHandler struct {
	a *Api
}

func (b *BaseHandler) Setup(a *Api) error {
	b.a = a
	return nil
}

type Api struct {
	n *node.Node
	r *mux.Router
	s *http.Server
}

func NewAPI(n *node.Node) (*Api, error) {
	a := &Api{
		n: n,
		r: mux.NewRouter(),
	}

	rs := rpc.NewServer()
	rs.RegisterCodec(json2.NewCodec(), "application/json")

	for _, mk := range reg {
		s := mk()
		if err := s.Setup(a); err != nil {
			return nil, errors.Wrap(err, "setting up service")
		}
		if err := rs.RegisterService(s, s.Name()); err != nil {
			return nil, errors.Wrap(err, "registering service")
		}
	}

	a.r.Handle("/metrics", promhttp.HandlerFor(n.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)
	a.r.Handle("/", rs).Methods(http.MethodPost)

	return a, nil
}

func (a *Api) Handler() http.Handler {
	return a.r
}

func (a *Api) ListenAndServe(l net.Addr) error {
	lis, err := net.Listen("tcp", l.String())
	if err != nil {
		return err
	}

	a.s = &http.Server{
		Handler:           a.r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := a.s.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *Api) Shutdown(ctx context.Context) error {
	if a.s == nil {
		return nil
	}
	return a.s.Shutdown(ctx)
}
