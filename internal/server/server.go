package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"TradeArena/internal/core"
	"TradeArena/internal/observability"
	"TradeArena/internal/query"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// CallerHeader carries the acting address on every command request.
const CallerHeader = "X-Arena-Caller"

// Server is the HTTP API over the settlement core and the query service.
type Server struct {
	echo   *echo.Echo
	addr   string
	core   *core.Core
	query  *query.Service
	health *observability.HealthChecker
	log    zerolog.Logger
}

type Deps struct {
	Core          *core.Core
	Query         *query.Service
	HealthChecker *observability.HealthChecker
	Logger        zerolog.Logger
}

func New(addr string, deps *Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(recoverNonFatal())

	s := &Server{
		echo:   e,
		addr:   addr,
		core:   deps.Core,
		query:  deps.Query,
		health: deps.HealthChecker,
		log:    deps.Logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	if s.health != nil {
		s.echo.GET("/healthz", echo.WrapHandler(http.HandlerFunc(s.health.LivenessHandler)))
		s.echo.GET("/readyz", echo.WrapHandler(http.HandlerFunc(s.health.ReadinessHandler)))
	}

	api := s.echo.Group("/api")
	competitions := api.Group("/competitions")

	competitions.POST("", s.CreateCompetition)
	competitions.GET("/:id", s.GetCompetition)
	competitions.POST("/:id/payout-structure", s.SetPayoutStructure)
	competitions.POST("/:id/register", s.Register)
	competitions.POST("/:id/deregister", s.Deregister)
	competitions.POST("/:id/swap", s.Swap)
	competitions.POST("/:id/snapshot", s.TakePriceSnapshot)
	competitions.POST("/:id/valuations", s.ComputeFinalValue)
	competitions.POST("/:id/placements", s.PlaceParticipants)
	competitions.POST("/:id/placements/reset", s.ResetPlacements)
	competitions.POST("/:id/judge/challenge", s.ChallengeJudge)
	competitions.POST("/:id/judge/update", s.UpdateJudge)
	competitions.POST("/:id/admin-fee/collect", s.CollectAdminFee)
	competitions.POST("/:id/prizes/collect", s.CollectPrize)
	competitions.POST("/:id/rescue", s.EmergencyRescue)

	competitions.GET("/:id/participants/:address", s.GetParticipant)
	competitions.GET("/:id/groups", s.GetPlacementGroups)
	competitions.GET("/:id/pools", s.GetPrizePools)
	competitions.GET("/:id/events", s.CompetitionEvents)
	competitions.GET("/:id/transfers/:address", s.ParticipantTransfers)
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// recoverNonFatal turns handler panics into 500 responses, except for the
// engine's FatalError: that one means the ledger no longer matches its
// accounting, and the process must die rather than keep serving.
func recoverNonFatal() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if fatal, ok := r.(*core.FatalError); ok {
						panic(fatal)
					}
					recovered, ok := r.(error)
					if !ok {
						recovered = fmt.Errorf("%v", r)
					}
					err = echo.NewHTTPError(http.StatusInternalServerError, recovered.Error())
				}
			}()
			return next(c)
		}
	}
}

// caller extracts the acting address from the request header.
func caller(c echo.Context) (string, error) {
	addr := c.Request().Header.Get(CallerHeader)
	if addr == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("missing %s header", CallerHeader))
	}
	return addr, nil
}

// httpError maps core errors onto HTTP status codes. Foreign errors
// (router/oracle failures) surface as bad gateway since they come from
// outside collaborators.
func httpError(err error) error {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}
	kind, ok := core.ErrorKind(err)
	if !ok {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	switch kind {
	case core.KindNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case core.KindUnauthorised:
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case core.KindUnprocessableEntity:
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case core.KindTransferFailed:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
