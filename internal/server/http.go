package server

import (
	"strconv"

	"LabSentry/internal/biz"
	"LabSentry/internal/conf"
	"LabSentry/internal/data"
	"LabSentry/internal/server/middleware"
	"LabSentry/internal/service"
	pkgerrors "LabSentry/pkg/errors"
	pkglog "LabSentry/pkg/log"

	"errors"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Server, svc *service.IncidentService, logger log.Logger) *http.Server {
	logHelper := pkglog.NewLogHelper(logger)

	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			middleware.Logging(logHelper),
		),
	}
	if c.Http.Network != "" {
		opts = append(opts, http.Network(c.Http.Network))
	}
	if c.Http.Addr != "" {
		opts = append(opts, http.Address(c.Http.Addr))
	}
	if c.Http.Timeout != nil {
		opts = append(opts, http.Timeout(c.Http.Timeout.AsDuration()))
	}
	srv := http.NewServer(opts...)

	registerRoutes(srv, svc)

	return srv
}

// registerRoutes wires the v1 API onto the server.
func registerRoutes(srv *http.Server, svc *service.IncidentService) {
	r := srv.Route("/v1")

	r.POST("/alerts", func(ctx http.Context) error {
		var req service.SubmitAlertRequest
		if err := ctx.Bind(&req); err != nil {
			return kerrors.BadRequest("INVALID_BODY", err.Error())
		}
		reply, err := svc.SubmitAlert(ctx, &req)
		if err != nil {
			return mapError(err)
		}
		return ctx.Result(200, reply)
	})

	r.GET("/approvals", func(ctx http.Context) error {
		reply, err := svc.ListApprovals(ctx)
		if err != nil {
			return mapError(err)
		}
		return ctx.Result(200, reply)
	})

	r.POST("/approvals/{alert_id}/approve", func(ctx http.Context) error {
		alertID := ctx.Vars().Get("alert_id")
		var req service.ApproveActionRequest
		if err := ctx.Bind(&req); err != nil {
			return kerrors.BadRequest("INVALID_BODY", err.Error())
		}
		reply, err := svc.ApproveAction(ctx, alertID, &req)
		if err != nil {
			return mapError(err)
		}
		return ctx.Result(200, reply)
	})

	r.GET("/remediations", func(ctx http.Context) error {
		reply, err := svc.ListRemediations(ctx, queryLimit(ctx))
		if err != nil {
			return mapError(err)
		}
		return ctx.Result(200, reply)
	})

	r.GET("/breakers", func(ctx http.Context) error {
		reply, err := svc.Breakers(ctx)
		if err != nil {
			return mapError(err)
		}
		return ctx.Result(200, reply)
	})

	r.GET("/power/status", func(ctx http.Context) error {
		reply, err := svc.PowerStatus(ctx)
		if err != nil {
			return mapError(err)
		}
		return ctx.Result(200, reply)
	})

	r.GET("/power/events", func(ctx http.Context) error {
		reply, err := svc.ListPowerEvents(ctx, queryLimit(ctx))
		if err != nil {
			return mapError(err)
		}
		return ctx.Result(200, reply)
	})

	r.GET("/shutdown/sequences", func(ctx http.Context) error {
		reply, err := svc.ListSequences(ctx, queryLimit(ctx))
		if err != nil {
			return mapError(err)
		}
		return ctx.Result(200, reply)
	})
}

// queryLimit parses the optional ?limit= query parameter. Zero means "use
// the service default".
func queryLimit(ctx http.Context) int {
	raw := ctx.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

// mapError converts biz and data layer errors into transport errors with
// proper HTTP status codes.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	// Already a transport error, pass through.
	if kerr := new(kerrors.Error); errors.As(err, &kerr) {
		return err
	}

	if biz.IsApprovalNotFound(err) {
		return kerrors.NotFound("APPROVAL_NOT_FOUND", err.Error())
	}
	if errors.Is(err, data.ErrDuplicatePending) {
		return kerrors.Conflict("APPROVAL_EXISTS", err.Error())
	}

	if dbErr := pkgerrors.ClassifyDBError(err); dbErr != nil {
		switch dbErr.Type {
		case pkgerrors.ErrorTypeNotFound:
			return kerrors.NotFound("NOT_FOUND", err.Error())
		case pkgerrors.ErrorTypeConnectionError:
			return kerrors.ServiceUnavailable("DATABASE_UNAVAILABLE", err.Error())
		}
	}

	return kerrors.InternalServer("INTERNAL", err.Error())
}
