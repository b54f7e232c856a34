// Package grpcserver implements the Ingestion admin gRPC server.
//
// It delegates all business logic to the scheduler and catalog.Service and
// handles only the gRPC transport concerns: error mapping and conversion
// between the domain model and protobuf well-known types.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"jobtracker/ingestion-service/internal/catalog"
	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/scheduler"
)

// Runs starts ingestion runs. *scheduler.Scheduler satisfies it.
type Runs interface {
	TriggerAll() bool
	RunSource(ctx context.Context, sourceID string) (model.RunOutcome, error)
}

// Server implements IngestionServer.
type Server struct {
	runs    Runs
	catalog *catalog.Service
}

var _ IngestionServer = (*Server)(nil)

// NewServer constructs a Server.
func NewServer(runs Runs, c *catalog.Service) *Server {
	return &Server{runs: runs, catalog: c}
}

// New returns a grpc.Server with the Ingestion and health services
// registered and a logging interceptor installed.
func New(srv *Server, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor(logger)))
	gs := grpc.NewServer(opts...)
	RegisterIngestionServer(gs, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs
}

// ─── RPC implementations ──────────────────────────────────────────────────────

// TriggerRunAll starts a background run of every enabled source. The result
// is false when a run is already in flight.
func (s *Server) TriggerRunAll(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BoolValue, error) {
	return wrapperspb.Bool(s.runs.TriggerAll()), nil
}

// RunSource runs one source synchronously and returns its outcome.
func (s *Server) RunSource(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "source id is required")
	}
	out, err := s.runs.RunSource(ctx, req.GetValue())
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(out)
}

// SweepExpired deactivates postings past their closing date.
func (s *Server) SweepExpired(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.Int64Value, error) {
	n, err := s.catalog.SweepExpired(ctx)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return wrapperspb.Int64(int64(n)), nil
}

// ListRunLogs lists recent run logs, or those of one source when a source id
// is given.
func (s *Server) ListRunLogs(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	var (
		logs []model.RunLog
		err  error
	)
	if id := req.GetValue(); id != "" {
		logs, err = s.catalog.ListRunLogsForSource(ctx, id, 0)
	} else {
		logs, err = s.catalog.ListRecentRunLogs(ctx, 0)
	}
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toList(logs)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// toGRPCError maps domain errors to gRPC status errors.
func toGRPCError(err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return status.Error(codes.NotFound, err.Error())
	}
	if errors.Is(err, scheduler.ErrRunInProgress) {
		return status.Error(codes.Aborted, err.Error())
	}
	var ve *catalog.ValidationError
	if errors.As(err, &ve) {
		return status.Error(codes.InvalidArgument, ve.Msg)
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, "internal server error")
}

// toStruct converts a JSON-tagged value to a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	var m map[string]any
	if err := roundTrip(v, &m); err != nil {
		return nil, err
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

// toList converts a JSON-tagged slice to a protobuf ListValue.
func toList(v any) (*structpb.ListValue, error) {
	var items []any
	if err := roundTrip(v, &items); err != nil {
		return nil, err
	}
	lv, err := structpb.NewList(items)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return lv, nil
}

func roundTrip(in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	if err := json.Unmarshal(b, out); err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return nil
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration", time.Since(start),
		)
		return resp, err
	}
}
