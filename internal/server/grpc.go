package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/repository"
)

const statementServiceName = "statements.v1.StatementService"

// StatementServiceServer is the read-only gRPC view of statements.
// Requests carry {"id": "<uuid>"}; responses are the statement JSON as a Struct.
type StatementServiceServer interface {
	GetStatement(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var statementServiceDesc = grpc.ServiceDesc{
	ServiceName: statementServiceName,
	HandlerType: (*StatementServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatement", Handler: unaryHandler("GetStatement", StatementServiceServer.GetStatement)},
		{MethodName: "ListTransactions", Handler: unaryHandler("ListTransactions", StatementServiceServer.ListTransactions)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "statements/v1/statements.proto",
}

func unaryHandler(method string, call func(StatementServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StatementServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + statementServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(StatementServiceServer), ctx, req.(*structpb.Struct))
		})
	}
}

// StatementMethod returns the full gRPC method name for clients calling Invoke.
func StatementMethod(method string) string {
	return "/" + statementServiceName + "/" + method
}

type StatementService struct {
	statements   repository.StatementRepository
	transactions repository.TransactionRepository
	logger       *slog.Logger
}

func NewStatementService(statements repository.StatementRepository, transactions repository.TransactionRepository, logger *slog.Logger) *StatementService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatementService{statements: statements, transactions: transactions, logger: logger}
}

func (s *StatementService) GetStatement(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requestID(req)
	if err != nil {
		return nil, err
	}
	st, err := s.statements.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("grpc.get_statement.failed", "statement_id", id, "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(st)
}

func (s *StatementService) ListTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requestID(req)
	if err != nil {
		return nil, err
	}
	if _, err := s.statements.GetByID(ctx, id); err != nil {
		return nil, common.ToStatus(err)
	}
	txns, err := s.transactions.ListByStatement(ctx, id)
	if err != nil {
		s.logger.Warn("grpc.list_transactions.failed", "statement_id", id, "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(map[string]any{"statement_id": id, "transactions": txns})
}

func requestID(req *structpb.Struct) (uuid.UUID, error) {
	raw := req.GetFields()["id"].GetStringValue()
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, common.InvalidArgumentErrorf("id must be a UUID, got %q", raw)
	}
	return id, nil
}

// toStruct round-trips v through its JSON form so the Struct matches the HTTP payloads.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}

// NewGRPCServer registers health, reflection and the statement service.
func NewGRPCServer(svc StatementServiceServer, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(statementServiceName, healthpb.HealthCheckResponse_SERVING)
	srv.RegisterService(&statementServiceDesc, svc)
	reflection.Register(srv)
	return srv, hs
}
