package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/trustvibe/escrow-service/internal/application"
	"github.com/trustvibe/escrow-service/internal/domain"
)

// EscrowInternalService is the mesh-internal query surface. Callers are other
// platform services inside the trust boundary, so requests carry a calling
// service name instead of an end-user token.
type EscrowInternalService interface {
	GetProjectState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReliability(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type EscrowInternalServer struct {
	service *application.Service
}

func NewEscrowInternalServer(service *application.Service) *EscrowInternalServer {
	return &EscrowInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc EscrowInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "trustvibe.escrow.v1.EscrowInternalService",
		HandlerType: (*EscrowInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetProjectState",
				Handler:    getProjectStateHandler(svc),
			},
			{
				MethodName: "GetReliability",
				Handler:    getReliabilityHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "contracts/proto/escrow/v1/escrow_internal.proto",
	}, svc)
}

func internalActor(req *structpb.Struct) application.Actor {
	caller := "internal"
	if v := req.GetFields()["calling_service"]; v != nil && v.GetStringValue() != "" {
		caller = v.GetStringValue()
	}
	return application.Actor{SubjectID: caller, Role: domain.RoleSystem}
}

func (s *EscrowInternalServer) GetProjectState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	idVal := req.GetFields()["project_id"]
	if idVal == nil || idVal.GetStringValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "missing project_id")
	}

	project, err := s.service.GetProject(ctx, internalActor(req), idVal.GetStringValue())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "project not found")
		}
		return nil, status.Errorf(codes.Internal, "get project: %v", err)
	}

	fields := map[string]any{
		"project_id":        project.ProjectID,
		"state":             string(project.State),
		"customer_id":       project.CustomerID,
		"contractor_id":     project.ContractorID,
		"held_amount_cents": project.HeldAmountCents,
	}
	if project.CompletionRequestedAt != nil {
		fields["completion_requested_at"] = project.CompletionRequestedAt.Unix()
	}
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *EscrowInternalServer) GetReliability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	idVal := req.GetFields()["contractor_id"]
	if idVal == nil || idVal.GetStringValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "missing contractor_id")
	}

	score, err := s.service.GetReliability(ctx, internalActor(req), idVal.GetStringValue())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "get reliability: %v", err)
	}

	resp, err := structpb.NewStruct(map[string]any{
		"contractor_id":         score.ContractorID,
		"score":                 score.Score,
		"auto_release_eligible": score.Eligibility.AutoRelease,
		"large_jobs_eligible":   score.Eligibility.LargeJobs,
		"high_ticket_eligible":  score.Eligibility.HighTicket,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func getProjectStateHandler(svc EscrowInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetProjectState(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/trustvibe.escrow.v1.EscrowInternalService/GetProjectState",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetProjectState(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func getReliabilityHandler(svc EscrowInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetReliability(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/trustvibe.escrow.v1.EscrowInternalService/GetReliability",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetReliability(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
