package api

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"brokergw/internal/gateway"
	"brokergw/internal/metrics"
)

// GRPCServiceName is the fully qualified gRPC service name.
const GRPCServiceName = "brokergw.v1.BrokerGateway"

// GRPCCallMethod is the full method name of the unary Call RPC.
const GRPCCallMethod = "/" + GRPCServiceName + "/Call"

// BrokerGatewayServer is the server API for the BrokerGateway service. The
// request carries the {tool, input} envelope; the response is the tool result.
type BrokerGatewayServer interface {
	Call(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var brokerGatewayServiceDesc = grpc.ServiceDesc{
	ServiceName: GRPCServiceName,
	HandlerType: (*BrokerGatewayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Call", Handler: callHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "brokergw/v1/gateway.proto",
}

func callHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BrokerGatewayServer).Call(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GRPCCallMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BrokerGatewayServer).Call(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterBrokerGatewayServer registers srv on s.
func RegisterBrokerGatewayServer(s grpc.ServiceRegistrar, srv BrokerGatewayServer) {
	s.RegisterService(&brokerGatewayServiceDesc, srv)
}

// BrokerGatewayClient calls the BrokerGateway service over conn.
type BrokerGatewayClient struct {
	cc grpc.ClientConnInterface
}

// NewBrokerGatewayClient creates a client on cc.
func NewBrokerGatewayClient(cc grpc.ClientConnInterface) *BrokerGatewayClient {
	return &BrokerGatewayClient{cc: cc}
}

// Call invokes the Call RPC.
func (c *BrokerGatewayClient) Call(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GRPCCallMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Service implementation
// ---------------------------------------------------------------------------

// GatewayService serves BrokerGateway RPCs from a gateway.
type GatewayService struct {
	gw *gateway.Gateway
}

var _ BrokerGatewayServer = (*GatewayService)(nil)

// NewGatewayService creates a GatewayService dispatching onto gw.
func NewGatewayService(gw *gateway.Gateway) *GatewayService {
	return &GatewayService{gw: gw}
}

// Call implements BrokerGatewayServer.
func (s *GatewayService) Call(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()

	toolValue, ok := fields["tool"]
	var tool string
	if ok {
		if _, isString := toolValue.GetKind().(*structpb.Value_StringValue); !isString {
			return nil, status.Error(codes.InvalidArgument, "tool must be a string")
		}
		tool = toolValue.GetStringValue()
	}

	var input json.RawMessage
	if v, ok := fields["input"]; ok {
		raw, err := protojson.Marshal(v)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "encoding input: %v", err)
		}
		input = raw
	}

	result, err := s.gw.Handle(ctx, tool, input)
	if err != nil {
		return nil, status.Error(codeFor(gateway.Outcome(err)), err.Error())
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding result: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "converting result: %v", err)
	}
	return out, nil
}

// codeFor maps a gateway outcome onto a gRPC status code.
func codeFor(outcome string) codes.Code {
	switch outcome {
	case metrics.OutcomeInvalidInput:
		return codes.InvalidArgument
	case metrics.OutcomeToolNotFound:
		return codes.NotFound
	default:
		return codes.Internal
	}
}

// newGRPCServer builds a gRPC server exposing the gateway and the standard
// health service.
func newGRPCServer(gw *gateway.Gateway, log *zap.Logger) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(log)))
	RegisterBrokerGatewayServer(srv, NewGatewayService(gw))

	hs := health.NewServer()
	hs.SetServingStatus(GRPCServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

func unaryLogger(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Debug("rpc",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("elapsed", time.Since(start)),
		)
		return resp, err
	}
}
