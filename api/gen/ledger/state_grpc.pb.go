package ledger

import (
	context "context"

	grpc "google.golang.org/grpc"
	codes "google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"
)

const (
	StateService_GetLedgerEnd_FullMethodName       = "/com.daml.ledger.api.v2.StateService/GetLedgerEnd"
	StateService_GetActiveContracts_FullMethodName = "/com.daml.ledger.api.v2.StateService/GetActiveContracts"
)

type StateServiceClient interface {
	GetLedgerEnd(ctx context.Context, in *GetLedgerEndRequest, opts ...grpc.CallOption) (*GetLedgerEndResponse, error)
	GetActiveContracts(ctx context.Context, in *GetActiveContractsRequest, opts ...grpc.CallOption) (StateService_GetActiveContractsClient, error)
}

type stateServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewStateServiceClient(cc grpc.ClientConnInterface) StateServiceClient {
	return &stateServiceClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *stateServiceClient) GetLedgerEnd(ctx context.Context, in *GetLedgerEndRequest, opts ...grpc.CallOption) (*GetLedgerEndResponse, error) {
	out := new(GetLedgerEndResponse)
	err := c.cc.Invoke(ctx, StateService_GetLedgerEnd_FullMethodName, in, out, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *stateServiceClient) GetActiveContracts(ctx context.Context, in *GetActiveContractsRequest, opts ...grpc.CallOption) (StateService_GetActiveContractsClient, error) {
	stream, err := c.cc.NewStream(ctx, &StateService_ServiceDesc.Streams[0], StateService_GetActiveContracts_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &stateServiceGetActiveContractsClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type StateService_GetActiveContractsClient interface {
	Recv() (*GetActiveContractsResponse, error)
	grpc.ClientStream
}

type stateServiceGetActiveContractsClient struct {
	grpc.ClientStream
}

func (x *stateServiceGetActiveContractsClient) Recv() (*GetActiveContractsResponse, error) {
	m := new(GetActiveContractsResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

type StateServiceServer interface {
	GetLedgerEnd(context.Context, *GetLedgerEndRequest) (*GetLedgerEndResponse, error)
	GetActiveContracts(*GetActiveContractsRequest, StateService_GetActiveContractsServer) error
	mustEmbedUnimplementedStateServiceServer()
}

type UnimplementedStateServiceServer struct{}

func (UnimplementedStateServiceServer) GetLedgerEnd(context.Context, *GetLedgerEndRequest) (*GetLedgerEndResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetLedgerEnd not implemented")
}
func (UnimplementedStateServiceServer) GetActiveContracts(*GetActiveContractsRequest, StateService_GetActiveContractsServer) error {
	return status.Errorf(codes.Unimplemented, "method GetActiveContracts not implemented")
}
func (UnimplementedStateServiceServer) mustEmbedUnimplementedStateServiceServer() {}

func RegisterStateServiceServer(s grpc.ServiceRegistrar, srv StateServiceServer) {
	s.RegisterService(&StateService_ServiceDesc, srv)
}

func _StateService_GetLedgerEnd_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetLedgerEndRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StateServiceServer).GetLedgerEnd(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: StateService_GetLedgerEnd_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(StateServiceServer).GetLedgerEnd(ctx, req.(*GetLedgerEndRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _StateService_GetActiveContracts_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(GetActiveContractsRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(StateServiceServer).GetActiveContracts(m, &stateServiceGetActiveContractsServer{stream})
}

type StateService_GetActiveContractsServer interface {
	Send(*GetActiveContractsResponse) error
	grpc.ServerStream
}

type stateServiceGetActiveContractsServer struct {
	grpc.ServerStream
}

func (x *stateServiceGetActiveContractsServer) Send(m *GetActiveContractsResponse) error {
	return x.ServerStream.SendMsg(m)
}

var StateService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "com.daml.ledger.api.v2.StateService",
	HandlerType: (*StateServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetLedgerEnd",
			Handler:    _StateService_GetLedgerEnd_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "GetActiveContracts",
			Handler:       _StateService_GetActiveContracts_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "com/daml/ledger/api/v2/state_service.proto",
}
