package api

import (
	"context"

	"google.golang.org/grpc"
)

// Full method names.
const (
	TransferServiceName = "gotransfer.v1.TransferService"
	AccountServiceName  = "gotransfer.v1.AccountService"
	OpsServiceName      = "gotransfer.v1.OpsService"

	TransferServiceTransfer   = "/" + TransferServiceName + "/Transfer"
	TransferServiceGetBalance = "/" + TransferServiceName + "/GetBalance"

	AccountServiceOpenAccount  = "/" + AccountServiceName + "/OpenAccount"
	AccountServiceGetAccount   = "/" + AccountServiceName + "/GetAccount"
	AccountServiceListAccounts = "/" + AccountServiceName + "/ListAccounts"

	OpsServiceListCompensations = "/" + OpsServiceName + "/ListCompensations"
	OpsServiceReconcile         = "/" + OpsServiceName + "/Reconcile"
)

// TransferServiceServer acts on the caller's own account.
type TransferServiceServer interface {
	Transfer(context.Context, *TransferRequest) (*TransferResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*GetBalanceResponse, error)
}

// AccountServiceServer administers accounts.
type AccountServiceServer interface {
	OpenAccount(context.Context, *OpenAccountRequest) (*OpenAccountResponse, error)
	GetAccount(context.Context, *GetAccountRequest) (*GetAccountResponse, error)
	ListAccounts(context.Context, *ListAccountsRequest) (*ListAccountsResponse, error)
}

// OpsServiceServer exposes compensations and reconciliation.
type OpsServiceServer interface {
	ListCompensations(context.Context, *ListCompensationsRequest) (*ListCompensationsResponse, error)
	Reconcile(context.Context, *ReconcileRequest) (*ReconcileResponse, error)
}

var TransferServiceDesc = grpc.ServiceDesc{
	ServiceName: TransferServiceName,
	HandlerType: (*TransferServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Transfer", Handler: unaryHandler(TransferServiceTransfer, TransferServiceServer.Transfer)},
		{MethodName: "GetBalance", Handler: unaryHandler(TransferServiceGetBalance, TransferServiceServer.GetBalance)},
	},
	Streams: []grpc.StreamDesc{},
}

var AccountServiceDesc = grpc.ServiceDesc{
	ServiceName: AccountServiceName,
	HandlerType: (*AccountServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "OpenAccount", Handler: unaryHandler(AccountServiceOpenAccount, AccountServiceServer.OpenAccount)},
		{MethodName: "GetAccount", Handler: unaryHandler(AccountServiceGetAccount, AccountServiceServer.GetAccount)},
		{MethodName: "ListAccounts", Handler: unaryHandler(AccountServiceListAccounts, AccountServiceServer.ListAccounts)},
	},
	Streams: []grpc.StreamDesc{},
}

var OpsServiceDesc = grpc.ServiceDesc{
	ServiceName: OpsServiceName,
	HandlerType: (*OpsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListCompensations", Handler: unaryHandler(OpsServiceListCompensations, OpsServiceServer.ListCompensations)},
		{MethodName: "Reconcile", Handler: unaryHandler(OpsServiceReconcile, OpsServiceServer.Reconcile)},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterTransferServiceServer(s grpc.ServiceRegistrar, srv TransferServiceServer) {
	s.RegisterService(&TransferServiceDesc, srv)
}

func RegisterAccountServiceServer(s grpc.ServiceRegistrar, srv AccountServiceServer) {
	s.RegisterService(&AccountServiceDesc, srv)
}

func RegisterOpsServiceServer(s grpc.ServiceRegistrar, srv OpsServiceServer) {
	s.RegisterService(&OpsServiceDesc, srv)
}

func unaryHandler[S, Req, Resp any](fullMethod string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(S), ctx, req.(*Req))
		})
	}
}

// Client calls all gotransfer services over one connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*TransferResponse, error) {
	return invoke[TransferResponse](ctx, c.cc, TransferServiceTransfer, in, opts)
}

func (c *Client) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*GetBalanceResponse, error) {
	return invoke[GetBalanceResponse](ctx, c.cc, TransferServiceGetBalance, in, opts)
}

func (c *Client) OpenAccount(ctx context.Context, in *OpenAccountRequest, opts ...grpc.CallOption) (*OpenAccountResponse, error) {
	return invoke[OpenAccountResponse](ctx, c.cc, AccountServiceOpenAccount, in, opts)
}

func (c *Client) GetAccount(ctx context.Context, in *GetAccountRequest, opts ...grpc.CallOption) (*GetAccountResponse, error) {
	return invoke[GetAccountResponse](ctx, c.cc, AccountServiceGetAccount, in, opts)
}

func (c *Client) ListAccounts(ctx context.Context, in *ListAccountsRequest, opts ...grpc.CallOption) (*ListAccountsResponse, error) {
	return invoke[ListAccountsResponse](ctx, c.cc, AccountServiceListAccounts, in, opts)
}

func (c *Client) ListCompensations(ctx context.Context, in *ListCompensationsRequest, opts ...grpc.CallOption) (*ListCompensationsResponse, error) {
	return invoke[ListCompensationsResponse](ctx, c.cc, OpsServiceListCompensations, in, opts)
}

func (c *Client) Reconcile(ctx context.Context, in *ReconcileRequest, opts ...grpc.CallOption) (*ReconcileResponse, error) {
	return invoke[ReconcileResponse](ctx, c.cc, OpsServiceReconcile, in, opts)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
