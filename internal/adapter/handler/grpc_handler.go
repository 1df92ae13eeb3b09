package handler

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/shop-order/internal/core/domain"
	"github.com/rl1809/shop-order/internal/core/service"
)

const orderServiceName = "shop.order.v1.OrderService"

type PlaceOrderRequest struct {
	ProductID int64  `json:"productId"`
	Quantity  int32  `json:"quantity"`
	RequestID string `json:"requestId"`
}

type PlaceOrderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID int64  `json:"orderId,omitempty"`
}

type CancelOrderRequest struct {
	OrderID int64 `json:"orderId"`
}

type CancelOrderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ListOrdersRequest struct {
	Page int32 `json:"page"`
}

type ListOrdersResponse struct {
	Success    bool                      `json:"success"`
	Message    string                    `json:"message"`
	Orders     []domain.OrderHistoryView `json:"orders,omitempty"`
	Page       int32                     `json:"page"`
	TotalCount int64                     `json:"totalCount"`
}

type OrderServiceServer interface {
	PlaceOrder(context.Context, *PlaceOrderRequest) (*PlaceOrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*CancelOrderResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
}

var OrderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceOrder", Handler: placeOrderHandler},
		{MethodName: "CancelOrder", Handler: cancelOrderHandler},
		{MethodName: "ListOrders", Handler: listOrdersHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderServiceDesc, srv)
}

type GRPCHandler struct {
	orderService   *service.OrderService
	historyService *service.HistoryService
	pageSize       int
	logger         zerolog.Logger
}

var _ OrderServiceServer = (*GRPCHandler)(nil)

func NewGRPCHandler(orderService *service.OrderService, historyService *service.HistoryService, pageSize int, logger zerolog.Logger) *GRPCHandler {
	return &GRPCHandler{
		orderService:   orderService,
		historyService: historyService,
		pageSize:       pageSize,
		logger:         logger,
	}
}

func (h *GRPCHandler) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	email, _ := emailFromContext(ctx)

	orderID, err := h.orderService.Place(ctx, service.PlaceOrderRequest{
		ProductID: req.ProductID,
		Quantity:  int(req.Quantity),
		Email:     email,
		RequestID: req.RequestID,
	})
	if err != nil {
		h.logger.Warn().Err(err).Int64("product_id", req.ProductID).Msg("grpc place order failed")
		return &PlaceOrderResponse{Success: false, Message: grpcMessage(err)}, nil
	}

	return &PlaceOrderResponse{
		Success: true,
		Message: "order placed successfully",
		OrderID: orderID,
	}, nil
}

func (h *GRPCHandler) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*CancelOrderResponse, error) {
	email, _ := emailFromContext(ctx)

	owner, err := h.orderService.IsOwner(ctx, req.OrderID, email)
	if err != nil {
		return &CancelOrderResponse{Success: false, Message: grpcMessage(err)}, nil
	}
	if !owner {
		return &CancelOrderResponse{Success: false, Message: "not the owner of this order"}, nil
	}

	if err := h.orderService.Cancel(ctx, req.OrderID); err != nil {
		h.logger.Error().Err(err).Int64("order_id", req.OrderID).Msg("grpc cancel order failed")
		return &CancelOrderResponse{Success: false, Message: grpcMessage(err)}, nil
	}

	return &CancelOrderResponse{Success: true, Message: "order canceled"}, nil
}

func (h *GRPCHandler) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	email, _ := emailFromContext(ctx)

	page, err := h.historyService.ListOrders(ctx, email, int(req.Page), h.pageSize)
	if err != nil {
		return &ListOrdersResponse{Success: false, Message: grpcMessage(err), Page: req.Page}, nil
	}

	return &ListOrdersResponse{
		Success:    true,
		Orders:     page.Orders,
		Page:       req.Page,
		TotalCount: page.TotalCount,
	}, nil
}

func grpcMessage(err error) string {
	if errors.Is(err, domain.ErrInsufficientStock) {
		return "sold out"
	}
	_, _, message := errorKind(err)
	return message
}

// AuthInterceptor requires a bearer token in the "authorization" metadata and
// puts the caller's email on the context.
func AuthInterceptor(auth *TokenAuthority) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		values := md.Get("authorization")
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "authorization is missing")
		}

		tokenString, ok := bearerToken(values[0])
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "invalid token format, must be Bearer token")
		}

		email, err := auth.Verify(tokenString)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
		}

		return handler(withEmail(ctx, email), req)
	}
}

func placeOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PlaceOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).PlaceOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + orderServiceName + "/PlaceOrder"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).PlaceOrder(ctx, req.(*PlaceOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func cancelOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CancelOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).CancelOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + orderServiceName + "/CancelOrder"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).CancelOrder(ctx, req.(*CancelOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listOrdersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListOrdersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).ListOrders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + orderServiceName + "/ListOrders"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrderServiceServer).ListOrders(ctx, req.(*ListOrdersRequest))
	}
	return interceptor(ctx, in, info, handler)
}
