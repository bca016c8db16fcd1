package service

import (
	"context"
	stdhttp "net/http"

	"github.com/go-kratos/kratos/v2/transport/http"
)

const (
	OperationCheckoutStartCheckout   = "/checkout.v1.Checkout/StartCheckout"
	OperationCheckoutApprovalReturn  = "/checkout.v1.Checkout/ApprovalReturn"
	OperationCheckoutGetCheckout     = "/checkout.v1.Checkout/GetCheckout"
	OperationCheckoutCaptureCheckout = "/checkout.v1.Checkout/CaptureCheckout"
	OperationCheckoutRefundOrder     = "/checkout.v1.Checkout/RefundOrder"
	OperationCheckoutCaptureSweep    = "/checkout.v1.Checkout/CaptureSweep"
)

type CheckoutHTTPServer interface {
	StartCheckout(context.Context, *StartCheckoutRequest) (*StartCheckoutReply, error)
	ApprovalReturn(context.Context, *ApprovalReturnRequest) (*LedgerReply, error)
	GetCheckout(context.Context, *GetCheckoutRequest) (*LedgerReply, error)
	CaptureCheckout(context.Context, *CaptureCheckoutRequest) (*CaptureResultReply, error)
	RefundOrder(context.Context, *RefundOrderRequest) (*RefundOrderReply, error)
	CaptureSweep(context.Context, *CaptureSweepRequest) (*CaptureSweepReply, error)
}

// RegisterCheckoutHTTPServer 注册结账路由，/return 必须先于 /{merchant_trade_no} 注册
func RegisterCheckoutHTTPServer(s *http.Server, srv CheckoutHTTPServer) {
	r := s.Route("/")
	r.POST("/v1/checkouts", _Checkout_StartCheckout0_HTTP_Handler(srv))
	r.GET("/v1/checkouts/return", _Checkout_ApprovalReturn0_HTTP_Handler(srv))
	r.POST("/v1/checkouts/capture-sweep", _Checkout_CaptureSweep0_HTTP_Handler(srv))
	r.GET("/v1/checkouts/{merchant_trade_no}", _Checkout_GetCheckout0_HTTP_Handler(srv))
	r.POST("/v1/checkouts/{merchant_trade_no}/capture", _Checkout_CaptureCheckout0_HTTP_Handler(srv))
	r.POST("/v1/orders/{order_id}/refund", _Checkout_RefundOrder0_HTTP_Handler(srv))
}

func _Checkout_StartCheckout0_HTTP_Handler(srv CheckoutHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in StartCheckoutRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCheckoutStartCheckout)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.StartCheckout(ctx, req.(*StartCheckoutRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*StartCheckoutReply)
		return ctx.Result(200, reply)
	}
}

func _Checkout_ApprovalReturn0_HTTP_Handler(srv CheckoutHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ApprovalReturnRequest
		if err := ctx.BindQuery(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCheckoutApprovalReturn)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ApprovalReturn(ctx, req.(*ApprovalReturnRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*LedgerReply)
		// 买家浏览器回跳，授权成功后带回商户页面
		if reply.ClientBackURL != "" {
			stdhttp.Redirect(ctx.Response(), ctx.Request(), reply.ClientBackURL, stdhttp.StatusFound)
			return nil
		}
		return ctx.Result(200, reply)
	}
}

func _Checkout_GetCheckout0_HTTP_Handler(srv CheckoutHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in GetCheckoutRequest
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCheckoutGetCheckout)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GetCheckout(ctx, req.(*GetCheckoutRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*LedgerReply)
		return ctx.Result(200, reply)
	}
}

func _Checkout_CaptureCheckout0_HTTP_Handler(srv CheckoutHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in CaptureCheckoutRequest
		// body 可省略，默认非最终请款
		if ctx.Request().ContentLength != 0 {
			if err := ctx.Bind(&in); err != nil {
				return err
			}
		}
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCheckoutCaptureCheckout)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.CaptureCheckout(ctx, req.(*CaptureCheckoutRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*CaptureResultReply)
		return ctx.Result(200, reply)
	}
}

func _Checkout_RefundOrder0_HTTP_Handler(srv CheckoutHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in RefundOrderRequest
		if err := ctx.BindVars(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationCheckoutRefundOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.RefundOrder(ctx, req.(*RefundOrderRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*RefundOrderReply)
		return ctx.Result(200, reply)
	}
}

func _Checkout_CaptureSweep0_HTTP_Handler(srv CheckoutHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in CaptureSweepRequest
		http.SetOperation(ctx, OperationCheckoutCaptureSweep)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.CaptureSweep(ctx, req.(*CaptureSweepRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*CaptureSweepReply)
		return ctx.Result(200, reply)
	}
}
