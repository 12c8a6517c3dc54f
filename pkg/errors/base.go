package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// OK represents a successful operation.
var OK = Register(New(0, http.StatusOK, codes.OK, "Success", "成功"))

var (
	// ErrBadRequest indicates a malformed request body.
	ErrBadRequest = Register(New(MakeCode(ServiceCommon, CategoryRequest, 0),
		http.StatusBadRequest, codes.InvalidArgument, "Bad request", "请求错误"))

	// ErrRouteNotFound indicates the route is not found.
	ErrRouteNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 4),
		http.StatusNotFound, codes.NotFound, "Route not found", "路由不存在"))

	// ErrInternal indicates an internal server error.
	ErrInternal = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0),
		http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))

	// ErrPanic indicates a recovered handler panic.
	ErrPanic = Register(New(MakeCode(ServiceCommon, CategoryInternal, 2),
		http.StatusInternalServerError, codes.Internal, "Service panic", "服务崩溃"))

	// ErrRequestTimeout indicates the request exceeded its deadline.
	ErrRequestTimeout = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 0),
		http.StatusGatewayTimeout, codes.DeadlineExceeded, "Request timeout", "请求超时"))

	// ErrRequestCanceled indicates the client went away before the reply.
	ErrRequestCanceled = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 1),
		StatusClientClosedRequest, codes.Canceled, "Request canceled", "请求已取消"))
)

// StatusClientClosedRequest is the non-standard status for a request the
// client abandoned.
const StatusClientClosedRequest = 499
