package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// sensei 服务错误码: 21
// - 01 请求校验
// - 04 资源不存在
// - 08 持久化
// - 10 外部模型
// - 11 外部模型超时

var (
	// ErrValidation 请求参数不合法。
	ErrValidation = Register(New(MakeCode(ServiceSensei, CategoryRequest, 1),
		http.StatusBadRequest, codes.InvalidArgument, "Validation failed", "参数校验失败"))

	// ErrUnknownCategory 分类标签不在分类体系中。
	ErrUnknownCategory = Register(New(MakeCode(ServiceSensei, CategoryRequest, 2),
		http.StatusBadRequest, codes.InvalidArgument, "Unknown category", "未知分类"))

	// ErrDocumentNotFound 文档不存在。
	ErrDocumentNotFound = Register(New(MakeCode(ServiceSensei, CategoryResource, 1),
		http.StatusNotFound, codes.NotFound, "Document not found", "文档不存在"))

	// ErrStorage 持久化存储不可写。
	ErrStorage = Register(New(MakeCode(ServiceSensei, CategoryDatabase, 1),
		http.StatusInternalServerError, codes.Unavailable, "Storage unavailable", "存储不可用"))

	// ErrClassification 分类模型返回不可解析的结果或调用失败。
	ErrClassification = Register(New(MakeCode(ServiceSensei, CategoryNetwork, 1),
		http.StatusBadGateway, codes.Unavailable, "Classification failed", "分类失败"))

	// ErrGeneration 生成模型调用失败。
	ErrGeneration = Register(New(MakeCode(ServiceSensei, CategoryNetwork, 2),
		http.StatusBadGateway, codes.Unavailable, "Generation failed", "生成失败"))

	// ErrGenerationTimeout 生成模型调用超时。
	ErrGenerationTimeout = Register(New(MakeCode(ServiceSensei, CategoryTimeout, 1),
		http.StatusGatewayTimeout, codes.DeadlineExceeded, "Generation timeout", "生成超时"))
)
