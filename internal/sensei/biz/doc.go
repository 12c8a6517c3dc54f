// Package biz 实现 sensei 的核心业务逻辑。
//
// 包含三个部分：
//   - Router：查询分类，优先命中人工纠正缓存，未命中时调用分类模型；
//   - Index：文档分块、持久化与 BM25 检索，读路径无锁；
//   - Pipeline：分类、检索、按分类策略选择角色与安全模式，最后调用一次生成模型。
//
// 所有外部模型调用都不持有任何锁，存储只在调用前后访问。
package biz

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/kart-io/sensei/internal/sensei/biz")
