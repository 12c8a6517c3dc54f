// Package pool 基于 ants 提供后台任务协程池。
//
// sensei 使用两个池：background 负责模型分类结果的异步落库，
// transcript 负责会话记录的追加写入。请求路径只提交任务，不等待结果。
package pool

import "errors"

// 池相关错误定义
var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("池已关闭")

	// ErrPoolNotFound 池不存在
	ErrPoolNotFound = errors.New("池不存在")

	// ErrPoolAlreadyExists 池已存在
	ErrPoolAlreadyExists = errors.New("池已存在")

	// ErrPoolOverload 池已满
	ErrPoolOverload = errors.New("池已满")
)
