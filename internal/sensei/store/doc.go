// Package store 提供 sensei 服务的持久化层。
//
// 纠正记录、文档分块与会话记录都保存在同一个 GORM 数据库中，
// 方言由 DSN 的 scheme 决定（sqlite / mysql / postgres）。
// sqlite 以 WAL + synchronous=FULL 打开，写入在返回前落盘。
// 可选的 Redis 镜像只作为读缓存，数据库始终是权威来源。
package store
