// Package main provides the entry point for the EvalForge authorization
// service. It runs a Fiber web server exposing the admin API for role
// capability sets and viewer visibility grants, backed by gorm for data
// persistence, with per-organization caching of resolved permissions and
// auth contexts.
package main
