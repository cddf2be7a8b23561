package main

// General API documentation for swaggo. Regenerate with `swag init -g cmd/navagent/docs.go`.
//
// @title           navagent API
// @version         1.0
// @description     Campus Network navigation assistant: model lifecycle and question answering.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
