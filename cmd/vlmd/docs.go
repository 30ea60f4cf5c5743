package main

// General API documentation for swaggo. Run `swag init -g cmd/vlmd/docs.go`
// to generate docs, then build with -tags=swagger.
//
// @title           vlmd API
// @version         1.0
// @description     OpenAI-compatible HTTP API for multimodal (text/image/video) inference on a single accelerator.
//
// @contact.name   vlmd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
