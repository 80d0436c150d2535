// Package api handles incoming HTTP requests, request decoding and response
// formatting for the task and auth endpoints. Handlers translate HTTP
// concerns into service calls and map service errors to status codes; they
// hold no task rules of their own.
package api
