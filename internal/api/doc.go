// Package api exposes the transfer service over HTTP. It routes requests with
// chi, validates request bodies and maps service errors to status codes with
// safe messages.
package api
