package main

//go:generate swag init -d ../../ -g cmd/finsage/docs.go -o ../../docs --parseInternal

// @title           FinSage Ingestion API
// @version         0.1.0
// @description     Pipeline runs, run history, and per-ticker watermarks.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
