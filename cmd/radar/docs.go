package main

//go:generate swag init -g cmd/radar/main.go -o docs

// @title           productradar API
// @version         0.1.0
// @description     Product signal ingestion, identity resolution and trend scoring.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
