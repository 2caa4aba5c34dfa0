package docs

import "github.com/swaggo/swag"

// @title Courier Delivery Agent API
// @version 1.0
// @description Local API driving the courier delivery session
// @host localhost:8090
// @BasePath /api/v1
var SwaggerInfo = &swag.Spec{
	Version:     "1.0",
	Host:        "localhost:8090",
	BasePath:    "/api/v1",
	Title:       "Courier Delivery Agent API",
	Description: "Local API driving the courier delivery session",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
