// Package docs holds the OpenAPI description served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "tags": [
                    "health"
                ],
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "OK"
                    }
                }
            }
        },
        "/readyz": {
            "get": {
                "tags": [
                    "health"
                ],
                "summary": "Readiness check",
                "responses": {
                    "200": {
                        "description": "OK"
                    },
                    "503": {
                        "description": "Service Unavailable"
                    }
                }
            }
        },
        "/api/v1/events": {
            "post": {
                "tags": [
                    "signals"
                ],
                "summary": "Ingest one event or an array of events",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "description": "event or array of events",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/signal.Event"
                        }
                    }
                ]
            }
        },
        "/api/v1/signals": {
            "get": {
                "tags": [
                    "signals"
                ],
                "summary": "List raw signals, newest first",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "integer",
                        "description": "product id",
                        "name": "product_id",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "source",
                        "name": "source",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "signal type",
                        "name": "signal_type",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "RFC3339 lower bound",
                        "name": "since",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "RFC3339 upper bound",
                        "name": "until",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "page size",
                        "name": "limit",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "offset",
                        "name": "offset",
                        "in": "query"
                    }
                ]
            }
        },
        "/api/v1/signals/sources": {
            "get": {
                "tags": [
                    "signals"
                ],
                "summary": "Collector health and counters",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    }
                }
            }
        },
        "/api/v1/products": {
            "get": {
                "tags": [
                    "products"
                ],
                "summary": "List products ranked by latest composite score",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "integer",
                        "description": "page size",
                        "name": "limit",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "offset",
                        "name": "offset",
                        "in": "query"
                    },
                    {
                        "type": "number",
                        "description": "minimum composite score",
                        "name": "min_score",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "category",
                        "name": "category",
                        "in": "query"
                    }
                ]
            }
        },
        "/api/v1/products/{id}": {
            "get": {
                "tags": [
                    "products"
                ],
                "summary": "Product detail",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "integer",
                        "description": "product id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/api/v1/products/{id}/signals": {
            "get": {
                "tags": [
                    "products"
                ],
                "summary": "Signals in the scoring window, grouped by source",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "integer",
                        "description": "product id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/api/v1/products/{id}/history": {
            "get": {
                "tags": [
                    "products"
                ],
                "summary": "Composite score history, newest first",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "integer",
                        "description": "product id",
                        "name": "id",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "integer",
                        "description": "number of snapshots",
                        "name": "limit",
                        "in": "query"
                    }
                ]
            }
        },
        "/api/v1/cycles/scoring": {
            "post": {
                "tags": [
                    "cycles"
                ],
                "summary": "Run a scoring cycle now",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    }
                }
            }
        },
        "/api/v1/cycles/collect": {
            "post": {
                "tags": [
                    "cycles"
                ],
                "summary": "Run every enabled collector now",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    }
                }
            }
        },
        "/api/v1/cycles/collect/{source}": {
            "post": {
                "tags": [
                    "cycles"
                ],
                "summary": "Run one collector now",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    },
                    "404": {
                        "description": "Not Found",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    },
                    "409": {
                        "description": "Conflict",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "collector name",
                        "name": "source",
                        "in": "path",
                        "required": true
                    }
                ]
            }
        },
        "/api/v1/cycles/running": {
            "get": {
                "tags": [
                    "cycles"
                ],
                "summary": "Jobs currently executing on this instance",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    }
                }
            }
        },
        "/api/v1/runs": {
            "get": {
                "tags": [
                    "cycles"
                ],
                "summary": "Recent scoring runs",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "integer",
                        "description": "number of runs",
                        "name": "limit",
                        "in": "query"
                    }
                ]
            }
        },
        "/api/v1/recommendations": {
            "get": {
                "tags": [
                    "recommendations"
                ],
                "summary": "Dropshipping recommendations",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    },
                    "503": {
                        "description": "Service Unavailable",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "integer",
                        "description": "number of products",
                        "name": "limit",
                        "in": "query"
                    },
                    {
                        "type": "boolean",
                        "description": "bypass the cache",
                        "name": "refresh",
                        "in": "query"
                    }
                ]
            }
        },
        "/api/v1/settings/switches": {
            "get": {
                "tags": [
                    "settings"
                ],
                "summary": "List feature switches",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    }
                }
            }
        },
        "/api/v1/settings/switches/{name}": {
            "get": {
                "tags": [
                    "settings"
                ],
                "summary": "Read one feature switch",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "switch name without the feature. prefix",
                        "name": "name",
                        "in": "path",
                        "required": true
                    }
                ]
            },
            "put": {
                "tags": [
                    "settings"
                ],
                "summary": "Turn a feature switch on or off",
                "produces": [
                    "application/json"
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/handler.apiResponse"
                        }
                    }
                },
                "parameters": [
                    {
                        "type": "string",
                        "description": "switch name without the feature. prefix",
                        "name": "name",
                        "in": "path",
                        "required": true
                    },
                    {
                        "description": "switch state",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/handler.putSwitchRequest"
                        }
                    }
                ]
            }
        }
    },
    "definitions": {
        "handler.apiResponse": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "integer"
                },
                "message": {
                    "type": "string"
                },
                "data": {},
                "meta": {
                    "type": "object",
                    "additionalProperties": true
                }
            }
        },
        "handler.putSwitchRequest": {
            "type": "object",
            "required": [
                "enabled"
            ],
            "properties": {
                "enabled": {
                    "type": "boolean"
                }
            }
        },
        "signal.Event": {
            "type": "object",
            "required": [
                "source",
                "signal_type"
            ],
            "properties": {
                "source": {
                    "type": "string"
                },
                "signal_type": {
                    "type": "string"
                },
                "raw_product_name": {
                    "type": "string"
                },
                "value": {
                    "type": "number"
                },
                "metadata": {
                    "type": "object",
                    "additionalProperties": true
                },
                "collected_at": {
                    "type": "string",
                    "format": "date-time"
                },
                "price": {
                    "type": "number"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "productradar API",
	Description:      "Product signal ingestion, identity resolution and trend scoring.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
