package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {"title": "Dokumen API", "description": "Personal document vault for KTP, SIM, STNK and passports with expiry reminders", "version": "1.0.0"},
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Login handshake with the external auth service"},
        {"name": "Documents", "description": "Stored documents and downloads"},
        {"name": "Sessions", "description": "Upload sessions and the processing pipeline"},
        {"name": "Notifications", "description": "Notification inbox and settings"},
        {"name": "Reminders", "description": "Reminder options, schedule and export"},
        {"name": "Users", "description": "Current user profile"},
        {"name": "Admin", "description": "Operational endpoints"}
    ],
    "paths": {
        "/auth/callback": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Complete login",
                "responses": {
                    "302": {"description": "Found"}
                },
                "parameters": [
                    {"name": "token", "in": "query", "type": "string", "required": false}
                ]
            }
        },
        "/auth/login": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Redirect to the login page",
                "responses": {
                    "302": {"description": "Found"}
                }
            }
        },
        "/auth/logout": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Clear the session cookie",
                "responses": {
                    "302": {"description": "Found"}
                }
            }
        },
        "/users/me": {
            "get": {
                "tags": ["Users"],
                "summary": "Current user profile",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "put": {
                "tags": ["Users"],
                "summary": "Update current user profile",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"type": "object"}
                    }
                ]
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Delete current user account",
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/documents": {
            "get": {
                "tags": ["Documents"],
                "summary": "List documents",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer", "required": false},
                    {"name": "per_page", "in": "query", "type": "integer", "required": false},
                    {"name": "sort_by", "in": "query", "type": "string", "required": false},
                    {"name": "sort_order", "in": "query", "type": "string", "required": false},
                    {"name": "type", "in": "query", "type": "string", "required": false},
                    {"name": "status", "in": "query", "type": "string", "required": false},
                    {"name": "search", "in": "query", "type": "string", "required": false}
                ]
            }
        },
        "/documents/upload": {
            "post": {
                "tags": ["Documents"],
                "summary": "Upload a document",
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "file", "in": "formData", "type": "file", "required": true},
                    {"name": "title", "in": "formData", "type": "string", "required": false}
                ],
                "consumes": ["multipart/form-data"]
            }
        },
        "/documents/{id}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Get a document",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ]
            },
            "put": {
                "tags": ["Documents"],
                "summary": "Update a document",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"type": "object"}
                    }
                ]
            },
            "delete": {
                "tags": ["Documents"],
                "summary": "Delete a document",
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ]
            }
        },
        "/documents/{id}/extract": {
            "post": {
                "tags": ["Documents"],
                "summary": "Extract document data",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ]
            }
        },
        "/documents/{id}/download-url": {
            "get": {
                "tags": ["Documents"],
                "summary": "Issue a signed download link",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ]
            }
        },
        "/documents/{id}/download": {
            "get": {
                "tags": ["Documents"],
                "summary": "Download a document via signed token",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "token", "in": "query", "type": "string", "required": true}
                ]
            }
        },
        "/sessions": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Open an upload session",
                "responses": {
                    "201": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/sessions/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Get session state",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ]
            },
            "delete": {
                "tags": ["Sessions"],
                "summary": "Close a session",
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ]
            }
        },
        "/sessions/{id}/files": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Add files to the selection",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "files", "in": "formData", "type": "file", "required": true}
                ],
                "consumes": ["multipart/form-data"]
            },
            "delete": {
                "tags": ["Sessions"],
                "summary": "Clear the selection",
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ]
            }
        },
        "/sessions/{id}/files/{index}": {
            "delete": {
                "tags": ["Sessions"],
                "summary": "Remove one file from the selection",
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "index", "in": "path", "type": "integer", "required": true}
                ]
            }
        },
        "/sessions/{id}/confirm": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Upload the selection and start processing",
                "responses": {
                    "202": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ]
            }
        },
        "/sessions/{id}/process": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Start or retry processing",
                "responses": {
                    "202": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ]
            }
        },
        "/sessions/{id}/reminders/auto": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Apply automatic reminders",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ]
            }
        },
        "/sessions/{id}/documents": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Refresh the session's document collection",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "type", "in": "query", "type": "string", "required": false, "description": "Document type"},
                    {"name": "status", "in": "query", "type": "string", "required": false, "description": "Document status"},
                    {"name": "search", "in": "query", "type": "string", "required": false, "description": "Title search"}
                ]
            }
        },
        "/sessions/{id}/documents/{docId}": {
            "put": {
                "tags": ["Sessions"],
                "summary": "Update a document of the session's collection",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "docId", "in": "path", "type": "string", "required": true},
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"type": "object"}
                    }
                ]
            },
            "delete": {
                "tags": ["Sessions"],
                "summary": "Delete a document of the session's collection",
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "docId", "in": "path", "type": "string", "required": true}
                ]
            }
        },
        "/sessions/{id}/error": {
            "delete": {
                "tags": ["Sessions"],
                "summary": "Dismiss the session's last error",
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ]
            }
        },
        "/sessions/{id}/extracted/{docId}/reminder": {
            "put": {
                "tags": ["Sessions"],
                "summary": "Choose the reminder of an extracted document",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "docId", "in": "path", "type": "string", "required": true},
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"type": "object"}
                    }
                ]
            }
        },
        "/sessions/{id}/extracted/{docId}/promote": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Save an extracted document",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "docId", "in": "path", "type": "string", "required": true}
                ]
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List notifications",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "unread_only", "in": "query", "type": "boolean", "required": false},
                    {"name": "limit", "in": "query", "type": "integer", "required": false},
                    {"name": "offset", "in": "query", "type": "integer", "required": false}
                ]
            }
        },
        "/notifications/{id}/read": {
            "patch": {
                "tags": ["Notifications"],
                "summary": "Mark a notification as read",
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ]
            }
        },
        "/notifications/settings": {
            "get": {
                "tags": ["Notifications"],
                "summary": "Get notification settings",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "put": {
                "tags": ["Notifications"],
                "summary": "Update notification settings",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"type": "object"}
                    }
                ]
            }
        },
        "/reminders/options": {
            "get": {
                "tags": ["Reminders"],
                "summary": "Reminder picker options",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                }
            }
        },
        "/reminders/compute": {
            "post": {
                "tags": ["Reminders"],
                "summary": "Compute a reminder date",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {"type": "object"}
                    }
                ]
            }
        },
        "/reminders/schedule": {
            "get": {
                "tags": ["Reminders"],
                "summary": "Reminder schedule of the current user",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/reminders/export": {
            "get": {
                "tags": ["Reminders"],
                "summary": "Export the reminder schedule",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "required": false}
                ]
            }
        },
        "/admin/metrics": {
            "get": {
                "tags": ["Admin"],
                "summary": "Aggregated service metrics",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/admin/reminders/run": {
            "post": {
                "tags": ["Admin"],
                "summary": "Run the reminder sweep now",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    },
                    "401": {
                        "description": "Unauthorized",
                        "schema": {"$ref": "#/definitions/ResponseEnvelope"}
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {"type": "object"},
                "message": {"type": "string"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {return docTemplate}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
