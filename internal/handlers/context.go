package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/shopadmin/internal/upload"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// requestUploads returns the files the upload middleware saved for this request.
func requestUploads(c *gin.Context) upload.Set {
	if set := upload.FromContext(requestContext(c)); set != nil {
		return set
	}
	return upload.Set{}
}
