package api

import (
	"github.com/gin-gonic/gin"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Code int    `json:"code"` // 0 on success, -1 on failure
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func success(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Code: 0, Msg: "success", Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Response{Code: -1, Msg: msg})
}
