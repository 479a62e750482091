package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// WriteObject 统一响应写出，业务失败返回400
func WriteObject(c *gin.Context, obj interface{}, err error) {
	status := http.StatusOK
	if err != nil {
		status = http.StatusBadRequest
	}
	c.JSON(status, obj)
}
