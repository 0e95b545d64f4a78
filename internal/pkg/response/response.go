// Package response shapes every API reply into the webapi envelope:
// recommendation results ride in data, failures carry a numeric errcode
// plus a short operator-facing message.
package response

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

// Success wraps data in the standard envelope with a zero code.
func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

// Error writes the envelope with the given errcode. The HTTP status stays
// 200; clients dispatch on the body code, not the transport status.
func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, codeErr{code: uint32(code), msg: message})
}
