package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

// Business error codes. Stable: clients key off these, never off messages.
const (
	CodeWalletNotFound        = 1001
	CodeInsufficientBalance   = 1002
	CodeInvalidAmount         = 1003
	CodeWalletFrozen          = 1004
	CodeAuthorizationDeclined = 1005
	CodeAlreadyContributed    = 1006
	CodePlanNotFound          = 1007
	CodePlanNotActive         = 1008
	CodeGroupNotFound         = 1009
	CodeGroupFull             = 1010
	CodeAlreadyMember         = 1011
	CodeInvalidJoinCode       = 1012
	CodeGroupStateInvalid     = 1013
	CodeNotGroupMember        = 1014
	CodeCycleIncomplete       = 1015
	CodeDisputeNotFound       = 1016
	CodeTxnNotFound           = 1017
	CodeAmountExceedsOriginal = 1018
	CodeInvalidCode           = 1019
	CodeLimitExceeded         = 1020
	CodeConcurrencyConflict   = 1021
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
