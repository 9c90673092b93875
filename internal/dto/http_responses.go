package dto

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	Unauthorized = "UNAUTHORIZED"
	Forbidden    = "FORBIDDEN"

	MatchNotFound         = "MATCH_NOT_FOUND"
	MatchFull             = "MATCH_FULL"
	RegistrationNotFound  = "REGISTRATION_NOT_FOUND"
	RegistrationDuplicate = "REGISTRATION_DUPLICATE"
	PositionRequired      = "POSITION_REQUIRED"
	PositionUnknown       = "POSITION_UNKNOWN"
	PositionSoldOut       = "POSITION_ESGOTADO"
	SlotTaken             = "SLOT_TAKEN"

	UserNotFound         = "USER_NOT_FOUND"
	FriendshipExists     = "FRIENDSHIP_EXISTS"
	FriendshipNotFound   = "FRIENDSHIP_NOT_FOUND"
	NotificationNotFound = "NOTIFICATION_NOT_FOUND"
	SearchTooShort       = "SEARCH_TOO_SHORT"

	EmailInUse         = "EMAIL_IN_USE"
	InvalidCredentials = "INVALID_CREDENTIALS"
	InvalidToken       = "INVALID_TOKEN"

	ImageInvalid       = "IMAGE_INVALID"
	UploadsUnsupported = "UPLOADS_UNSUPPORTED"
)

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func ErrorResponse(c *ginext.Context, status int, code, desc string) {
	c.JSON(status, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func BadResponseError(c *ginext.Context, code, desc string) {
	ErrorResponse(c, http.StatusBadRequest, code, desc)
}

func InternalServerError(c *ginext.Context) {
	ErrorResponse(c, http.StatusInternalServerError, ServiceUnavailable, InternalError)
}

func FieldBadFormatError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldBadFormat, "Field '"+fieldName+"' has bad format")
}

func FieldIncorrectError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldIncorrect, "Field '"+fieldName+"' is incorrect")
}

func UnauthorizedError(c *ginext.Context, desc string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
		Status: "error",
		Error:  &Error{Code: Unauthorized, Desc: desc},
	})
}

func ForbiddenError(c *ginext.Context, desc string) {
	ErrorResponse(c, http.StatusForbidden, Forbidden, desc)
}

func NotFoundError(c *ginext.Context, code, desc string) {
	ErrorResponse(c, http.StatusNotFound, code, desc)
}

func ConflictError(c *ginext.Context, code, desc string) {
	ErrorResponse(c, http.StatusConflict, code, desc)
}

func MatchNotFoundError(c *ginext.Context) {
	NotFoundError(c, MatchNotFound, "Partida não encontrada.")
}

func RegistrationNotFoundError(c *ginext.Context) {
	NotFoundError(c, RegistrationNotFound, "Inscrição não encontrada.")
}

func RegistrationDuplicateError(c *ginext.Context) {
	ConflictError(c, RegistrationDuplicate, "Você já está inscrito nesta partida.")
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Status: "ok",
		Data:   data,
	})
}
