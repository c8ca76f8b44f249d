package api

import (
	"errors"
	"net/http"

	"analyticaos/internal/domain"
	"analyticaos/internal/payment"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError maps service errors to the JSON error envelope
func respondError(c *gin.Context, err error) {
	var apiErr *payment.APIError
	status := http.StatusInternalServerError
	msg := "Internal server error"
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrWalletNotFound),
		errors.Is(err, domain.ErrTokenNotFound),
		errors.Is(err, domain.ErrTxNotFound):
		status, msg = http.StatusNotFound, capitalize(err.Error())
	case errors.Is(err, domain.ErrInvalidUnits),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrAmountTooLarge):
		status, msg = http.StatusBadRequest, capitalize(err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInsufficientSupply),
		errors.Is(err, domain.ErrTokenInactive):
		status, msg = http.StatusUnprocessableEntity, capitalize(err.Error())
	case errors.Is(err, domain.ErrDuplicateReference):
		status, msg = http.StatusConflict, capitalize(err.Error())
	case errors.Is(err, payment.ErrNotConfigured):
		status, msg = http.StatusServiceUnavailable, "Payments are not available"
	case errors.As(err, &apiErr):
		status, msg = http.StatusBadGateway, "Payment processor error: "+apiErr.Message
	default:
		logrus.WithFields(logrus.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		}).Error("Unhandled error")
	}
	c.JSON(status, gin.H{"error": msg})
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
