package api

import (
	"net/http"

	"github.com/0glabs/0g-wallet-rpc/rpcerror"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const httpStatusCodeInternalError = 600

// Wrap converts a controller into gin handler, which always responds a business error
// in JSON, with the result as data on success.
func Wrap(controller func(c *gin.Context) (interface{}, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := controller(c)
		if err == nil {
			c.JSON(http.StatusOK, ErrNil.WithData(result))
			return
		}

		var (
			businessErr   *BusinessError
			validationErr validator.ValidationErrors
			classifiedErr *rpcerror.ClassifiedError
		)

		switch {
		case errors.As(err, &businessErr):
			c.JSON(http.StatusOK, businessErr)
		case errors.As(err, &validationErr):
			// binding error
			c.JSON(http.StatusOK, ErrValidation.WithData(validationErr.Error()))
		case errors.As(err, &classifiedErr):
			c.JSON(http.StatusOK, NewRPCError(classifiedErr))
		default:
			logrus.WithError(err).WithField("path", c.FullPath()).Debug("Failed to handle request")
			c.JSON(httpStatusCodeInternalError, ErrInternal.WithData(err.Error()))
		}
	}
}
