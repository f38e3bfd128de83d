package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"ticketing/src/boot"
	"ticketing/src/common"
	"ticketing/src/metrics"
	"ticketing/src/types"
	"time"

	"github.com/gin-gonic/gin"
)

const ticketLinkTTL = 15 * time.Minute

func errorStatus(err error) int {
	switch {
	case types.IsValidation(err):
		return http.StatusBadRequest
	case types.IsAuthenticity(err):
		return http.StatusUnauthorized
	case types.IsGateway(err):
		return http.StatusBadGateway
	case types.IsNotFound(err):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func abortWithError(ctx *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("[%s %s] %s\n", ctx.Request.Method, ctx.FullPath(), err.Error())
	}
	ctx.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "kind": types.ErrorKind(err)})
}

func bindingError(err error) error {
	return types.NewValidationError("", err.Error())
}

func confirmResponse(result *common.BookingResult) types.APIResponseConfirm {
	res := types.APIResponseConfirm{
		BookingID:         result.Booking.ID.String(),
		Replayed:          result.Replayed,
		Persisted:         result.Persisted,
		DocumentGenerated: result.DocumentGenerated,
		DocumentDelivered: result.EmailSent,
		State:             result.State,
		Errors:            make([]types.APIResponseError, 0, len(result.Errors)),
	}
	for _, err := range result.Errors {
		res.Errors = append(res.Errors, types.APIResponseError{Kind: types.ErrorKind(err), Message: err.Error()})
	}
	return res
}

func bookingHandlers(g *gin.RouterGroup, app *boot.App) *gin.RouterGroup {
	g.
		POST("/bookings/create-order", func(ctx *gin.Context) {
			var body types.CreateOrderRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				abortWithError(ctx, bindingError(err))
				return
			}
			currency := strings.ToUpper(body.Currency)
			if currency == "" {
				currency = app.Config.Gateway.Currency
			}
			order, err := app.Gateway.CreateOrder(ctx.Request.Context(), body.Amount, currency)
			metrics.GatewayOrders.WithLabelValues(app.Gateway.Provider(), metrics.Result(err)).Inc()
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, types.APIResponseOrder{
				OrderID:  order.ID,
				Amount:   order.Amount,
				Currency: order.Currency,
				Receipt:  order.Receipt,
			})
		}).
		POST("/bookings/confirm", func(ctx *gin.Context) {
			var body types.ConfirmBookingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				abortWithError(ctx, bindingError(err))
				return
			}
			// the payment is captured already, so a client hangup must not stop the booking
			c := context.WithoutCancel(ctx.Request.Context())
			result, err := app.Confirmer.Confirm(c, common.ConfirmRequest{
				EventRef:  body.EventRef,
				UserEmail: body.UserEmail,
				Amount:    body.Amount,
				PaymentID: body.PaymentID,
				OrderID:   body.OrderID,
				Signature: body.Signature,
			})
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, confirmResponse(result))
		}).
		GET("/bookings", func(ctx *gin.Context) {
			var filters types.BookingsQueryFilters
			if err := ctx.ShouldBindQuery(&filters); err != nil {
				abortWithError(ctx, bindingError(err))
				return
			}
			bookings, err := app.Store.ListByUserEmail(ctx.Request.Context(), filters.User)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
		}).
		GET("/bookings/user/:email", func(ctx *gin.Context) {
			var params types.UserBookingsURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				abortWithError(ctx, bindingError(err))
				return
			}
			bookings, err := app.Store.ListByUserEmail(ctx.Request.Context(), params.Email)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
		}).
		GET("/bookings/:id", func(ctx *gin.Context) {
			var params types.BookingURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				abortWithError(ctx, bindingError(err))
				return
			}
			booking, err := app.Store.GetByID(ctx.Request.Context(), params.ID)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		POST("/bookings/:id/resend", func(ctx *gin.Context) {
			var params types.BookingURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				abortWithError(ctx, bindingError(err))
				return
			}
			var query types.ResendQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				abortWithError(ctx, bindingError(err))
				return
			}
			result, err := app.Confirmer.Resend(context.WithoutCancel(ctx.Request.Context()), params.ID, query.Rerender)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			ctx.JSON(http.StatusOK, confirmResponse(result))
		}).
		GET("/bookings/:id/ticket", func(ctx *gin.Context) {
			var params types.BookingURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				abortWithError(ctx, bindingError(err))
				return
			}
			var query types.TicketQueryParams
			if err := ctx.ShouldBindQuery(&query); err != nil {
				abortWithError(ctx, bindingError(err))
				return
			}
			doc, err := app.Confirmer.Ticket(ctx.Request.Context(), params.ID)
			if err != nil {
				abortWithError(ctx, err)
				return
			}
			if query.Link && app.Linker != nil {
				url, err := app.Linker.URL(ctx.Request.Context(), doc.Key, ticketLinkTTL)
				if err != nil {
					abortWithError(ctx, err)
					return
				}
				ctx.JSON(http.StatusOK, gin.H{"url": url, "expiresIn": int(ticketLinkTTL.Seconds())})
				return
			}
			ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
			ctx.Data(http.StatusOK, doc.ContentType, doc.Content)
		})
	return g
}
